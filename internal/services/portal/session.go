package portal

import (
	"fmt"
	"strings"
)

// Cookie names the portal uses for its REST session
const (
	sessionCookieName = "SESSION"
	authTokenName     = "HYPER-AUTH-TOKEN"
)

// SessionTokens is the token set needed to call the portal's REST API
// without a browser login
type SessionTokens struct {
	SessionID string
	AuthToken string
}

// Valid reports whether both tokens are present
func (t SessionTokens) Valid() bool {
	return t.SessionID != "" && t.AuthToken != ""
}

// CookieHeader renders the tokens as the portal's Cookie header value
func (t SessionTokens) CookieHeader() string {
	return fmt.Sprintf("%s=%s; %s=%s", sessionCookieName, t.SessionID, authTokenName, t.AuthToken)
}

// ParseSessionTokens extracts the REST token set from a "name=value; ..."
// cookie string, e.g. one captured by the login flow
func ParseSessionTokens(cookieString string) SessionTokens {
	var tokens SessionTokens
	for _, pair := range strings.Split(cookieString, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		switch name {
		case sessionCookieName:
			tokens.SessionID = value
		case authTokenName:
			tokens.AuthToken = value
		}
	}
	return tokens
}
