package models

import (
	"time"
)

// PushSubscription identifies a device for push delivery.
// Opaque to the sync engine; the notification collaborator interprets it.
type PushSubscription struct {
	Endpoint string            `json:"endpoint"`
	Keys     map[string]string `json:"keys,omitempty"`
}

// HasEndpoint reports whether the subscription can receive pushes
func (p *PushSubscription) HasEndpoint() bool {
	return p != nil && p.Endpoint != ""
}

// UserAccount is one synchronized user. All portal secrets are stored as
// vault ciphertext, never as plaintext.
type UserAccount struct {
	ID    string `json:"id" badgerhold:"key"`
	Name  string `json:"name"`
	Email string `json:"email" badgerhold:"unique"`

	// Browser-login credentials (ciphertext)
	PortalEmail    string `json:"portal_email"`
	PortalPassword string `json:"portal_password"`

	// REST-mode session token set (ciphertext). Preferred when both present.
	PortalSessionCookie string `json:"portal_session_cookie"`
	PortalAuthToken     string `json:"portal_auth_token"`

	// Cached cookie-jar string from the last browser login (ciphertext) and its expiry.
	// Lets a sync skip the login flow until it expires.
	SessionCache       string     `json:"session_cache"`
	SessionCacheExpiry *time.Time `json:"session_cache_expiry"`

	Subscription *PushSubscription `json:"subscription,omitempty"`

	AutoSyncEnabled     bool       `json:"auto_sync_enabled"`
	SyncIntervalMinutes int        `json:"sync_interval_minutes"` // Minimum 1
	LastSyncAt          *time.Time `json:"last_sync_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasRESTCredentials reports whether the REST fast path is available
func (u *UserAccount) HasRESTCredentials() bool {
	return u.PortalSessionCookie != "" && u.PortalAuthToken != ""
}

// HasLoginCredentials reports whether a browser login can be attempted
func (u *UserAccount) HasLoginCredentials() bool {
	return u.PortalEmail != "" && u.PortalPassword != ""
}

// HasUsableCredentials reports whether any sync path exists for this user
func (u *UserAccount) HasUsableCredentials() bool {
	return u.HasRESTCredentials() || u.HasLoginCredentials()
}

// SessionCacheValid reports whether the cached browser session is still usable at now
func (u *UserAccount) SessionCacheValid(now time.Time) bool {
	return u.SessionCache != "" && u.SessionCacheExpiry != nil && now.Before(*u.SessionCacheExpiry)
}

// SyncInterval returns the per-user sync cadence, floored at one minute
func (u *UserAccount) SyncInterval() time.Duration {
	minutes := u.SyncIntervalMinutes
	if minutes < 1 {
		minutes = 1
	}
	return time.Duration(minutes) * time.Minute
}

// NextDue computes when this user's next auto-sync is due
func (u *UserAccount) NextDue() time.Time {
	if u.LastSyncAt == nil {
		return time.Time{} // Never synced: due immediately
	}
	return u.LastSyncAt.Add(u.SyncInterval())
}
