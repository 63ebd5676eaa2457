package sync

import (
	"errors"
	"fmt"
)

// Stage identifies where in the sync pipeline a run failed
type Stage string

const (
	StageCredentials Stage = "credentials"
	StageDecryption  Stage = "decryption"
	StageLogin       Stage = "login"
	StageCrawl       Stage = "crawl"
	StageStorage     Stage = "storage"
)

var (
	// ErrUserNotFound is returned when the user id has no account
	ErrUserNotFound = errors.New("user not found")

	// ErrNoCredentials is returned when the account has neither REST tokens
	// nor login credentials
	ErrNoCredentials = errors.New("no usable portal credentials")
)

// Error is a sync failure tagged with its pipeline stage. A failed run
// produces no stats and leaves LastSyncAt untouched.
type Error struct {
	Stage  Stage
	UserID string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("sync failed for user %s at %s stage: %v", e.UserID, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, userID string, err error) *Error {
	return &Error{Stage: stage, UserID: userID, Err: err}
}
