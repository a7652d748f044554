package internal

import (
	"errors"
	"fmt"
)

// ErrSessionExpired is matched by every SessionExpiredError via errors.Is
var ErrSessionExpired = errors.New("session expired, please sign in again")

// ErrNotAuthenticated is returned when an operation needs a signed-in user
var ErrNotAuthenticated = errors.New("not signed in")

// StorageError represents errors accessing the local data store
type StorageError struct {
	Path string
	Op   string // "open", "read", "write", "delete"
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// AuthError is raised by the identity provider for bad credentials,
// unverified accounts, password policy violations or bad confirmation codes.
type AuthError struct {
	Action  string // "InitiateAuth", "SignUp", "ConfirmSignUp"
	Code    string // provider error type, e.g. "NotAuthorizedException"
	Message string
}

func (e *AuthError) Error() string {
	if e.Code != "" && e.Code != e.Message {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

// ValidationError represents local input rejected before any network call
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// APIError is a non-success reply from the resource API other than a
// recoverable expiry.
type APIError struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return e.Detail
}

// SessionExpiredError means the credentials could not be renewed. By the
// time it is returned the credential store has already been cleared.
type SessionExpiredError struct {
	Err error // refresh failure, nil when no refresh token was held
}

func (e *SessionExpiredError) Error() string {
	return ErrSessionExpired.Error()
}

func (e *SessionExpiredError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrSessionExpired) match.
func (e *SessionExpiredError) Is(target error) bool {
	return target == ErrSessionExpired
}

// ConfigError represents missing or invalid client configuration
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error [%s]: %s", e.Key, e.Reason)
}
