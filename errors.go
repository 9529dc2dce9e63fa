package goOverlay

import (
	"errors"
	"time"

	"github.com/MrEthical07/goOverlay/identity"
)

var (
	// ErrInvalidCredentials is returned when the directory rejects an email and
	// password pair, or when either is empty.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountSuspended is the sentinel every *SuspensionError unwraps to.
	ErrAccountSuspended = errors.New("account suspended")
	// ErrSessionExpired is returned by RestoreSession when the stored token has
	// expired. The stored credentials are discarded.
	ErrSessionExpired = errors.New("session expired")
	// ErrIdentityRequired is returned by admin mutations called without an identity.
	ErrIdentityRequired = errors.New("identity required")
	// ErrIdentityNotFound is returned by directories that do not know an identity.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrStoreUnavailable is joined with the backend error when a mutation
	// could not be persisted.
	ErrStoreUnavailable = errors.New("overlay store unavailable")
	// ErrDirectoryUnavailable wraps transport failures talking to the remote directory.
	ErrDirectoryUnavailable = errors.New("directory unavailable")
	// ErrDirectoryRequired is returned by operations that need a directory when
	// none was configured.
	ErrDirectoryRequired = errors.New("directory not configured")
	// ErrPermissionDenied is returned when the caller's role may not perform an
	// admin operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrEngineNotReady is returned by methods called on a nil Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// SuspensionError is returned by Login and RestoreSession when the identity is
// locked out. Message is the user-facing notice.
type SuspensionError struct {
	UserID    identity.ID
	Message   string
	Reason    string
	ExpiresAt time.Time
}

func (e *SuspensionError) Error() string {
	if e == nil || e.Message == "" {
		return ErrAccountSuspended.Error()
	}
	return e.Message
}

// Unwrap makes errors.Is(err, ErrAccountSuspended) hold.
func (e *SuspensionError) Unwrap() error {
	return ErrAccountSuspended
}

// SuspensionMessage extracts the user-facing notice from err if it carries one.
func SuspensionMessage(err error) (string, bool) {
	var se *SuspensionError
	if errors.As(err, &se) && se != nil {
		return se.Error(), true
	}
	return "", false
}

func storeError(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrStoreUnavailable, err)
}
