package goOverlay

import (
	"context"
	"time"

	"github.com/MrEthical07/goOverlay/identity"
	"github.com/MrEthical07/goOverlay/internal/overlay"
)

// Directory is the remote user directory the overlay sits on. It is the system
// of record for profile fields; suspension, deletion and activity never reach it.
//
// Authenticate must return ErrInvalidCredentials (possibly wrapped) for a
// rejected password. Other errors are passed through to callers unchanged.
type Directory interface {
	Authenticate(ctx context.Context, email, password string) (AuthResult, error)
	ListIdentities(ctx context.Context) ([]Profile, error)
	GetIdentity(ctx context.Context, id identity.ID) (Profile, error)
	UpdateIdentity(ctx context.Context, id identity.ID, patch map[string]any) (Profile, error)
}

// AuthResult is what the directory returns for accepted credentials.
type AuthResult struct {
	User         identity.Ref
	DisplayName  string
	Email        string
	Role         string
	SessionToken string
}

// Profile is one identity record as listed by the directory. Fields keeps any
// attributes the overlay does not interpret.
type Profile struct {
	ID          identity.ID    `json:"id"`
	UserID      identity.ID    `json:"userId"`
	DisplayName string         `json:"displayName,omitempty"`
	Email       string         `json:"email,omitempty"`
	Role        string         `json:"role,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
}

// Identity returns the canonical identity of the profile.
func (p Profile) Identity() identity.ID {
	return identity.Ref{ID: p.ID, UserID: p.UserID}.Canonical()
}

// Normalize returns p with both identity fields set to the canonical value.
func (p Profile) Normalize() Profile {
	ref := identity.Ref{ID: p.ID, UserID: p.UserID}.Normalize()
	p.ID, p.UserID = ref.ID, ref.UserID
	return p
}

// MemberStatus is the overlay-derived state shown in directory listings.
type MemberStatus string

const (
	// MemberActive marks a listed identity with no live suspension.
	MemberActive MemberStatus = "active"
	// MemberSuspended marks a listed identity with a live suspension.
	MemberSuspended MemberStatus = "suspended"
)

// Member is a directory profile annotated with its overlay status.
type Member struct {
	Profile
	Status MemberStatus `json:"status"`
}

// Session is the current authentication state. The zero value is an
// unauthenticated session.
type Session struct {
	UserID        identity.ID `json:"userId,omitempty"`
	DisplayName   string      `json:"displayName,omitempty"`
	Email         string      `json:"email,omitempty"`
	Role          string      `json:"role,omitempty"`
	Authenticated bool        `json:"authenticated"`
	Streak        int         `json:"streak,omitempty"`
}

// SuspensionStatus is the answer to "is this identity locked out right now".
type SuspensionStatus struct {
	IsSuspended bool      `json:"isSuspended"`
	Message     string    `json:"message,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt,omitempty"`
}

// SuspensionRecord is one live lockout.
type SuspensionRecord = overlay.SuspensionRecord

// ActivityEvent is one ledger entry.
type ActivityEvent = overlay.Event

// LoginStreak is the consecutive-day login counter of one identity.
type LoginStreak = overlay.Streak

// Activity event types written by the engine.
const (
	ActivityLogin          = "login"
	ActivityLogout         = "logout"
	ActivitySuspended      = "account_suspended"
	ActivityReactivated    = "account_reactivated"
	ActivityMarkedDeleted  = "account_deleted"
	ActivityProfileUpdated = "profile_updated"
)
