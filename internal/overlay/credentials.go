package overlay

import (
	"context"
	"time"

	"github.com/MrEthical07/goOverlay/identity"
)

// Credentials is what a login leaves behind for the next process start.
type Credentials struct {
	UserID      identity.ID `json:"userId"`
	DisplayName string      `json:"displayName,omitempty"`
	Email       string      `json:"email,omitempty"`
	Role        string      `json:"role,omitempty"`
	Token       string      `json:"token,omitempty"`
	IssuedAt    time.Time   `json:"issuedAt"`
}

// CredentialStore holds at most one set of credentials.
type CredentialStore struct {
	store *Store
}

// NewCredentialStore binds the credential slot to store.
func NewCredentialStore(store *Store) *CredentialStore {
	return &CredentialStore{store: store}
}

// Load returns the stored credentials. Absent or corrupt data yields false.
func (c *CredentialStore) Load(ctx context.Context) (Credentials, bool) {
	creds := load[*Credentials](ctx, c.store, CollectionSession)
	if creds == nil {
		return Credentials{}, false
	}
	return *creds, true
}

// Save replaces the stored credentials.
func (c *CredentialStore) Save(ctx context.Context, creds Credentials) error {
	return c.store.save(ctx, CollectionSession, creds)
}

// Clear removes the stored credentials.
func (c *CredentialStore) Clear(ctx context.Context) error {
	return c.store.remove(ctx, CollectionSession)
}
