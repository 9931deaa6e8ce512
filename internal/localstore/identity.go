package localstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/goombaio/namegenerator"
)

const (
	// UserIDKey holds the anonymous user id of this installation
	UserIDKey = "farmboard_user_id"
	// ClientNameKey holds the human readable label of this installation
	ClientNameKey = "farmboard_client_name"
)

// Identity resolves the per-installation user id and client label,
// generating and persisting them on first use
type Identity struct {
	store *Store
}

// NewIdentity creates an identity backed by store
func NewIdentity(store *Store) *Identity {
	return &Identity{store: store}
}

// UserID returns the stored user id, creating a "user_<uuid>" one when absent
func (i *Identity) UserID(ctx context.Context) (string, error) {
	return i.getOrCreate(ctx, UserIDKey, func() string {
		return "user_" + uuid.NewString()
	})
}

// ClientName returns the stored client label, generating one when absent
func (i *Identity) ClientName(ctx context.Context) (string, error) {
	return i.getOrCreate(ctx, ClientNameKey, func() string {
		return namegenerator.NewNameGenerator(time.Now().UTC().UnixNano()).Generate()
	})
}

func (i *Identity) getOrCreate(ctx context.Context, key string, generate func() string) (string, error) {
	var value string
	err := i.store.Update(ctx, key, func(current string, found bool) (string, bool, error) {
		if found && current != "" {
			value = current
			return current, false, nil
		}
		value = generate()
		return value, true, nil
	})
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", key, err)
	}
	return value, nil
}
