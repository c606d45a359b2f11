// Package directory resolves user ids to directory entries with a short
// lived cache in front of the user repository.
package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"landrace-threat/internal/models"
	"landrace-threat/internal/repository"
)

// Directory looks up users by id
type Directory struct {
	users repository.Users
	cache *cache.Cache
}

// New creates a directory. A ttl of zero disables caching.
func New(users repository.Users, ttl time.Duration) *Directory {
	d := &Directory{users: users}
	if ttl > 0 {
		d.cache = cache.New(ttl, 2*ttl)
	}
	return d
}

// Lookup returns the user with the given id, or nil when unknown
func (d *Directory) Lookup(ctx context.Context, userID string) (*models.User, error) {
	if d.cache != nil {
		if cached, ok := d.cache.Get(userID); ok {
			u := cached.(models.User)
			return &u, nil
		}
	}

	u, err := d.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user %s: %w", userID, err)
	}
	if u == nil {
		return nil, nil
	}

	if d.cache != nil {
		d.cache.SetDefault(userID, *u)
	}
	return u, nil
}

// Name returns the display name of a user, or fallback when the user is
// unknown or the lookup fails
func (d *Directory) Name(ctx context.Context, userID, fallback string) string {
	u, err := d.Lookup(ctx, userID)
	if err != nil || u == nil || u.Name() == "" {
		return fallback
	}
	return u.Name()
}

// Remember records a user seen on an authenticated request. The store is
// only written when the cached entry differs.
func (d *Directory) Remember(ctx context.Context, u *models.User) error {
	if d.cache != nil {
		if cached, ok := d.cache.Get(u.ID); ok {
			c := cached.(models.User)
			if c.Email == u.Email && (u.DisplayName == "" || c.DisplayName == u.DisplayName) {
				return nil
			}
		}
	}

	if u.DisplayName == "" {
		if existing, err := d.users.GetByID(ctx, u.ID); err == nil && existing != nil {
			u.DisplayName = existing.DisplayName
		}
	}

	if err := d.users.Upsert(ctx, u); err != nil {
		return fmt.Errorf("failed to remember user %s: %w", u.ID, err)
	}
	if d.cache != nil {
		d.cache.SetDefault(u.ID, *u)
	}
	return nil
}
