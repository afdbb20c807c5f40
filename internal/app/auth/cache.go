package auth

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fabworks/lasercut/internal/domain"
	"github.com/fabworks/lasercut/internal/interfaces"
)

// IdentityCache memoizes the authenticated user's profile for a bounded
// interval so each request does not cost a user-table lookup. It is an
// explicit injectable object: tests construct isolated instances and control
// the clock.
//
// Guarantees:
//   - a hit within the freshness window returns the cached profile with no
//     upstream call;
//   - concurrent misses share one fetch (single-flight);
//   - a lookup failure degrades to the minimal identity carried by the
//     session claims instead of failing the caller;
//   - an identity change (different user id than the cached one) invalidates
//     immediately, while a token refresh for the same identity does not.
type IdentityCache struct {
	users interfaces.UserRepository
	ttl   time.Duration
	now   func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	cached    *domain.User
	fetchedAt time.Time
}

func NewIdentityCache(users interfaces.UserRepository, ttl time.Duration, now func() time.Time) *IdentityCache {
	if now == nil {
		now = time.Now
	}
	return &IdentityCache{
		users: users,
		ttl:   ttl,
		now:   now,
	}
}

// CurrentUser resolves the profile for the session described by claims.
func (c *IdentityCache) CurrentUser(ctx context.Context, claims *Claims) (*domain.User, error) {
	c.mu.Lock()
	if c.cached != nil && c.cached.ID != claims.UserID {
		// Identity changed under the same process: drop the stale profile.
		c.cached = nil
		c.fetchedAt = time.Time{}
	}
	if c.cached != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		u := c.cached
		c.mu.Unlock()
		return u, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(strconv.Itoa(claims.UserID), func() (interface{}, error) {
		// Re-check under the lock: a concurrent caller may have populated the
		// slot while this one queued on the flight group.
		c.mu.Lock()
		if c.cached != nil && c.cached.ID == claims.UserID && c.now().Sub(c.fetchedAt) < c.ttl {
			u := c.cached
			c.mu.Unlock()
			return u, nil
		}
		c.mu.Unlock()

		user, err := c.users.FindByID(ctx, claims.UserID)
		if err != nil {
			// Degrade to the identity embedded in the session token.
			user = &domain.User{
				ID:    claims.UserID,
				Email: claims.Email,
				Role:  claims.Role,
			}
		}

		c.mu.Lock()
		c.cached = user
		c.fetchedAt = c.now()
		c.mu.Unlock()
		return user, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.User), nil
}

// Invalidate drops the cached profile. Called on sign-out.
func (c *IdentityCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
	c.fetchedAt = time.Time{}
}
