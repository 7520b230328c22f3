// Package memory is an in-process credential store for local development
// and tests. State is lost on restart.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/productr-api/internal/domain"
)

// UserRepo keeps users keyed by identifier with a secondary index on user ID.
type UserRepo struct {
	mu    sync.Mutex
	byKey map[string]*domain.User
	byID  map[string]string // user_id -> identifier
}

func NewUserRepo() *UserRepo {
	return &UserRepo{
		byKey: make(map[string]*domain.User),
		byID:  make(map[string]string),
	}
}

func (r *UserRepo) GetByIdentifier(_ context.Context, identifier string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byKey[identifier]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return clone(u), nil
}

func (r *UserRepo) GetByID(_ context.Context, userID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.byID[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return clone(r.byKey[key]), nil
}

func (r *UserRepo) UpsertChallenge(_ context.Context, in domain.ChallengeInput) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byKey[in.Identifier]
	if !ok {
		u = &domain.User{
			UserID:     in.NewUserID,
			Identifier: in.Identifier,
			CreatedAt:  in.Now,
		}
		r.byKey[in.Identifier] = u
		r.byID[u.UserID] = in.Identifier
	}
	digest, exp := in.Digest, in.ExpiresAt
	u.Email = in.Email
	u.Phone = in.Phone
	u.OTPDigest = &digest
	u.OTPExpiresAt = &exp
	u.UpdatedAt = in.Now
	return clone(u), nil
}

func (r *UserRepo) ConsumeChallenge(_ context.Context, identifier, digest string, at time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byKey[identifier]
	if !ok || u.OTPDigest == nil || *u.OTPDigest != digest {
		return nil, fmt.Errorf("challenge already consumed or replaced: %w", domain.ErrNoActiveChallenge)
	}
	u.OTPDigest = nil
	u.OTPExpiresAt = nil
	u.IsVerified = true
	u.UpdatedAt = at
	return clone(u), nil
}

func clone(u *domain.User) *domain.User {
	c := *u
	if u.Email != nil {
		v := *u.Email
		c.Email = &v
	}
	if u.Phone != nil {
		v := *u.Phone
		c.Phone = &v
	}
	if u.OTPDigest != nil {
		v := *u.OTPDigest
		c.OTPDigest = &v
	}
	if u.OTPExpiresAt != nil {
		v := *u.OTPExpiresAt
		c.OTPExpiresAt = &v
	}
	return &c
}
