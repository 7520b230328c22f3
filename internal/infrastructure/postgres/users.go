package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/productr-api/internal/domain"
)

const userColumns = `user_id, identifier, email, phone, otp_digest, otp_expires_at, is_verified, created_at, updated_at`

const (
	selectByIdentifier = `SELECT ` + userColumns + ` FROM users WHERE identifier = $1`
	selectByID         = `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`

	upsertChallenge = `
INSERT INTO users (user_id, identifier, email, phone, otp_digest, otp_expires_at, is_verified, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7, $7)
ON CONFLICT (identifier) DO UPDATE SET
	email          = EXCLUDED.email,
	phone          = EXCLUDED.phone,
	otp_digest     = EXCLUDED.otp_digest,
	otp_expires_at = EXCLUDED.otp_expires_at,
	updated_at     = EXCLUDED.updated_at
RETURNING ` + userColumns

	consumeChallenge = `
UPDATE users SET is_verified = TRUE, otp_digest = NULL, otp_expires_at = NULL, updated_at = $3
WHERE identifier = $1 AND otp_digest = $2
RETURNING ` + userColumns
)

// UserRepo is the Postgres credential store.
type UserRepo struct {
	db Querier
}

func NewUserRepo(db Querier) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	return r.one(ctx, domain.ErrNotFound, selectByIdentifier, identifier)
}

func (r *UserRepo) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	return r.one(ctx, domain.ErrNotFound, selectByID, userID)
}

func (r *UserRepo) UpsertChallenge(ctx context.Context, in domain.ChallengeInput) (*domain.User, error) {
	return r.one(ctx, nil, upsertChallenge,
		in.NewUserID, in.Identifier, in.Email, in.Phone, in.Digest, in.ExpiresAt, in.Now)
}

// ConsumeChallenge succeeds only while the row still carries digest, so of
// two concurrent callers exactly one gets the row back.
func (r *UserRepo) ConsumeChallenge(ctx context.Context, identifier, digest string, at time.Time) (*domain.User, error) {
	return r.one(ctx, domain.ErrNoActiveChallenge, consumeChallenge, identifier, digest, at)
}

// one runs a single-row statement. noRows is returned in place of
// pgx.ErrNoRows when non-nil.
func (r *UserRepo) one(ctx context.Context, noRows error, sql string, args ...any) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx, sql, args...).Scan(
		&u.UserID, &u.Identifier, &u.Email, &u.Phone,
		&u.OTPDigest, &u.OTPExpiresAt, &u.IsVerified,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if noRows != nil && errors.Is(err, pgx.ErrNoRows) {
			return nil, noRows
		}
		return nil, fmt.Errorf("query users: %w", err)
	}
	return &u, nil
}
