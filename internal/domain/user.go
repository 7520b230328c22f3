package domain

import "time"

// User is the credential record for one login identifier (email or phone).
// OTPDigest and OTPExpiresAt are both nil when no challenge is pending.
type User struct {
	UserID       string     `json:"id" dynamodbav:"user_id"`
	Identifier   string     `json:"identifier" dynamodbav:"identifier"`
	Email        *string    `json:"email" dynamodbav:"email"`
	Phone        *string    `json:"phone" dynamodbav:"phone"`
	OTPDigest    *string    `json:"-" dynamodbav:"otp_digest,omitempty"`
	OTPExpiresAt *time.Time `json:"-" dynamodbav:"otp_expires_at,omitempty"`
	IsVerified   bool       `json:"is_verified" dynamodbav:"is_verified"`
	CreatedAt    time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// HasActiveChallenge reports whether both halves of a challenge are present.
func (u *User) HasActiveChallenge() bool {
	return u.OTPDigest != nil && *u.OTPDigest != "" && u.OTPExpiresAt != nil
}

// ChallengeInput is what RequestChallenge writes to the credential store.
// Exactly one of Email / Phone is set, derived from the identifier kind.
type ChallengeInput struct {
	NewUserID  string // used only when the record does not exist yet
	Identifier string
	Email      *string
	Phone      *string
	Digest     string
	ExpiresAt  time.Time
	Now        time.Time
}
