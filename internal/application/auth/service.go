package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/productr-api/internal/application/notification"
	"github.com/productr-api/internal/domain"
	"github.com/productr-api/internal/pkg/id"
	"github.com/productr-api/internal/pkg/metrics"
	"github.com/productr-api/internal/pkg/otp"
	"github.com/productr-api/internal/pkg/validate"
)

// CredentialStore persists one credential record per identifier.
// ConsumeChallenge must clear the challenge only if the stored digest still
// equals the given one, and report ErrNoActiveChallenge otherwise.
type CredentialStore interface {
	GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	GetByID(ctx context.Context, userID string) (*domain.User, error)
	UpsertChallenge(ctx context.Context, in domain.ChallengeInput) (*domain.User, error)
	ConsumeChallenge(ctx context.Context, identifier, digest string, at time.Time) (*domain.User, error)
}

type TokenSigner interface {
	Sign(userID string) (string, error)
}

// Throttle limits challenge requests per identifier.
type Throttle interface {
	Allow(ctx context.Context, identifier string) error
}

// AttemptLimiter caps failed OTP verifications per identifier. Check rejects
// once the cap is reached; Record counts one failure.
type AttemptLimiter interface {
	Check(ctx context.Context, identifier string) error
	Record(ctx context.Context, identifier string) error
}

type RequestOTPRequest struct {
	Identifier string `json:"identifier" validate:"required,identifier"`
}

type VerifyOTPRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	OTP        string `json:"otp" validate:"required"`
}

// ChallengeResult is returned by RequestChallenge. OTP is set only when
// code echo is enabled outside production.
type ChallengeResult struct {
	Message string `json:"message"`
	OTP     string `json:"otp,omitempty"`
}

type VerifyResult struct {
	Token string
	User  *domain.User
}

type Service interface {
	RequestChallenge(ctx context.Context, identifier string) (*ChallengeResult, error)
	VerifyChallenge(ctx context.Context, identifier, code string) (*VerifyResult, error)
	Me(ctx context.Context, userID string) (*domain.User, error)
}

// ServiceDeps groups the collaborators of the auth service. Limiter,
// Attempts, Now, NewID, GenerateCode and Logger are optional.
type ServiceDeps struct {
	Store        CredentialStore
	Notifier     notification.Service
	Tokens       TokenSigner
	Hasher       *otp.Hasher
	Limiter      Throttle
	Attempts     AttemptLimiter
	TTL          time.Duration
	EchoOTP      bool
	Now          func() time.Time
	NewID        func() string
	GenerateCode func() (string, error)
	Logger       *zap.Logger
}

type service struct {
	store    CredentialStore
	notifier notification.Service
	tokens   TokenSigner
	hasher   *otp.Hasher
	limiter  Throttle
	attempts AttemptLimiter
	ttl      time.Duration
	echoOTP  bool
	now      func() time.Time
	newID    func() string
	generate func() (string, error)
	log      *zap.Logger
}

func NewService(d ServiceDeps) Service {
	s := &service{
		store:    d.Store,
		notifier: d.Notifier,
		tokens:   d.Tokens,
		hasher:   d.Hasher,
		limiter:  d.Limiter,
		attempts: d.Attempts,
		ttl:      d.TTL,
		echoOTP:  d.EchoOTP,
		now:      d.Now,
		newID:    d.NewID,
		generate: d.GenerateCode,
		log:      d.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = id.New
	}
	if s.generate == nil {
		s.generate = otp.Generate
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.ttl <= 0 {
		s.ttl = 5 * time.Minute
	}
	return s
}

func (s *service) RequestChallenge(ctx context.Context, raw string) (*ChallengeResult, error) {
	identifier := validate.Normalize(raw)
	if identifier == "" {
		metrics.OTPRequests.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("email or phone is required: %w", domain.ErrInvalidIdentifier)
	}
	kind := validate.Classify(identifier)
	if kind == domain.KindInvalid {
		metrics.OTPRequests.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("enter a valid email or phone number: %w", domain.ErrInvalidIdentifier)
	}

	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, identifier); err != nil {
			if errors.Is(err, domain.ErrTooManyRequests) {
				metrics.OTPRequests.WithLabelValues("throttled").Inc()
				return nil, err
			}
			// Counter errors fail open.
			s.log.Warn("otp throttle unavailable", zap.Error(err))
		}
	}

	code, err := s.generate()
	if err != nil {
		metrics.OTPRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	now := s.now().UTC()
	in := domain.ChallengeInput{
		NewUserID:  s.newID(),
		Identifier: identifier,
		Digest:     s.hasher.Digest(code),
		ExpiresAt:  now.Add(s.ttl),
		Now:        now,
	}
	if kind == domain.KindEmail {
		in.Email = &identifier
	} else {
		in.Phone = &identifier
	}

	u, err := s.store.UpsertChallenge(ctx, in)
	if err != nil {
		metrics.OTPRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("store challenge: %w", err)
	}

	result := "sent"
	switch kind {
	case domain.KindEmail:
		if err := s.notifier.SendEmailOTP(ctx, identifier, code); err != nil {
			metrics.OTPRequests.WithLabelValues("delivery_failed").Inc()
			s.log.Error("otp email delivery failed", zap.String("user_id", u.UserID), zap.Error(err))
			return nil, err
		}
	case domain.KindPhone:
		if err := s.notifier.SendSMSOTP(ctx, identifier, code); err != nil {
			if !errors.Is(err, notification.ErrSMSUnavailable) {
				metrics.OTPRequests.WithLabelValues("delivery_failed").Inc()
				s.log.Error("otp sms delivery failed", zap.String("user_id", u.UserID), zap.Error(err))
				return nil, err
			}
			result = "sms_skipped"
			s.log.Warn("phone OTP requested but no SMS provider is configured", zap.String("user_id", u.UserID))
		}
	}

	metrics.OTPRequests.WithLabelValues(result).Inc()
	s.log.Info("otp challenge issued",
		zap.String("user_id", u.UserID),
		zap.Stringer("kind", kind),
		zap.Time("expires_at", in.ExpiresAt),
	)

	res := &ChallengeResult{Message: "OTP sent"}
	if s.echoOTP {
		res.OTP = code
	}
	return res, nil
}

func (s *service) VerifyChallenge(ctx context.Context, raw, rawCode string) (*VerifyResult, error) {
	identifier := validate.Normalize(raw)
	code := strings.TrimSpace(rawCode)
	if identifier == "" || code == "" {
		return nil, fmt.Errorf("identifier and OTP are required: %w", domain.ErrBadRequest)
	}

	if s.attempts != nil {
		if err := s.attempts.Check(ctx, identifier); err != nil {
			if errors.Is(err, domain.ErrTooManyRequests) {
				metrics.OTPVerifications.WithLabelValues("throttled").Inc()
				return nil, err
			}
			s.log.Warn("otp attempt limiter unavailable", zap.Error(err))
		}
	}

	u, err := s.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.OTPVerifications.WithLabelValues("not_found").Inc()
		} else {
			metrics.OTPVerifications.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	if !u.HasActiveChallenge() {
		metrics.OTPVerifications.WithLabelValues("no_challenge").Inc()
		return nil, fmt.Errorf("otp not requested: %w", domain.ErrNoActiveChallenge)
	}

	now := s.now().UTC()
	if now.After(*u.OTPExpiresAt) {
		metrics.OTPVerifications.WithLabelValues("expired").Inc()
		return nil, fmt.Errorf("otp expired at %s: %w", u.OTPExpiresAt.Format(time.RFC3339), domain.ErrExpired)
	}
	if !s.hasher.Matches(code, *u.OTPDigest) {
		metrics.OTPVerifications.WithLabelValues("mismatch").Inc()
		if s.attempts != nil {
			if err := s.attempts.Record(ctx, identifier); err != nil {
				s.log.Warn("otp attempt limiter unavailable", zap.Error(err))
			}
		}
		return nil, domain.ErrMismatch
	}

	verified, err := s.store.ConsumeChallenge(ctx, identifier, *u.OTPDigest, now)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveChallenge) {
			metrics.OTPVerifications.WithLabelValues("no_challenge").Inc()
		} else {
			metrics.OTPVerifications.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	token, err := s.tokens.Sign(verified.UserID)
	if err != nil {
		metrics.OTPVerifications.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("sign token: %w", err)
	}
	metrics.OTPVerifications.WithLabelValues("success").Inc()
	metrics.TokensIssued.Inc()
	s.log.Info("otp verified", zap.String("user_id", verified.UserID))

	return &VerifyResult{Token: token, User: verified}, nil
}

func (s *service) Me(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("token subject %s: %w", userID, domain.ErrUnauthorized)
		}
		return nil, err
	}
	return u, nil
}
