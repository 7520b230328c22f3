package notification

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/productr-api/internal/domain"
	"github.com/productr-api/internal/infrastructure/smtp"
	"github.com/productr-api/internal/infrastructure/sns"
)

// ErrSMSUnavailable is returned by SendSMSOTP when no SMS provider is configured.
var ErrSMSUnavailable = errors.New("sms delivery not configured")

const otpSubject = "Your Productr OTP"

// Service delivers one-time codes to users.
type Service interface {
	SendEmailOTP(ctx context.Context, to, code string) error
	SendSMSOTP(ctx context.Context, phone, code string) error
}

type service struct {
	mailer smtp.Mailer
	sms    sns.SMSSender // nil when SMS_ENABLED is false
}

func NewService(mailer smtp.Mailer, sms sns.SMSSender) Service {
	return &service{mailer: mailer, sms: sms}
}

func (s *service) SendEmailOTP(ctx context.Context, to, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := smtp.Message{
		To:      to,
		Subject: otpSubject,
		Text:    fmt.Sprintf("Your OTP is %s. It expires soon.", code),
		HTML:    otpHTML(code),
	}
	if err := s.mailer.Send(msg); err != nil {
		return fmt.Errorf("send otp email: %v: %w", err, domain.ErrDeliveryFailure)
	}
	return nil
}

func (s *service) SendSMSOTP(ctx context.Context, phone, code string) error {
	if s.sms == nil {
		return ErrSMSUnavailable
	}
	if err := s.sms.SendSMS(ctx, phone, "Your Productr OTP is "+code); err != nil {
		return fmt.Errorf("send otp sms: %v: %w", err, domain.ErrDeliveryFailure)
	}
	return nil
}

func otpHTML(code string) string {
	return `<div style="font-family:Arial;">
  <h2>Productr OTP</h2>
  <p>Your OTP is: <b style="font-size:18px;">` + html.EscapeString(code) + `</b></p>
  <p>This OTP will expire in a few minutes.</p>
</div>`
}
