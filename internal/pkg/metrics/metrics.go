// Package metrics exposes Prometheus counters for the OTP login flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// otp_requests_total{result}: sent, sms_skipped, invalid, throttled, delivery_failed, error
	OTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_requests_total",
			Help: "Total number of OTP challenge requests, by result.",
		},
		[]string{"result"},
	)

	// otp_verifications_total{result}: success, not_found, no_challenge, expired, mismatch, error
	OTPVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_verifications_total",
			Help: "Total number of OTP verification attempts, by result.",
		},
		[]string{"result"},
	)

	TokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_tokens_issued_total",
			Help: "Total number of session tokens issued.",
		},
	)
)
