package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/productr-api/internal/application/auth"
	"github.com/productr-api/internal/domain"
	"github.com/productr-api/internal/pkg/validate"
	"github.com/productr-api/internal/transport/http/middleware"
)

const (
	msgIdentifierRequired = "Email or Phone is required"
	msgInvalidIdentifier  = "Enter valid Email or Phone number"
	msgVerifyRequired     = "Identifier and OTP are required"
	msgBadBody            = "Invalid request body"
	msgBodyTooLarge       = "Request body too large"
	// Shared by every verification failure.
	msgInvalidOTP      = "Invalid or expired OTP. Please request a new one."
	msgTooMany         = "Too many attempts. Please try again later."
	msgDeliveryFailure = "Could not send OTP. Please try again."
	msgUnauthorized    = "Unauthorized"
	msgServerError     = "Server error"
)

// maxBodyBytes caps the JSON bodies of the OTP endpoints.
const maxBodyBytes = 4 << 10

// AuthHandler serves the OTP login endpoints.
type AuthHandler struct {
	svc auth.Service
	log *zap.Logger
}

func NewAuthHandler(svc auth.Service, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{svc: svc, log: log}
}

func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req auth.RequestOTPRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if validate.Normalize(req.Identifier) == "" {
		writeError(w, http.StatusBadRequest, msgIdentifierRequired)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidIdentifier)
		return
	}
	res, err := h.svc.RequestChallenge(r.Context(), req.Identifier)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyOTPRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, msgVerifyRequired)
		return
	}
	res, err := h.svc.VerifyChallenge(r.Context(), req.Identifier, req.OTP)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginEnvelope{
		Message: "Login success",
		Token:   res.Token,
		User:    toSafeUser(res.User),
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	u, err := h.svc.Me(r.Context(), claims.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileEnvelope{User: u})
}

// decodeBody reads at most maxBodyBytes of JSON into dst and writes the 4xx
// itself when it cannot.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
	} else {
		writeError(w, http.StatusBadRequest, msgBadBody)
	}
	return false
}

// writeServiceError maps domain errors to status codes and client-safe messages.
func (h *AuthHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidIdentifier):
		writeError(w, http.StatusBadRequest, msgInvalidIdentifier)
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, msgVerifyRequired)
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrNoActiveChallenge),
		errors.Is(err, domain.ErrExpired),
		errors.Is(err, domain.ErrMismatch):
		writeError(w, http.StatusBadRequest, msgInvalidOTP)
	case errors.Is(err, domain.ErrTooManyRequests):
		writeError(w, http.StatusTooManyRequests, msgTooMany)
	case errors.Is(err, domain.ErrDeliveryFailure):
		writeError(w, http.StatusBadGateway, msgDeliveryFailure)
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
	default:
		h.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, msgServerError)
	}
}
