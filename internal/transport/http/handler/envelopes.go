package handler

import (
	"encoding/json"
	"net/http"

	"github.com/productr-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message"`
}

// LoginEnvelope wraps a successful OTP verification.
type LoginEnvelope struct {
	Message string    `json:"message"`
	Token   string    `json:"token"`
	User    *SafeUser `json:"user"`
}

// ProfileEnvelope wraps /me responses.
type ProfileEnvelope struct {
	User *domain.User `json:"user"`
}

// SafeUser is the login-response view of a user.
type SafeUser struct {
	ID         string  `json:"id"`
	Identifier string  `json:"identifier"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
}

func toSafeUser(u *domain.User) *SafeUser {
	if u == nil {
		return nil
	}
	return &SafeUser{ID: u.UserID, Identifier: u.Identifier, Email: u.Email, Phone: u.Phone}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Message: msg})
}
