package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/productr-api/internal/application/auth"
	"github.com/productr-api/internal/domain"
	jwtinfra "github.com/productr-api/internal/infrastructure/jwt"
	"github.com/productr-api/internal/transport/http/middleware"
)

// --- mock ---

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) RequestChallenge(ctx context.Context, identifier string) (*auth.ChallengeResult, error) {
	args := m.Called(ctx, identifier)
	if r, _ := args.Get(0).(*auth.ChallengeResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) VerifyChallenge(ctx context.Context, identifier, code string) (*auth.VerifyResult, error) {
	args := m.Called(ctx, identifier, code)
	if r, _ := args.Get(0).(*auth.VerifyResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) Me(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decodeMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var env MessageEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env.Message
}

// --- RequestOTP ---

func TestRequestOTP_OK(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("RequestChallenge", mock.Anything, "a@b.com").
		Return(&auth.ChallengeResult{Message: "OTP sent"}, nil)

	rr := post(NewAuthHandler(svc, nil).RequestOTP, `{"identifier":"a@b.com"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"OTP sent"}`, rr.Body.String())
}

func TestRequestOTP_EchoedCode(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("RequestChallenge", mock.Anything, "a@b.com").
		Return(&auth.ChallengeResult{Message: "OTP sent", OTP: "123456"}, nil)

	rr := post(NewAuthHandler(svc, nil).RequestOTP, `{"identifier":"a@b.com"}`)
	assert.JSONEq(t, `{"message":"OTP sent","otp":"123456"}`, rr.Body.String())
}

func TestRequestOTP_MissingIdentifier(t *testing.T) {
	svc := new(mockAuthSvc)
	rr := post(NewAuthHandler(svc, nil).RequestOTP, `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, msgIdentifierRequired, decodeMessage(t, rr))
	svc.AssertNotCalled(t, "RequestChallenge", mock.Anything, mock.Anything)
}

func TestRequestOTP_MalformedBody(t *testing.T) {
	rr := post(NewAuthHandler(new(mockAuthSvc), nil).RequestOTP, `{"identifier":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, msgBadBody, decodeMessage(t, rr))
}

func TestRequestOTP_RejectsInvalidIdentifierBeforeService(t *testing.T) {
	for _, id := range []string{"12345", "not-an-email", "a@b"} {
		t.Run(id, func(t *testing.T) {
			svc := new(mockAuthSvc)
			rr := post(NewAuthHandler(svc, nil).RequestOTP, `{"identifier":"`+id+`"}`)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, msgInvalidIdentifier, decodeMessage(t, rr))
			svc.AssertNotCalled(t, "RequestChallenge", mock.Anything, mock.Anything)
		})
	}
}

func TestRequestOTP_BlankIdentifierIsRequired(t *testing.T) {
	svc := new(mockAuthSvc)
	rr := post(NewAuthHandler(svc, nil).RequestOTP, `{"identifier":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, msgIdentifierRequired, decodeMessage(t, rr))
	svc.AssertNotCalled(t, "RequestChallenge", mock.Anything, mock.Anything)
}

func TestRequestOTP_OversizedBody(t *testing.T) {
	svc := new(mockAuthSvc)
	body := `{"identifier":"a@b.com","pad":"` + strings.Repeat("x", maxBodyBytes) + `"}`

	rr := post(NewAuthHandler(svc, nil).RequestOTP, body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Equal(t, msgBodyTooLarge, decodeMessage(t, rr))
	svc.AssertNotCalled(t, "RequestChallenge", mock.Anything, mock.Anything)
}

func TestVerifyOTP_OversizedBody(t *testing.T) {
	svc := new(mockAuthSvc)
	body := `{"identifier":"a@b.com","otp":"` + strings.Repeat("1", 2*maxBodyBytes) + `"}`

	rr := post(NewAuthHandler(svc, nil).VerifyOTP, body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	svc.AssertNotCalled(t, "VerifyChallenge", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestOTP_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{domain.ErrInvalidIdentifier, http.StatusBadRequest, msgInvalidIdentifier},
		{domain.ErrTooManyRequests, http.StatusTooManyRequests, msgTooMany},
		{domain.ErrDeliveryFailure, http.StatusBadGateway, msgDeliveryFailure},
		{errors.New("dynamo down"), http.StatusInternalServerError, msgServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			svc := new(mockAuthSvc)
			svc.On("RequestChallenge", mock.Anything, mock.Anything).Return(nil, tc.err)

			rr := post(NewAuthHandler(svc, nil).RequestOTP, `{"identifier":"a@b.com"}`)
			assert.Equal(t, tc.status, rr.Code)
			assert.Equal(t, tc.msg, decodeMessage(t, rr))
		})
	}
}

// --- VerifyOTP ---

func TestVerifyOTP_OK(t *testing.T) {
	email := "a@b.com"
	svc := new(mockAuthSvc)
	svc.On("VerifyChallenge", mock.Anything, "a@b.com", "123456").Return(&auth.VerifyResult{
		Token: "tok",
		User:  &domain.User{UserID: "u1", Identifier: email, Email: &email, IsVerified: true},
	}, nil)

	rr := post(NewAuthHandler(svc, nil).VerifyOTP, `{"identifier":"a@b.com","otp":"123456"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"message":"Login success",
		"token":"tok",
		"user":{"id":"u1","identifier":"a@b.com","email":"a@b.com","phone":null}
	}`, rr.Body.String())
}

func TestVerifyOTP_MissingOTP(t *testing.T) {
	svc := new(mockAuthSvc)
	rr := post(NewAuthHandler(svc, nil).VerifyOTP, `{"identifier":"a@b.com"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, msgVerifyRequired, decodeMessage(t, rr))
}

func TestVerifyOTP_FailuresShareOneMessage(t *testing.T) {
	for _, e := range []error{domain.ErrNotFound, domain.ErrNoActiveChallenge, domain.ErrExpired, domain.ErrMismatch} {
		svc := new(mockAuthSvc)
		svc.On("VerifyChallenge", mock.Anything, mock.Anything, mock.Anything).Return(nil, e)

		rr := post(NewAuthHandler(svc, nil).VerifyOTP, `{"identifier":"a@b.com","otp":"000000"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code, e.Error())
		assert.Equal(t, msgInvalidOTP, decodeMessage(t, rr), e.Error())
	}
}

// --- Me ---

func TestMe_ReturnsProfileWithoutChallenge(t *testing.T) {
	digest := "secret-digest"
	svc := new(mockAuthSvc)
	svc.On("Me", mock.Anything, "u1").
		Return(&domain.User{UserID: "u1", Identifier: "a@b.com", OTPDigest: &digest}, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), middleware.ClaimsKey, &jwtinfra.Claims{UserID: "u1"})
	rr := httptest.NewRecorder()
	NewAuthHandler(svc, nil).Me(rr, req.WithContext(ctx))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"id":"u1"`)
	assert.NotContains(t, rr.Body.String(), digest)
}

func TestMe_UnknownSubjectIsUnauthorized(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("Me", mock.Anything, "ghost").Return(nil, domain.ErrUnauthorized)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), middleware.ClaimsKey, &jwtinfra.Claims{UserID: "ghost"})
	rr := httptest.NewRecorder()
	NewAuthHandler(svc, nil).Me(rr, req.WithContext(ctx))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMe_NoClaims(t *testing.T) {
	rr := httptest.NewRecorder()
	NewAuthHandler(new(mockAuthSvc), nil).Me(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
