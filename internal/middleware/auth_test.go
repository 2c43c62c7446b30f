package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"race-kart/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-jwt-secret")

func TestAuthenticate(t *testing.T) {
	user := model.Owner{UserID: "user-1", Email: "ana@example.com", Name: "Ana"}

	valid, err := SignToken(testSecret, user, time.Hour)
	require.NoError(t, err)
	expired, err := SignToken(testSecret, user, -time.Minute)
	require.NoError(t, err)
	wrongKey, err := SignToken([]byte("other-secret"), user, time.Hour)
	require.NoError(t, err)
	noSubject, err := SignToken(testSecret, model.Owner{Email: "x@example.com"}, time.Hour)
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-1"}).SignedString(testSecret)
	require.NoError(t, err)
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name           string
		header         string
		expectedStatus int
		expectUser     bool
		expectHandler  bool
	}{
		{name: "No header continues as guest", header: "", expectedStatus: http.StatusOK, expectHandler: true},
		{name: "Valid token", header: "Bearer " + valid, expectedStatus: http.StatusOK, expectHandler: true, expectUser: true},
		{name: "Not a bearer token", header: "Basic abc", expectedStatus: http.StatusUnauthorized},
		{name: "Empty bearer token", header: "Bearer ", expectedStatus: http.StatusUnauthorized},
		{name: "Expired token", header: "Bearer " + expired, expectedStatus: http.StatusUnauthorized},
		{name: "Wrong signing key", header: "Bearer " + wrongKey, expectedStatus: http.StatusUnauthorized},
		{name: "Missing subject", header: "Bearer " + noSubject, expectedStatus: http.StatusUnauthorized},
		{name: "Missing expiry", header: "Bearer " + noExpiry, expectedStatus: http.StatusUnauthorized},
		{name: "Unexpected algorithm", header: "Bearer " + hs512, expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlerCalled := false
			var gotUser model.Owner
			var gotOK bool
			handler := Authenticate(testSecret, zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
				gotUser, gotOK = UserFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectHandler, handlerCalled)
			assert.Equal(t, tt.expectUser, gotOK)
			if tt.expectUser {
				assert.Equal(t, user, gotUser)
			}
		})
	}
}

func TestRequireUser(t *testing.T) {
	tests := []struct {
		name           string
		ctx            context.Context
		expectedStatus int
	}{
		{name: "Authenticated", ctx: WithUser(context.Background(), model.Owner{UserID: "user-1"}), expectedStatus: http.StatusOK},
		{name: "Guest", ctx: context.Background(), expectedStatus: http.StatusUnauthorized},
		{name: "Owner without user id", ctx: WithUser(context.Background(), model.Owner{SessionID: "s-1"}), expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/checkout", nil).WithContext(tt.ctx)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}
