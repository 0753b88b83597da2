package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/UkralStul/discussion-forum/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuardedHandler(t *testing.T) (http.Handler, *TokenService) {
	t.Helper()
	tokens, _ := newTestTokens(time.Hour)
	guard := NewGuard(tokens)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFrom(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(identity.UserID))
	})
	return guard.Middleware(next), tokens
}

func TestGuard_ValidToken(t *testing.T) {
	handler, tokens := newGuardedHandler(t)
	token, err := tokens.Issue("user-1")
	require.NoError(t, err)

	for _, header := range []string{"Bearer " + token, "bearer " + token, "  Bearer   " + token + " "} {
		req := httptest.NewRequest(http.MethodPost, "/api/posts", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, "header %q", header)
		assert.Equal(t, "user-1", rec.Body.String())
	}
}

func TestGuard_Rejections(t *testing.T) {
	handler, _ := newGuardedHandler(t)

	tests := []struct {
		name      string
		header    string
		code      string
		challenge string
	}{
		{name: "no header", header: "", code: "missing_token", challenge: "Bearer"},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", code: "missing_token", challenge: "Bearer"},
		{name: "bearer without token", header: "Bearer", code: "missing_token", challenge: "Bearer"},
		{name: "garbage token", header: "Bearer not-a-jwt", code: "invalid_token", challenge: `Bearer error="invalid_token"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/posts", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.challenge, rec.Header().Get("WWW-Authenticate"))
			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.code, body["error"])
		})
	}
}

func TestGuard_Authenticate(t *testing.T) {
	tokens, c := newTestTokens(time.Minute)
	guard := NewGuard(tokens)
	token, err := tokens.Issue("user-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err = guard.Authenticate(req)
	assert.ErrorIs(t, err, domain.ErrMissingToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.NotErrorIs(t, err, domain.ErrInvalidToken)

	req.Header.Set("Authorization", "Bearer "+token)
	identity, err := guard.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "user-1", identity.UserID)

	c.t = c.t.Add(time.Minute)
	_, err = guard.Authenticate(req)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
	assert.NotErrorIs(t, err, domain.ErrMissingToken)
}

func TestIdentityFrom_Empty(t *testing.T) {
	_, ok := IdentityFrom(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
