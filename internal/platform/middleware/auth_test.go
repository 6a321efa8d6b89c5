package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "test-signing-key"

func signToken(t *testing.T, subject, actorType string) string {
	t.Helper()
	claims := actorClaims{
		ActorType: actorType,
		Name:      "Test Actor",
		Email:     "actor@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSigningKey))
	require.NoError(t, err)
	return signed
}

func runAuth(t *testing.T, authorization string) (*httptest.ResponseRecorder, Identity, bool) {
	t.Helper()
	var captured Identity
	var found bool
	handler := Auth(testSigningKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, found = GetIdentity(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/consents", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, captured, found
}

func TestAuth_ValidToken(t *testing.T) {
	rec, identity, found := runAuth(t, "Bearer "+signToken(t, "user-1", "principal"))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, found)
	assert.Equal(t, "user-1", identity.ID)
	assert.Equal(t, ActorPrincipal, identity.Type)
	assert.Equal(t, "actor@example.com", identity.Email)
}

func TestAuth_MissingToken(t *testing.T) {
	rec, _, found := runAuth(t, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, found)
}

func TestAuth_BadSignature(t *testing.T) {
	claims := jwt.RegisteredClaims{Subject: "user-1"}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("wrong-key"))
	require.NoError(t, err)

	rec, _, _ := runAuth(t, "Bearer "+signed)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_UnknownActorType(t *testing.T) {
	rec, _, _ := runAuth(t, "Bearer "+signToken(t, "user-1", "robot"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
