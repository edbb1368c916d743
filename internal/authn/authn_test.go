package authn

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/caseflow/internal/config"
)

func generateRSAKeyPair(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key, &key.PublicKey
}

func jwksServer(t *testing.T, publicKey *rsa.PublicKey) *httptest.Server {
	t.Helper()
	key, err := jwk.FromRaw(publicKey)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, "test-key"))
	require.NoError(t, key.Set(jwk.AlgorithmKey, jwa.RS256))

	keyset := jwk.NewSet()
	require.NoError(t, keyset.AddKey(key))

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := json.Marshal(keyset)
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
}

func signToken(t *testing.T, privateKey *rsa.PrivateKey, issuer, audience, subject string, expiresAt time.Time) string {
	t.Helper()
	token := jwt.New()
	require.NoError(t, token.Set(jwt.IssuerKey, issuer))
	require.NoError(t, token.Set(jwt.AudienceKey, audience))
	require.NoError(t, token.Set(jwt.SubjectKey, subject))
	require.NoError(t, token.Set(jwt.IssuedAtKey, time.Now()))
	require.NoError(t, token.Set(jwt.ExpirationKey, expiresAt))

	key, err := jwk.FromRaw(privateKey)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, "test-key"))

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, key))
	require.NoError(t, err)
	return string(signed)
}

func TestValidateAcceptsWellFormedToken(t *testing.T) {
	privateKey, publicKey := generateRSAKeyPair(t)
	srv := jwksServer(t, publicKey)
	defer srv.Close()

	validator, err := NewValidator(context.Background(), &config.AuthConfig{
		JWKSURL:  srv.URL,
		Issuer:   "https://issuer.example",
		Audience: "caseflow",
	})
	require.NoError(t, err)

	token := signToken(t, privateKey, "https://issuer.example", "caseflow", "user-1", time.Now().Add(time.Hour))
	claims, err := validator.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	privateKey, publicKey := generateRSAKeyPair(t)
	srv := jwksServer(t, publicKey)
	defer srv.Close()

	validator, err := NewValidator(context.Background(), &config.AuthConfig{
		JWKSURL:  srv.URL,
		Issuer:   "https://issuer.example",
		Audience: "caseflow",
	})
	require.NoError(t, err)

	token := signToken(t, privateKey, "https://issuer.example", "caseflow", "user-1", time.Now().Add(-time.Hour))
	_, err = validator.Validate(context.Background(), token)
	assert.Error(t, err)
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	privateKey, publicKey := generateRSAKeyPair(t)
	srv := jwksServer(t, publicKey)
	defer srv.Close()

	validator, err := NewValidator(context.Background(), &config.AuthConfig{
		JWKSURL:  srv.URL,
		Issuer:   "https://issuer.example",
		Audience: "caseflow",
	})
	require.NoError(t, err)

	token := signToken(t, privateKey, "https://wrong-issuer.example", "caseflow", "user-1", time.Now().Add(time.Hour))
	_, err = validator.Validate(context.Background(), token)
	assert.Error(t, err)
}

func TestMiddlewareRejectsMissingHeader(t *testing.T) {
	privateKey, publicKey := generateRSAKeyPair(t)
	srv := jwksServer(t, publicKey)
	defer srv.Close()
	_ = privateKey

	validator, err := NewValidator(context.Background(), &config.AuthConfig{
		JWKSURL:  srv.URL,
		Issuer:   "https://issuer.example",
		Audience: "caseflow",
	})
	require.NoError(t, err)

	handler := Middleware(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareAttachesClaimsOnSuccess(t *testing.T) {
	privateKey, publicKey := generateRSAKeyPair(t)
	srv := jwksServer(t, publicKey)
	defer srv.Close()

	validator, err := NewValidator(context.Background(), &config.AuthConfig{
		JWKSURL:  srv.URL,
		Issuer:   "https://issuer.example",
		Audience: "caseflow",
	})
	require.NoError(t, err)

	var gotSubject string
	handler := Middleware(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = ClaimsFromContext(r.Context()).Subject
		w.WriteHeader(http.StatusOK)
	}))

	token := signToken(t, privateKey, "https://issuer.example", "caseflow", "user-42", time.Now().Add(time.Hour))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-42", gotSubject)
}

func TestMiddlewarePassesThroughWhenValidatorNil(t *testing.T) {
	called := false
	handler := Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Nil(t, ClaimsFromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}
