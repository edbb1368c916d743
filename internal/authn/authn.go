// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package authn validates the bearer token an external auth subsystem
// already issued; it never issues or rotates credentials itself (that
// subsystem is out of scope, per spec.md §1). JWKS keys are fetched and
// auto-refreshed in the background, the same caching approach the
// teacher's JWT validator uses.
package authn

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/kadirpekel/caseflow/internal/config"
)

// jwksRefreshInterval bounds how often the background cache re-fetches
// the provider's signing keys, so a key rotation is picked up without a
// restart.
const jwksRefreshInterval = 15 * time.Minute

// Claims is the subset of a validated token this pipeline cares about:
// who the request is acting as, for case-ownership checks.
type Claims struct {
	Subject string
}

type contextKey string

const claimsContextKey contextKey = "caseflow-claims"

// ClaimsFromContext returns the claims a prior call to Middleware
// attached to ctx, or nil if the request was never authenticated (only
// possible when auth is disabled).
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey).(*Claims)
	return claims
}

// Validator validates a bearer token against a provider's JWKS.
type Validator struct {
	cache    *jwk.Cache
	jwksURL  string
	issuer   string
	audience string
}

// NewValidator builds a Validator that fetches and caches JWKS from
// cfg.JWKSURL. cfg.Disabled callers should not construct a Validator at
// all; Middleware below is where the bypass is wired in.
func NewValidator(ctx context.Context, cfg *config.AuthConfig) (*Validator, error) {
	cache := jwk.NewCache(ctx)
	if err := cache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(jwksRefreshInterval)); err != nil {
		return nil, fmt.Errorf("registering JWKS url %s: %w", cfg.JWKSURL, err)
	}
	if _, err := cache.Refresh(ctx, cfg.JWKSURL); err != nil {
		return nil, fmt.Errorf("fetching JWKS from %s: %w", cfg.JWKSURL, err)
	}
	return &Validator{cache: cache, jwksURL: cfg.JWKSURL, issuer: cfg.Issuer, audience: cfg.Audience}, nil
}

// Validate parses and verifies tokenString, returning the claims this
// pipeline tracks.
func (v *Validator) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	keyset, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("fetching JWKS: %w", err)
	}

	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKeySet(keyset),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	return &Claims{Subject: token.Subject()}, nil
}

// Middleware validates the Authorization header on every request and
// stores the resulting Claims in the request context. When validator is
// nil (cfg.Disabled in local dev/tests), requests pass through
// unauthenticated and ClaimsFromContext returns nil.
func Middleware(validator *Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if validator == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"missing Authorization header"}`, http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, `{"error":"invalid Authorization format, expected: Bearer <token>"}`, http.StatusUnauthorized)
				return
			}

			claims, err := validator.Validate(r.Context(), tokenString)
			if err != nil {
				http.Error(w, fmt.Sprintf(`{"error":"unauthorized: %s"}`, err.Error()), http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
