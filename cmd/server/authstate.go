package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/replydash/replydash/internal/keys"
	"github.com/replydash/replydash/twitter"
)

// The pending authorization request travels between the initiator and the
// callback as a short-lived signed jwt in an http-only cookie. The callback
// verifies the signature and expiry, compares the state it carries against
// the one the provider echoed back, and clears the cookie either way.

const (
	authRequestCookieName = "oauth_request"
	authRequestTTL        = 5 * time.Minute
)

func (s *Server) signAuthRequest(req *twitter.AuthRequest) (string, error) {
	if req == nil {
		return "", fmt.Errorf("nil auth request provided")
	}

	now := time.Now()

	claims := jwt.MapClaims{
		"jti":           uuid.NewString(),
		"state":         req.State,
		"pkce_verifier": req.PkceVerifier,
		"iat":           now.Unix(),
		"exp":           now.Add(authRequestTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = s.signingKey.KeyID()

	pkey, err := keys.PrivateKey(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("could not load signing key: %w", err)
	}

	tokenString, err := token.SignedString(pkey)
	if err != nil {
		return "", fmt.Errorf("failed to sign auth request token: %w", err)
	}

	return tokenString, nil
}

func (s *Server) verifyAuthRequest(tokenString string) (*twitter.AuthRequest, error) {
	pub, err := keys.PublicKey(s.signingKey)
	if err != nil {
		return nil, fmt.Errorf("could not load verification key: %w", err)
	}

	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodES256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return pub, nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not parse auth request token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("auth request token carried no claims")
	}

	state, _ := claims["state"].(string)
	pkceVerifier, _ := claims["pkce_verifier"].(string)

	if state == "" || pkceVerifier == "" {
		return nil, fmt.Errorf("auth request token missing state or verifier")
	}

	return &twitter.AuthRequest{
		State:        state,
		PkceVerifier: pkceVerifier,
	}, nil
}

func (s *Server) setAuthRequestCookie(e echo.Context, tokenString string) {
	e.SetCookie(&http.Cookie{
		Name:     authRequestCookieName,
		Value:    tokenString,
		Path:     "/",
		MaxAge:   int(authRequestTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearAuthRequestCookie(e echo.Context) {
	e.SetCookie(&http.Cookie{
		Name:     authRequestCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
