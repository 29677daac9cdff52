package main

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"github.com/replydash/replydash/twitter"
)

func errorRedirect(code string) string {
	return fmt.Sprintf("/auth/error?error=%s", url.QueryEscape(code))
}

func (s *Server) handleLogin(e echo.Context) error {
	if e.QueryParam("action") != "login" {
		return echo.NewHTTPError(400, "unknown action")
	}

	authRequest, err := twitter.NewAuthRequest()
	if err != nil {
		return err
	}

	authURL, err := s.twitter.AuthorizationURL(authRequest, twitter.DefaultScope)
	if err != nil {
		return err
	}

	tokenString, err := s.signAuthRequest(authRequest)
	if err != nil {
		return err
	}

	s.setAuthRequestCookie(e, tokenString)

	return e.Redirect(302, authURL)
}

func (s *Server) handleCallback(e echo.Context) error {
	target, err := s.completeCallback(e)
	if err != nil {
		slog.Error("oauth callback failed", "error", err)
		return e.Redirect(302, errorRedirect("callback_error"))
	}

	return e.Redirect(302, target)
}

// completeCallback runs the linear callback sequence: error passthrough,
// state validation, code exchange, profile fetch, user resolution, credential
// persistence, session creation. Every known failure returns the error page
// redirect carrying its code; anything unexpected bubbles to handleCallback
// and becomes callback_error.
func (s *Server) completeCallback(e echo.Context) (string, error) {
	ctx := e.Request().Context()

	if resError := e.QueryParam("error"); resError != "" {
		return errorRedirect(resError), nil
	}

	resCode := e.QueryParam("code")
	if resCode == "" {
		return errorRedirect("no_code"), nil
	}

	cookie, err := e.Cookie(authRequestCookieName)

	// single use either way
	s.clearAuthRequestCookie(e)

	if err != nil || cookie.Value == "" {
		slog.Warn("callback received without a pending auth request")
		return errorRedirect("state_mismatch"), nil
	}

	authRequest, err := s.verifyAuthRequest(cookie.Value)
	if err != nil {
		slog.Warn("could not verify auth request token", "error", err)
		return errorRedirect("state_mismatch"), nil
	}

	if e.QueryParam("state") != authRequest.State {
		slog.Warn("callback state does not match issued state")
		return errorRedirect("state_mismatch"), nil
	}

	tokenResp, err := s.twitter.ExchangeCode(ctx, resCode, authRequest.PkceVerifier)
	if err != nil {
		slog.Warn("token exchange failed", "error", err)
		return errorRedirect("token_exchange_failed"), nil
	}

	profile, err := s.twitter.FetchProfile(ctx, tokenResp.AccessToken)
	if err != nil {
		slog.Warn("profile fetch failed", "error", err)
		return errorRedirect("profile_fetch_failed"), nil
	}

	user, err := s.resolveUser(ctx, profile)
	if err != nil {
		slog.Error("could not create or look up user", "twitter_id", profile.Id, "error", err)
		return errorRedirect("user_creation_failed"), nil
	}

	if user == nil || user.ID == "" {
		return errorRedirect("user_id_missing"), nil
	}

	// A failure past this point leaves the user without usable credentials,
	// so it is surfaced rather than swallowed. The next login re-resolves the
	// same user and re-persists.
	if err := s.storeCredentials(ctx, user.ID, tokenResp, profile); err != nil {
		return "", fmt.Errorf("could not store credentials for user %s: %w", user.ID, err)
	}

	if err := s.createSession(e, user.ID); err != nil {
		slog.Error("could not create session", "user_id", user.ID, "error", err)
		return errorRedirect("session_creation_failed"), nil
	}

	return "/", nil
}

func (s *Server) createSession(e echo.Context, userId string) error {
	dbSession := &Session{
		ID:        uuid.NewString(),
		UserId:    userId,
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	}

	if err := s.db.WithContext(e.Request().Context()).Create(dbSession).Error; err != nil {
		return err
	}

	sess, err := session.Get("session", e)
	if err != nil {
		return err
	}

	sess.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
	}

	// make sure the session is empty
	sess.Values = map[interface{}]interface{}{}
	sess.Values["session_id"] = dbSession.ID

	return sess.Save(e.Request(), e.Response())
}

func (s *Server) handleLogout(e echo.Context) error {
	sess, err := session.Get("session", e)
	if err != nil {
		return err
	}

	if sid, ok := sess.Values["session_id"].(string); ok && sid != "" {
		if err := s.db.WithContext(e.Request().Context()).Delete(&Session{}, "id = ?", sid).Error; err != nil {
			return err
		}
	}

	sess.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	}

	if err := sess.Save(e.Request(), e.Response()); err != nil {
		return err
	}

	return e.Redirect(302, "/")
}

func (s *Server) handleAuthError(e echo.Context) error {
	code := e.QueryParam("error")
	if code == "" {
		code = "unknown_error"
	}

	return e.JSON(200, map[string]string{"error": code})
}
