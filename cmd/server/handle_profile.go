package main

import (
	"github.com/labstack/echo/v4"
)

func (s *Server) handleIndex(e echo.Context) error {
	user, authed, err := s.currentUser(e)
	if err != nil {
		return err
	}

	if !authed {
		return e.Redirect(302, "/auth/twitter?action=login")
	}

	ctx := e.Request().Context()

	var pendingReplies int64
	if err := s.db.WithContext(ctx).Model(&SuggestedReply{}).Where("user_id = ? AND status = ?", user.ID, ReplyStatusPending).Count(&pendingReplies).Error; err != nil {
		return err
	}

	var trackedAccounts int64
	if err := s.db.WithContext(ctx).Model(&TrackedAccount{}).Where("user_id = ?", user.ID).Count(&trackedAccounts).Error; err != nil {
		return err
	}

	return e.JSON(200, map[string]any{
		"user": map[string]any{
			"id":             user.ID,
			"twitter_handle": user.TwitterHandle,
			"display_name":   user.DisplayName,
			"avatar_url":     user.AvatarUrl,
		},
		"pending_replies":  pendingReplies,
		"tracked_accounts": trackedAccounts,
	})
}

// handleProfile fetches the connected account fresh from the provider using
// the stored credential.
func (s *Server) handleProfile(e echo.Context) error {
	user, authed, err := s.currentUser(e)
	if err != nil {
		return err
	}

	if !authed {
		return e.Redirect(302, "/auth/twitter?action=login")
	}

	cred, err := s.getCredential(e.Request().Context(), user.ID)
	if err != nil {
		return err
	}

	profile, err := s.twitter.FetchProfile(e.Request().Context(), cred.AccessToken)
	if err != nil {
		return err
	}

	return e.JSON(200, profile)
}
