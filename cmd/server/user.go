package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm/clause"

	"github.com/replydash/replydash/internal/helpers"
	"github.com/replydash/replydash/twitter"
)

// resolveUser creates or looks up the local user for a provider identity.
// Creation is an upsert against the unique twitter_id constraint, so repeated
// or concurrent callbacks for the same identity always land on one record.
// The provider id is the authoritative key; the email only bootstraps first
// creation.
func (s *Server) resolveUser(ctx context.Context, profile *twitter.Profile) (*User, error) {
	email := profile.ConfirmedEmail
	if email == "" {
		email = helpers.PlaceholderEmail(profile.Id)
	}

	newUser := &User{
		ID:            uuid.NewString(),
		Email:         email,
		TwitterId:     profile.Id,
		TwitterHandle: profile.Username,
		DisplayName:   profile.Name,
		AvatarUrl:     profile.ProfileImageUrl,
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(newUser).Error; err != nil {
		return nil, err
	}

	var user User
	if err := s.db.WithContext(ctx).Where("twitter_id = ?", profile.Id).Limit(1).Find(&user).Error; err != nil {
		return nil, err
	}

	if user.ID == "" {
		// The email may already belong to an account connected earlier. The
		// provider id wins, so relink that record rather than duplicating it.
		if err := s.db.WithContext(ctx).Where("email = ?", email).Limit(1).Find(&user).Error; err != nil {
			return nil, err
		}

		if user.ID != "" && user.TwitterId != profile.Id {
			if err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", user.ID).Update("twitter_id", profile.Id).Error; err != nil {
				return nil, err
			}

			user.TwitterId = profile.Id
		}
	}

	if user.ID == "" {
		return nil, nil
	}

	return &user, nil
}

// storeCredentials overwrites any prior credential for the user. Later api
// calls always read the most recent token pair.
func (s *Server) storeCredentials(ctx context.Context, userId string, tokenResp *twitter.TokenResponse, profile *twitter.Profile) error {
	cred := &TwitterCredential{
		UserId:        userId,
		AccessToken:   tokenResp.AccessToken,
		RefreshToken:  tokenResp.RefreshToken,
		TwitterId:     profile.Id,
		TwitterHandle: profile.Username,
		ExpiresAt:     time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(cred).Error
}

// getCredential reads the stored credential for a user, refreshing the token
// pair first when it is about to expire.
func (s *Server) getCredential(ctx context.Context, userId string) (*TwitterCredential, error) {
	var cred TwitterCredential
	if err := s.db.WithContext(ctx).Where("user_id = ?", userId).Limit(1).Find(&cred).Error; err != nil {
		return nil, err
	}

	if cred.UserId == "" {
		return nil, fmt.Errorf("did not find credential for user")
	}

	if time.Until(cred.ExpiresAt) <= 5*time.Minute && cred.RefreshToken != "" {
		resp, err := s.twitter.RefreshToken(ctx, cred.RefreshToken)
		if err != nil {
			return nil, err
		}

		expiration := time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)

		if err := s.db.WithContext(ctx).Model(&TwitterCredential{}).Where("user_id = ?", userId).Updates(map[string]any{
			"access_token":  resp.AccessToken,
			"refresh_token": resp.RefreshToken,
			"expires_at":    expiration,
		}).Error; err != nil {
			return nil, err
		}

		cred.AccessToken = resp.AccessToken
		cred.RefreshToken = resp.RefreshToken
		cred.ExpiresAt = expiration
	}

	return &cred, nil
}

// currentUser is the single session boundary. Every authenticated handler
// routes through it: opaque session id from the cookie, read-through to the
// sessions table, then the user row. No caching between requests.
func (s *Server) currentUser(e echo.Context) (*User, bool, error) {
	sess, err := session.Get("session", e)
	if err != nil {
		return nil, false, err
	}

	sid, ok := sess.Values["session_id"].(string)
	if !ok || sid == "" {
		return nil, false, nil
	}

	ctx := e.Request().Context()

	var dbSession Session
	if err := s.db.WithContext(ctx).Where("id = ?", sid).Limit(1).Find(&dbSession).Error; err != nil {
		return nil, false, err
	}

	if dbSession.ID == "" || time.Now().After(dbSession.ExpiresAt) {
		return nil, false, nil
	}

	var user User
	if err := s.db.WithContext(ctx).Where("id = ?", dbSession.UserId).Limit(1).Find(&user).Error; err != nil {
		return nil, false, err
	}

	if user.ID == "" {
		return nil, false, nil
	}

	return &user, true, nil
}
