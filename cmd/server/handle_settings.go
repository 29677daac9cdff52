package main

import (
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm/clause"
)

func (s *Server) handleGetDigestSettings(e echo.Context) error {
	user, authed, err := s.currentUser(e)
	if err != nil {
		return err
	}

	if !authed {
		return echo.NewHTTPError(401, "not logged in")
	}

	var setting DigestSetting
	if err := s.db.WithContext(e.Request().Context()).Where("user_id = ?", user.ID).Limit(1).Find(&setting).Error; err != nil {
		return err
	}

	if setting.UserId == "" {
		setting = DigestSetting{
			UserId:   user.ID,
			Enabled:  false,
			Hour:     9,
			Timezone: "UTC",
		}
	}

	return e.JSON(200, setting)
}

func (s *Server) handleUpdateDigestSettings(e echo.Context) error {
	user, authed, err := s.currentUser(e)
	if err != nil {
		return err
	}

	if !authed {
		return echo.NewHTTPError(401, "not logged in")
	}

	var body struct {
		Enabled  bool   `json:"enabled"`
		Hour     int    `json:"hour"`
		Timezone string `json:"timezone"`
	}
	if err := e.Bind(&body); err != nil {
		return echo.NewHTTPError(400, "invalid body")
	}

	if body.Hour < 0 || body.Hour > 23 {
		return echo.NewHTTPError(400, "hour must be between 0 and 23")
	}

	if body.Timezone == "" {
		body.Timezone = "UTC"
	}

	setting := &DigestSetting{
		UserId:   user.ID,
		Enabled:  body.Enabled,
		Hour:     body.Hour,
		Timezone: body.Timezone,
	}

	if err := s.db.WithContext(e.Request().Context()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(setting).Error; err != nil {
		return err
	}

	return e.JSON(200, setting)
}

func (s *Server) handleListTargets(e echo.Context) error {
	user, authed, err := s.currentUser(e)
	if err != nil {
		return err
	}

	if !authed {
		return echo.NewHTTPError(401, "not logged in")
	}

	var targets []TrackedAccount
	if err := s.db.WithContext(e.Request().Context()).Where("user_id = ?", user.ID).Order("created_at asc").Find(&targets).Error; err != nil {
		return err
	}

	return e.JSON(200, targets)
}

func (s *Server) handleAddTarget(e echo.Context) error {
	user, authed, err := s.currentUser(e)
	if err != nil {
		return err
	}

	if !authed {
		return echo.NewHTTPError(401, "not logged in")
	}

	var body struct {
		Handle string `json:"handle"`
	}
	if err := e.Bind(&body); err != nil {
		return echo.NewHTTPError(400, "invalid body")
	}

	handle := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(body.Handle), "@"))
	if handle == "" {
		return echo.NewHTTPError(400, "handle is required")
	}

	target := &TrackedAccount{
		UserId: user.ID,
		Handle: handle,
	}

	if err := s.db.WithContext(e.Request().Context()).Clauses(clause.OnConflict{DoNothing: true}).Create(target).Error; err != nil {
		return err
	}

	return e.JSON(200, target)
}

func (s *Server) handleRemoveTarget(e echo.Context) error {
	user, authed, err := s.currentUser(e)
	if err != nil {
		return err
	}

	if !authed {
		return echo.NewHTTPError(401, "not logged in")
	}

	res := s.db.WithContext(e.Request().Context()).Delete(&TrackedAccount{}, "id = ? AND user_id = ?", e.Param("id"), user.ID)
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return echo.NewHTTPError(404, "target not found")
	}

	return e.NoContent(204)
}
