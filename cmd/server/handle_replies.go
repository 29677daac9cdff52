package main

import (
	"time"

	"github.com/labstack/echo/v4"
)

func (s *Server) handleListReplies(e echo.Context) error {
	user, authed, err := s.currentUser(e)
	if err != nil {
		return err
	}

	if !authed {
		return echo.NewHTTPError(401, "not logged in")
	}

	q := s.db.WithContext(e.Request().Context()).Where("user_id = ?", user.ID)

	if status := e.QueryParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var replies []SuggestedReply
	if err := q.Order("created_at desc").Find(&replies).Error; err != nil {
		return err
	}

	return e.JSON(200, replies)
}

func (s *Server) handleApproveReply(e echo.Context) error {
	return s.updateReplyStatus(e, ReplyStatusApproved)
}

func (s *Server) handleSkipReply(e echo.Context) error {
	return s.updateReplyStatus(e, ReplyStatusSkipped)
}

func (s *Server) updateReplyStatus(e echo.Context, status string) error {
	user, authed, err := s.currentUser(e)
	if err != nil {
		return err
	}

	if !authed {
		return echo.NewHTTPError(401, "not logged in")
	}

	res := s.db.WithContext(e.Request().Context()).
		Model(&SuggestedReply{}).
		Where("id = ? AND user_id = ?", e.Param("id"), user.ID).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return echo.NewHTTPError(404, "reply not found")
	}

	return e.JSON(200, map[string]string{"status": status})
}

func (s *Server) handleEditReply(e echo.Context) error {
	user, authed, err := s.currentUser(e)
	if err != nil {
		return err
	}

	if !authed {
		return echo.NewHTTPError(401, "not logged in")
	}

	var body struct {
		ReplyText string `json:"reply_text"`
	}
	if err := e.Bind(&body); err != nil {
		return echo.NewHTTPError(400, "invalid body")
	}

	if body.ReplyText == "" {
		return echo.NewHTTPError(400, "reply_text is required")
	}

	now := time.Now()

	res := s.db.WithContext(e.Request().Context()).
		Model(&SuggestedReply{}).
		Where("id = ? AND user_id = ?", e.Param("id"), user.ID).
		Updates(map[string]any{
			"reply_text": body.ReplyText,
			"edited_at":  &now,
		})
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return echo.NewHTTPError(404, "reply not found")
	}

	var reply SuggestedReply
	if err := s.db.WithContext(e.Request().Context()).Where("id = ?", e.Param("id")).Limit(1).Find(&reply).Error; err != nil {
		return err
	}

	return e.JSON(200, reply)
}
