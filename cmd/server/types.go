package main

import "time"

type User struct {
	ID            string `gorm:"primaryKey"`
	Email         string `gorm:"uniqueIndex"`
	TwitterId     string `gorm:"uniqueIndex"`
	TwitterHandle string
	DisplayName   string
	AvatarUrl     string
	CreatedAt     time.Time
}

type TwitterCredential struct {
	ID            uint
	UserId        string `gorm:"uniqueIndex"`
	AccessToken   string
	RefreshToken  string
	TwitterId     string
	TwitterHandle string
	ExpiresAt     time.Time
	UpdatedAt     time.Time
}

type Session struct {
	ID        string `gorm:"primaryKey"`
	UserId    string `gorm:"index"`
	CreatedAt time.Time
	ExpiresAt time.Time
}

type TrackedAccount struct {
	ID        uint
	UserId    string `gorm:"index;uniqueIndex:idx_tracked_user_handle"`
	Handle    string `gorm:"uniqueIndex:idx_tracked_user_handle"`
	CreatedAt time.Time
}

type DigestSetting struct {
	ID        uint
	UserId    string `gorm:"uniqueIndex"`
	Enabled   bool
	Hour      int
	Timezone  string
	UpdatedAt time.Time
}

type SuggestedReply struct {
	ID           uint
	UserId       string `gorm:"index"`
	SourcePostId string
	SourceText   string
	ReplyText    string
	Status       string `gorm:"index;default:pending"`
	EditedAt     *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const (
	ReplyStatusPending  = "pending"
	ReplyStatusApproved = "approved"
	ReplyStatusSkipped  = "skipped"
)
