package dto

import "time"

// CompetitionCommandRequest switches the broadcast command and the active round.
type CompetitionCommandRequest struct {
	Command string `json:"command" validate:"required,oneof=normal freeze logout"`
	Round   string `json:"round" validate:"required,oneof=start easy medium wager hard START EASY MEDIUM WAGER HARD"`
}

// BuyImmunityRequest toggles immunity purchases.
type BuyImmunityRequest struct {
	Value string `json:"value" validate:"required,oneof=enabled disabled"`
}

// AnnouncementRequest replaces the announcement list.
type AnnouncementRequest struct {
	Messages []AnnouncementInput `json:"messages" validate:"max=50,dive"`
}

// AnnouncementInput is one announcement as typed by an admin.
type AnnouncementInput struct {
	Message   string `json:"message" validate:"required,max=2000"`
	Timestamp string `json:"timestamp" validate:"omitempty,max=64"`
}

// Announcement is a sanitised announcement.
type Announcement struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// CompetitionSnapshot is the state broadcast to every participant.
type CompetitionSnapshot struct {
	Command        string         `json:"command"`
	BuyImmunity    string         `json:"buyImmunity"`
	Messages       []Announcement `json:"messages"`
	Round          string         `json:"round"`
	TimerRunning   bool           `json:"timer_running"`
	TimerRemaining int64          `json:"timer_remaining_seconds"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
