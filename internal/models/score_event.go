package models

import (
	"time"

	"gorm.io/datatypes"
)

// ScoreEvent records one delta applied to a team total by grading.
type ScoreEvent struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	TeamID         uint              `gorm:"index;not null" json:"team_id"`
	SubmissionID   uint              `gorm:"index;not null" json:"submission_id"`
	ProblemID      uint              `gorm:"not null" json:"problem_id"`
	Round          Round             `gorm:"size:16;not null" json:"round"`
	Delta          int               `gorm:"not null" json:"delta"`
	OldRoundCredit int               `gorm:"not null" json:"old_round_credit"`
	NewRoundCredit int               `gorm:"not null" json:"new_round_credit"`
	TeamScore      int               `gorm:"not null" json:"team_score"`
	JudgeID        string            `gorm:"size:64" json:"judge_id"`
	Details        datatypes.JSONMap `json:"details"`
	CreatedAt      time.Time         `json:"created_at"`
}
