package models

import (
	"strings"
	"time"
)

// Round names a competition phase. Problems carry the round they belong to as their difficulty.
type Round string

const (
	RoundStart  Round = "start"
	RoundEasy   Round = "easy"
	RoundMedium Round = "medium"
	RoundWager  Round = "wager"
	RoundHard   Round = "hard"
)

// ProblemRounds lists the rounds that hold problems, in competition order.
var ProblemRounds = []Round{RoundEasy, RoundMedium, RoundWager, RoundHard}

// ParseRound normalises a round name. The boolean is false for unknown names.
func ParseRound(value string) (Round, bool) {
	round := Round(strings.ToLower(strings.TrimSpace(value)))
	switch round {
	case RoundStart, RoundEasy, RoundMedium, RoundWager, RoundHard:
		return round, true
	default:
		return "", false
	}
}

// HasProblems reports whether submissions can be made during the round.
func (r Round) HasProblems() bool {
	for _, candidate := range ProblemRounds {
		if r == candidate {
			return true
		}
	}
	return false
}

// Problem is a task teams solve during a round.
type Problem struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Title          string    `gorm:"size:255;not null" json:"title"`
	Description    string    `gorm:"type:text" json:"description"`
	Difficulty     Round     `gorm:"size:16;index;not null" json:"difficulty"`
	PossiblePoints int       `gorm:"not null" json:"possible_points"`
	TotalCases     int       `gorm:"not null" json:"total_cases"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
