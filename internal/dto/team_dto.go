package dto

import (
	"time"

	"github.com/noah-isme/gema-contest-api/internal/models"
)

// TeamCreateRequest registers a team.
type TeamCreateRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

// TeamResponse is a team as seen on the leaderboard.
type TeamResponse struct {
	ID        uint      `json:"id"`
	Rank      int       `json:"rank,omitempty"`
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTeamResponse converts a Team model into a DTO.
func NewTeamResponse(model models.Team) TeamResponse {
	return TeamResponse{
		ID:        model.ID,
		Name:      model.Name,
		Score:     model.Score,
		CreatedAt: model.CreatedAt,
	}
}

// NewLeaderboard converts teams already in score order into ranked entries. Tied scores share
// a rank.
func NewLeaderboard(teams []models.Team) []TeamResponse {
	entries := make([]TeamResponse, 0, len(teams))
	for i, team := range teams {
		entry := NewTeamResponse(team)
		entry.Rank = i + 1
		if i > 0 && teams[i-1].Score == team.Score {
			entry.Rank = entries[i-1].Rank
		}
		entries = append(entries, entry)
	}
	return entries
}
