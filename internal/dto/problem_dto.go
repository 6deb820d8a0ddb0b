package dto

import (
	"time"

	"github.com/noah-isme/gema-contest-api/internal/models"
)

// ProblemCreateRequest defines a problem. Problems cannot be edited once created.
type ProblemCreateRequest struct {
	Title          string `json:"title" validate:"required,max=255"`
	Description    string `json:"description" validate:"omitempty,max=20000"`
	Difficulty     string `json:"difficulty" validate:"required,oneof=easy medium wager hard EASY MEDIUM WAGER HARD"`
	PossiblePoints int    `json:"possible_points" validate:"required,gt=0"`
	TotalCases     int    `json:"total_cases" validate:"required,gt=0"`
}

// ProblemFilter narrows problem listings.
type ProblemFilter struct {
	Difficulty string `query:"difficulty" validate:"omitempty,oneof=easy medium wager hard EASY MEDIUM WAGER HARD"`
}

// ProblemResponse is the public view of a problem.
type ProblemResponse struct {
	ID             uint      `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Difficulty     string    `json:"difficulty"`
	PossiblePoints int       `json:"possible_points"`
	TotalCases     int       `json:"total_cases"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewProblemResponse converts a Problem model into a DTO.
func NewProblemResponse(model models.Problem) ProblemResponse {
	return ProblemResponse{
		ID:             model.ID,
		Title:          model.Title,
		Description:    model.Description,
		Difficulty:     string(model.Difficulty),
		PossiblePoints: model.PossiblePoints,
		TotalCases:     model.TotalCases,
		CreatedAt:      model.CreatedAt,
	}
}

// NewProblemResponseSlice converts problems into DTOs.
func NewProblemResponseSlice(items []models.Problem) []ProblemResponse {
	responses := make([]ProblemResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewProblemResponse(item))
	}
	return responses
}
