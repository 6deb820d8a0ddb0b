package dto

import (
	"time"

	"github.com/noah-isme/gema-contest-api/internal/models"
)

// SubmissionUploadRequest describes the multipart fields accompanying a source upload.
type SubmissionUploadRequest struct {
	TeamID    uint `form:"team_id" validate:"required,gt=0"`
	ProblemID uint `form:"problem_id" validate:"required,gt=0"`
}

// SubmissionFilter describes query string filters for listing submissions.
type SubmissionFilter struct {
	TeamID    uint `query:"team_id" validate:"required,gt=0"`
	ProblemID uint `query:"problem_id" validate:"required,gt=0"`
}

// SubmissionResponse is returned to API clients when viewing submissions. Source code is
// only served by the content endpoint.
type SubmissionResponse struct {
	ID             uint      `json:"id"`
	DisplayID      uint      `json:"display_id"`
	TeamID         uint      `json:"team_id"`
	TeamName       string    `json:"team_name"`
	ProblemID      uint      `json:"problem_id"`
	ProblemTitle   string    `json:"problem_title"`
	Filename       string    `json:"filename"`
	Status         string    `json:"status"`
	Evaluation     string    `json:"evaluation"`
	TotalTestCases int       `json:"total_test_cases"`
	CorrectCases   int       `json:"correct_cases"`
	PossiblePoints int       `json:"possible_points"`
	Score          int       `json:"score"`
	JudgeID        string    `json:"judge_id"`
	JudgeName      string    `json:"judge_name"`
	Timestamp      time.Time `json:"timestamp"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// LastSubmissionResponse summarises a team's latest attempt at a problem.
type LastSubmissionResponse struct {
	Score      int    `json:"score"`
	Status     string `json:"status"`
	CheckedBy  string `json:"checked_by"`
	Evaluation string `json:"evaluation"`
}

// SubmissionContentResponse carries the uploaded source.
type SubmissionContentResponse struct {
	ID       uint   `json:"id"`
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:             model.ID,
		DisplayID:      model.DisplayID,
		TeamID:         model.TeamID,
		TeamName:       model.TeamName,
		ProblemID:      model.ProblemID,
		ProblemTitle:   model.ProblemTitle,
		Filename:       model.Filename,
		Status:         string(model.Status),
		Evaluation:     string(model.Evaluation),
		TotalTestCases: model.TotalTestCases,
		CorrectCases:   model.CorrectCases,
		PossiblePoints: model.PossiblePoints,
		Score:          model.Score,
		JudgeID:        model.JudgeID,
		JudgeName:      model.JudgeName,
		Timestamp:      model.Timestamp,
		UpdatedAt:      model.UpdatedAt,
	}
}

// NewSubmissionResponseSlice converts a slice of Submission models into DTOs.
func NewSubmissionResponseSlice(items []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewSubmissionResponse(item))
	}
	return responses
}
