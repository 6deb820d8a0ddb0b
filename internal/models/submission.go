package models

import (
	"strings"
	"time"
)

// SubmissionStatus tracks whether a submission has been looked at by a judge.
type SubmissionStatus string

const (
	SubmissionStatusPending SubmissionStatus = "pending"
	SubmissionStatusChecked SubmissionStatus = "checked"
	SubmissionStatusError   SubmissionStatus = "error"
)

// Evaluation is the verdict attached to a submission.
type Evaluation string

const (
	EvaluationPending          Evaluation = "pending"
	EvaluationCorrect          Evaluation = "correct"
	EvaluationPartiallyCorrect Evaluation = "partially_correct"
	EvaluationIncorrect        Evaluation = "incorrect"
	EvaluationError            Evaluation = "error"
)

// UnassignedJudge is the judge placeholder for submissions nobody has graded yet.
const UnassignedJudge = "Unassigned"

// ParseEvaluation accepts the canonical names as well as the labels judges type in
// ("Correct", "Partially Correct", "incorrect solution"), ignoring case and spacing.
func ParseEvaluation(value string) (Evaluation, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)

	switch normalized {
	case "pending":
		return EvaluationPending, true
	case "correct":
		return EvaluationCorrect, true
	case "partially_correct", "partial":
		return EvaluationPartiallyCorrect, true
	case "incorrect", "incorrect_solution", "wrong":
		return EvaluationIncorrect, true
	case "error":
		return EvaluationError, true
	default:
		return "", false
	}
}

// Submission is a source file uploaded by a team for a problem.
type Submission struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	DisplayID      uint             `gorm:"index;not null" json:"display_id"`
	TeamID         uint             `gorm:"index:idx_submission_team_problem;not null" json:"team_id"`
	TeamName       string           `gorm:"size:255" json:"team_name"`
	ProblemID      uint             `gorm:"index:idx_submission_team_problem;not null" json:"problem_id"`
	ProblemTitle   string           `gorm:"size:255" json:"problem_title"`
	Filename       string           `gorm:"size:255" json:"filename"`
	Content        string           `gorm:"type:text" json:"-"`
	Status         SubmissionStatus `gorm:"size:16;index;not null" json:"status"`
	Evaluation     Evaluation       `gorm:"size:32;not null" json:"evaluation"`
	TotalTestCases int              `gorm:"not null" json:"total_test_cases"`
	CorrectCases   int              `gorm:"not null;default:0" json:"correct_cases"`
	PossiblePoints int              `gorm:"not null" json:"possible_points"`
	Score          int              `gorm:"not null;default:0" json:"score"`
	JudgeID        string           `gorm:"size:64" json:"judge_id"`
	JudgeName      string           `gorm:"size:255" json:"judge_name"`
	Timestamp      time.Time        `gorm:"index;not null" json:"timestamp"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// IsGraded reports whether a judge has already produced a verdict.
func (s Submission) IsGraded() bool {
	return s.Status != "" && s.Status != SubmissionStatusPending
}
