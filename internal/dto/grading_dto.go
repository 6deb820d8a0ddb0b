package dto

// GradeSubmissionRequest is sent by a judge to check a submission. PossiblePoints is optional;
// when present it must match the points stored on the submission.
type GradeSubmissionRequest struct {
	Evaluation     string `json:"evaluation" validate:"required"`
	JudgeID        string `json:"judge_id" validate:"required,max=64"`
	JudgeName      string `json:"judge_name" validate:"required,max=255"`
	CorrectCases   int    `json:"correct_cases" validate:"gte=0"`
	PossiblePoints int    `json:"possible_points" validate:"gte=0"`
}

// GradingResult is returned after a submission has been checked.
type GradingResult struct {
	Status      string             `json:"status"`
	PointsToAdd int                `json:"points_to_add"`
	Round       string             `json:"round"`
	TeamScore   int                `json:"team_score"`
	Submission  SubmissionResponse `json:"submission"`
}
