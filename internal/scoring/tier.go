package scoring

import (
	"errors"

	"github.com/noah-isme/gema-contest-api/internal/models"
)

var (
	// ErrInvalidTotalCases indicates a submission without any test cases.
	ErrInvalidTotalCases = errors.New("total test cases must be at least 1")
	// ErrInvalidCorrectCases indicates a correct-case count outside [0, total].
	ErrInvalidCorrectCases = errors.New("correct cases out of range")
	// ErrInvalidPossiblePoints indicates a negative point ceiling.
	ErrInvalidPossiblePoints = errors.New("possible points must not be negative")
)

// TierResult is the outcome of applying the tier table to a graded submission.
type TierResult struct {
	Score      int
	Multiplier float64
	Percentage float64
	Evaluation models.Evaluation
	Status     models.SubmissionStatus
}

// tier multipliers are kept in tenths so the floor stays exact.
type tier struct {
	tenths int
	label  models.Evaluation
}

// ComputeScore turns a correct-case count into a score and a verdict.
//
// Only three reward tiers exist: 100% earns everything, 41-80% earns 0.4, 20-40% earns 0.2.
// Everything else, including 81-99%, earns nothing. A judge marking a submission Correct keeps
// that label in every tier but never changes the score. An error verdict forces a zero score.
func ComputeScore(correctCases, totalTestCases, possiblePoints int, evaluation models.Evaluation) (TierResult, error) {
	if totalTestCases < 1 {
		return TierResult{}, ErrInvalidTotalCases
	}
	if possiblePoints < 0 {
		return TierResult{}, ErrInvalidPossiblePoints
	}

	// An error verdict stands on its own; the case count is not checked against the total.
	if evaluation == models.EvaluationError {
		result := TierResult{Evaluation: models.EvaluationError, Status: models.SubmissionStatusError}
		if correctCases >= 0 && correctCases <= totalTestCases {
			result.Percentage = float64(correctCases*100) / float64(totalTestCases)
		}
		return result, nil
	}

	if correctCases < 0 || correctCases > totalTestCases {
		return TierResult{}, ErrInvalidCorrectCases
	}

	percentage := float64(correctCases*100) / float64(totalTestCases)

	t := tierFor(correctCases, totalTestCases)
	label := t.label
	if evaluation == models.EvaluationCorrect {
		label = models.EvaluationCorrect
	}

	return TierResult{
		Score:      possiblePoints * t.tenths / 10,
		Multiplier: float64(t.tenths) / 10,
		Percentage: percentage,
		Evaluation: label,
		Status:     models.SubmissionStatusChecked,
	}, nil
}

// tierFor compares correct*100 against total*bound to avoid rounding at the edges.
func tierFor(correct, total int) tier {
	scaled := correct * 100
	switch {
	case scaled == total*100:
		return tier{tenths: 10, label: models.EvaluationCorrect}
	case scaled >= total*41 && scaled <= total*80:
		return tier{tenths: 4, label: models.EvaluationPartiallyCorrect}
	case scaled >= total*20 && scaled <= total*40:
		return tier{tenths: 2, label: models.EvaluationPartiallyCorrect}
	default:
		return tier{tenths: 0, label: models.EvaluationIncorrect}
	}
}
