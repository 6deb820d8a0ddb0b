package scoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/gema-contest-api/internal/models"
)

// ErrRegistryLookup indicates the problem-to-round mapping could not be resolved.
var ErrRegistryLookup = errors.New("round registry lookup failed")

// Registry maps problems to the rounds they belong to.
type Registry interface {
	GetDifficulty(ctx context.Context, problemID uint) (models.Round, error)
	FindProblemsByDifficulty(ctx context.Context, round models.Round) ([]uint, error)
}

// History reports, per problem, the best score among a team's graded submissions.
// The submission identified by excludeSubmissionID is left out of the result.
type History interface {
	BestScores(ctx context.Context, teamID uint, problemIDs []uint, excludeSubmissionID uint) (map[uint]int, error)
}

// CreditRequest describes one grading event.
type CreditRequest struct {
	TeamID       uint
	ProblemID    uint
	SubmissionID uint
	NewScore     int
	// PriorScore is the stored score of the submission when PriorGraded is set.
	PriorScore  int
	PriorGraded bool
}

// Credit is the effect of a grading event on a team's round credit.
type Credit struct {
	Round          models.Round
	Delta          int
	OldRoundCredit int
	NewRoundCredit int
	// Candidates holds the per-problem best scores after the event.
	Candidates map[uint]int
}

// Engine computes credited-score deltas.
type Engine struct {
	registry Registry
	history  History
	policy   Policy
}

// NewEngine builds an engine. A nil policy selects RoundBest.
func NewEngine(registry Registry, history History, policy Policy) *Engine {
	if policy == nil {
		policy = RoundBest{}
	}
	return &Engine{registry: registry, history: history, policy: policy}
}

// Policy returns the policy the engine applies.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Round resolves the round of a problem.
func (e *Engine) Round(ctx context.Context, problemID uint) (models.Round, error) {
	round, err := e.registry.GetDifficulty(ctx, problemID)
	if err != nil {
		return "", fmt.Errorf("%w: problem %d: %w", ErrRegistryLookup, problemID, err)
	}
	if !round.HasProblems() {
		return "", fmt.Errorf("%w: problem %d has no playable round (%q)", ErrRegistryLookup, problemID, round)
	}
	return round, nil
}

// CreditDelta computes the change to a team's total caused by grading one submission.
//
// The round credit before the event folds the submission's prior score into its problem's
// best; the credit after replaces it with the new score. Other submissions of the same problem
// still count, so re-grading one attempt down never drops the credit below the team's best
// remaining attempt.
func (e *Engine) CreditDelta(ctx context.Context, req CreditRequest) (Credit, error) {
	round, err := e.Round(ctx, req.ProblemID)
	if err != nil {
		return Credit{}, err
	}

	problemIDs, err := e.registry.FindProblemsByDifficulty(ctx, round)
	if err != nil {
		return Credit{}, fmt.Errorf("%w: round %s: %w", ErrRegistryLookup, round, err)
	}
	if !containsProblem(problemIDs, req.ProblemID) {
		return Credit{}, fmt.Errorf("%w: problem %d missing from round %s", ErrRegistryLookup, req.ProblemID, round)
	}

	best, err := e.history.BestScores(ctx, req.TeamID, problemIDs, req.SubmissionID)
	if err != nil {
		return Credit{}, fmt.Errorf("load best scores: %w", err)
	}

	credit := Apply(e.policy, req, problemIDs, best)
	credit.Round = round
	return credit, nil
}

// Apply evaluates a grading event against already loaded per-problem bests. best must
// exclude the submission being graded.
func Apply(policy Policy, req CreditRequest, problemIDs []uint, best map[uint]int) Credit {
	before := make(map[uint]int, len(problemIDs))
	after := make(map[uint]int, len(problemIDs))
	for _, id := range problemIDs {
		before[id] = best[id]
		after[id] = best[id]
	}

	if req.PriorGraded && req.PriorScore > before[req.ProblemID] {
		before[req.ProblemID] = req.PriorScore
	}
	if req.NewScore > after[req.ProblemID] {
		after[req.ProblemID] = req.NewScore
	}

	oldCredit := policy.RoundCredit(before)
	newCredit := policy.RoundCredit(after)

	return Credit{
		Delta:          newCredit - oldCredit,
		OldRoundCredit: oldCredit,
		NewRoundCredit: newCredit,
		Candidates:     after,
	}
}

func containsProblem(ids []uint, target uint) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
