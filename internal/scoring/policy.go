package scoring

import (
	"fmt"
	"strings"
)

// Policy folds the per-problem best scores of one round into the credit the round contributes
// to a team's total.
type Policy interface {
	Name() string
	RoundCredit(best map[uint]int) int
}

const (
	PolicyRoundBest  = "round_best"
	PolicyProblemSum = "problem_sum"
)

// RoundBest credits only the single best problem of a round.
type RoundBest struct{}

func (RoundBest) Name() string { return PolicyRoundBest }

func (RoundBest) RoundCredit(best map[uint]int) int {
	credit := 0
	for _, score := range best {
		if score > credit {
			credit = score
		}
	}
	return credit
}

// ProblemSum credits the best score of every problem in a round.
type ProblemSum struct{}

func (ProblemSum) Name() string { return PolicyProblemSum }

func (ProblemSum) RoundCredit(best map[uint]int) int {
	credit := 0
	for _, score := range best {
		credit += score
	}
	return credit
}

// PolicyByName resolves a configured policy name. An empty name selects RoundBest.
func PolicyByName(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyRoundBest:
		return RoundBest{}, nil
	case PolicyProblemSum:
		return ProblemSum{}, nil
	default:
		return nil, fmt.Errorf("unknown scoring policy %q", name)
	}
}
