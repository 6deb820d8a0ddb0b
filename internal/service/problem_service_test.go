package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-contest-api/internal/dto"
	"github.com/noah-isme/gema-contest-api/internal/repository"
)

func TestProblemServiceCreateAndList(t *testing.T) {
	db := openContestDB(t)
	svc := NewProblemService(repository.NewProblemRepository(db), validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
	ctx := context.Background()

	easy, err := svc.Create(ctx, dto.ProblemCreateRequest{Title: "Two Sum", Difficulty: "EASY", PossiblePoints: 100, TotalCases: 10})
	require.NoError(t, err)
	require.Equal(t, "easy", easy.Difficulty)

	_, err = svc.Create(ctx, dto.ProblemCreateRequest{Title: "Flow", Difficulty: "hard", PossiblePoints: 300, TotalCases: 6})
	require.NoError(t, err)

	_, err = svc.Create(ctx, dto.ProblemCreateRequest{Title: "Nope", Difficulty: "start", PossiblePoints: 1, TotalCases: 1})
	require.Error(t, err)

	_, err = svc.Create(ctx, dto.ProblemCreateRequest{Title: "Zero", Difficulty: "easy", PossiblePoints: 0, TotalCases: 1})
	require.Error(t, err)

	all, err := svc.List(ctx, dto.ProblemFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	hard, err := svc.List(ctx, dto.ProblemFilter{Difficulty: "hard"})
	require.NoError(t, err)
	require.Len(t, hard, 1)
	require.Equal(t, "Flow", hard[0].Title)

	fetched, err := svc.Get(ctx, easy.ID)
	require.NoError(t, err)
	require.Equal(t, 10, fetched.TotalCases)

	_, err = svc.Get(ctx, 999)
	require.ErrorIs(t, err, ErrProblemNotFound)
}
