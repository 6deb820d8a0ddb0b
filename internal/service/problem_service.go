package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-contest-api/internal/dto"
	"github.com/noah-isme/gema-contest-api/internal/models"
	"github.com/noah-isme/gema-contest-api/internal/repository"
)

// ProblemService manages the round problem registry.
type ProblemService interface {
	Create(ctx context.Context, payload dto.ProblemCreateRequest) (dto.ProblemResponse, error)
	Get(ctx context.Context, id uint) (dto.ProblemResponse, error)
	List(ctx context.Context, filter dto.ProblemFilter) ([]dto.ProblemResponse, error)
}

type problemService struct {
	repo      repository.ProblemRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewProblemService constructs the problem service.
func NewProblemService(repo repository.ProblemRepository, validate *validator.Validate, logger zerolog.Logger) ProblemService {
	return &problemService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "problem_service").Logger(),
	}
}

func (s *problemService) Create(ctx context.Context, payload dto.ProblemCreateRequest) (dto.ProblemResponse, error) {
	payload.Title = strings.TrimSpace(payload.Title)
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProblemResponse{}, err
	}

	round, ok := models.ParseRound(payload.Difficulty)
	if !ok || !round.HasProblems() {
		return dto.ProblemResponse{}, fmt.Errorf("%w: %q", ErrInvalidRound, payload.Difficulty)
	}

	problem := models.Problem{
		Title:          payload.Title,
		Description:    payload.Description,
		Difficulty:     round,
		PossiblePoints: payload.PossiblePoints,
		TotalCases:     payload.TotalCases,
	}
	if err := s.repo.Create(ctx, &problem); err != nil {
		return dto.ProblemResponse{}, fmt.Errorf("%w: create problem: %w", ErrStore, err)
	}

	s.logger.Info().Uint("problem_id", problem.ID).Str("round", string(round)).Msg("problem created")
	return dto.NewProblemResponse(problem), nil
}

func (s *problemService) Get(ctx context.Context, id uint) (dto.ProblemResponse, error) {
	problem, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProblemResponse{}, ErrProblemNotFound
		}
		return dto.ProblemResponse{}, fmt.Errorf("%w: load problem %d: %w", ErrStore, id, err)
	}
	return dto.NewProblemResponse(problem), nil
}

func (s *problemService) List(ctx context.Context, filter dto.ProblemFilter) ([]dto.ProblemResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	var round *models.Round
	if strings.TrimSpace(filter.Difficulty) != "" {
		parsed, ok := models.ParseRound(filter.Difficulty)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRound, filter.Difficulty)
		}
		round = &parsed
	}

	problems, err := s.repo.ListByDifficulty(ctx, round)
	if err != nil {
		return nil, fmt.Errorf("%w: list problems: %w", ErrStore, err)
	}
	return dto.NewProblemResponseSlice(problems), nil
}
