package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-contest-api/internal/dto"
	"github.com/noah-isme/gema-contest-api/internal/models"
	"github.com/noah-isme/gema-contest-api/internal/observability"
	"github.com/noah-isme/gema-contest-api/internal/repository"
)

const leaderboardCacheKey = "contest:leaderboard"

// TeamService manages teams and serves the leaderboard.
type TeamService interface {
	LeaderboardInvalidator
	Create(ctx context.Context, payload dto.TeamCreateRequest) (dto.TeamResponse, error)
	Get(ctx context.Context, id uint) (dto.TeamResponse, error)
	Leaderboard(ctx context.Context) ([]dto.TeamResponse, error)
}

type teamService struct {
	repo      repository.TeamRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewTeamService constructs the team service. The cache is optional.
func NewTeamService(repo repository.TeamRepository, cache *redis.Client, ttl time.Duration, validate *validator.Validate, logger zerolog.Logger) TeamService {
	return &teamService{
		repo:      repo,
		cache:     cache,
		cacheTTL:  ttl,
		validator: validate,
		logger:    logger.With().Str("component", "team_service").Logger(),
	}
}

func (s *teamService) Create(ctx context.Context, payload dto.TeamCreateRequest) (dto.TeamResponse, error) {
	payload.Name = strings.TrimSpace(payload.Name)
	if err := s.validator.Struct(payload); err != nil {
		return dto.TeamResponse{}, err
	}

	team := models.Team{Name: payload.Name}
	if err := s.repo.Create(ctx, &team); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.TeamResponse{}, ErrTeamNameTaken
		}
		return dto.TeamResponse{}, fmt.Errorf("%w: create team: %w", ErrStore, err)
	}

	if err := s.InvalidateLeaderboard(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate leaderboard cache")
	}

	return dto.NewTeamResponse(team), nil
}

func (s *teamService) Get(ctx context.Context, id uint) (dto.TeamResponse, error) {
	team, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TeamResponse{}, ErrTeamNotFound
		}
		return dto.TeamResponse{}, fmt.Errorf("%w: load team %d: %w", ErrStore, id, err)
	}
	return dto.NewTeamResponse(team), nil
}

// Leaderboard returns teams ranked by score, served from the cache when it is warm.
func (s *teamService) Leaderboard(ctx context.Context) ([]dto.TeamResponse, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, leaderboardCacheKey).Result(); err == nil {
			var entries []dto.TeamResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &entries); unmarshalErr == nil {
				observability.LeaderboardRequests().WithLabelValues("hit").Inc()
				return entries, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read leaderboard cache")
		}
	}
	observability.LeaderboardRequests().WithLabelValues("miss").Inc()

	teams, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list teams: %w", ErrStore, err)
	}
	entries := dto.NewLeaderboard(teams)

	if s.cache != nil && s.cacheTTL > 0 {
		payload, err := json.Marshal(entries)
		if err == nil {
			if err := s.cache.Set(ctx, leaderboardCacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store leaderboard cache")
			}
		}
	}

	return entries, nil
}

func (s *teamService) InvalidateLeaderboard(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, leaderboardCacheKey).Err()
}
