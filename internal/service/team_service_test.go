package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-contest-api/internal/dto"
	"github.com/noah-isme/gema-contest-api/internal/models"
	"github.com/noah-isme/gema-contest-api/internal/repository"
)

func openContestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Team{}, &models.Problem{}, &models.Submission{}, &models.ScoreEvent{}))
	return db
}

func TestTeamServiceLeaderboardCaching(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	db := openContestDB(t)

	svc := NewTeamService(repository.NewTeamRepository(db), redisClient, time.Minute, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
	ctx := context.Background()

	alpha, err := svc.Create(ctx, dto.TeamCreateRequest{Name: " Alpha "})
	require.NoError(t, err)
	require.Equal(t, "Alpha", alpha.Name)
	_, err = svc.Create(ctx, dto.TeamCreateRequest{Name: "Beta"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, dto.TeamCreateRequest{Name: "Gamma"})
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Team{}).Where("name = ?", "Beta").Update("score", 300).Error)
	require.NoError(t, db.Model(&models.Team{}).Where("name = ?", "Gamma").Update("score", 300).Error)

	board, err := svc.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, board, 3)
	require.Equal(t, "Beta", board[0].Name)
	require.Equal(t, 1, board[0].Rank)
	require.Equal(t, 1, board[1].Rank)
	require.Equal(t, "Alpha", board[2].Name)
	require.Equal(t, 3, board[2].Rank)
	require.True(t, mini.Exists(leaderboardCacheKey))

	// Writes behind the cache stay invisible until invalidation.
	require.NoError(t, db.Model(&models.Team{}).Where("name = ?", "Alpha").Update("score", 900).Error)
	cached, err := svc.Leaderboard(ctx)
	require.NoError(t, err)
	require.Equal(t, "Beta", cached[0].Name)

	require.NoError(t, svc.InvalidateLeaderboard(ctx))
	fresh, err := svc.Leaderboard(ctx)
	require.NoError(t, err)
	require.Equal(t, "Alpha", fresh[0].Name)
	require.Equal(t, 900, fresh[0].Score)
}

func TestTeamServiceCreateAndGet(t *testing.T) {
	db := openContestDB(t)
	svc := NewTeamService(repository.NewTeamRepository(db), nil, 0, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
	ctx := context.Background()

	created, err := svc.Create(ctx, dto.TeamCreateRequest{Name: "Delta"})
	require.NoError(t, err)
	require.Zero(t, created.Score)

	_, err = svc.Create(ctx, dto.TeamCreateRequest{Name: "Delta"})
	require.ErrorIs(t, err, ErrTeamNameTaken)

	_, err = svc.Create(ctx, dto.TeamCreateRequest{Name: "   "})
	require.Error(t, err)

	fetched, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Delta", fetched.Name)

	_, err = svc.Get(ctx, 404)
	require.ErrorIs(t, err, ErrTeamNotFound)
}
