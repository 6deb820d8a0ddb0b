package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-contest-api/internal/models"
)

// TeamRepository exposes team persistence. Scores are written only through GradingRepository.
type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) error
	GetByID(ctx context.Context, id uint) (models.Team, error)
	List(ctx context.Context) ([]models.Team, error)
}

type teamRepository struct {
	db *gorm.DB
}

// NewTeamRepository constructs a team repository.
func NewTeamRepository(db *gorm.DB) TeamRepository {
	return &teamRepository{db: db}
}

func (r *teamRepository) Create(ctx context.Context, team *models.Team) error {
	return r.db.WithContext(ctx).Omit("score").Create(team).Error
}

func (r *teamRepository) GetByID(ctx context.Context, id uint) (models.Team, error) {
	var team models.Team
	if err := r.db.WithContext(ctx).First(&team, id).Error; err != nil {
		return models.Team{}, err
	}
	return team, nil
}

// List returns teams in leaderboard order.
func (r *teamRepository) List(ctx context.Context) ([]models.Team, error) {
	var teams []models.Team
	if err := r.db.WithContext(ctx).Order("score DESC").Order("name ASC").Find(&teams).Error; err != nil {
		return nil, err
	}
	return teams, nil
}
