package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-contest-api/internal/models"
)

// ProblemRepository stores problems and answers round membership questions for scoring.
type ProblemRepository interface {
	Create(ctx context.Context, problem *models.Problem) error
	GetByID(ctx context.Context, id uint) (models.Problem, error)
	ListByDifficulty(ctx context.Context, round *models.Round) ([]models.Problem, error)
	GetDifficulty(ctx context.Context, problemID uint) (models.Round, error)
	FindProblemsByDifficulty(ctx context.Context, round models.Round) ([]uint, error)
}

type problemRepository struct {
	db *gorm.DB
}

// NewProblemRepository constructs a problem repository.
func NewProblemRepository(db *gorm.DB) ProblemRepository {
	return &problemRepository{db: db}
}

func (r *problemRepository) Create(ctx context.Context, problem *models.Problem) error {
	return r.db.WithContext(ctx).Create(problem).Error
}

func (r *problemRepository) GetByID(ctx context.Context, id uint) (models.Problem, error) {
	var problem models.Problem
	if err := r.db.WithContext(ctx).First(&problem, id).Error; err != nil {
		return models.Problem{}, err
	}
	return problem, nil
}

func (r *problemRepository) ListByDifficulty(ctx context.Context, round *models.Round) ([]models.Problem, error) {
	query := r.db.WithContext(ctx).Model(&models.Problem{})
	if round != nil {
		query = query.Where("difficulty = ?", *round)
	}

	var problems []models.Problem
	if err := query.Order("id ASC").Find(&problems).Error; err != nil {
		return nil, err
	}
	return problems, nil
}

func (r *problemRepository) GetDifficulty(ctx context.Context, problemID uint) (models.Round, error) {
	var problem models.Problem
	if err := r.db.WithContext(ctx).Select("id", "difficulty").First(&problem, problemID).Error; err != nil {
		return "", err
	}
	return problem.Difficulty, nil
}

func (r *problemRepository) FindProblemsByDifficulty(ctx context.Context, round models.Round) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Problem{}).
		Where("difficulty = ?", round).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
