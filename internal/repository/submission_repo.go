package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-contest-api/internal/models"
)

// SubmissionFilter allows narrowing submission queries.
type SubmissionFilter struct {
	TeamID    *uint
	ProblemID *uint
	Status    *models.SubmissionStatus
	Round     *models.Round
	Newest    bool
}

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	BestScores(ctx context.Context, teamID uint, problemIDs []uint, excludeSubmissionID uint) (map[uint]int, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

// summaryColumns are enough to render submission lists without shipping source code around.
var summaryColumns = []string{
	"id", "display_id", "team_id", "team_name", "problem_id", "problem_title", "filename",
	"status", "evaluation", "total_test_cases", "correct_cases", "possible_points", "score",
	"judge_id", "judge_name", "timestamp", "updated_at",
}

// Create assigns the next display identifier and inserts the submission.
func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last struct {
			DisplayID *uint
		}
		if err := tx.Model(&models.Submission{}).
			Select("MAX(display_id) AS display_id").
			Scan(&last).Error; err != nil {
			return err
		}

		submission.DisplayID = 0
		if last.DisplayID != nil {
			submission.DisplayID = *last.DisplayID + 1
		}

		return tx.Create(submission).Error
	})
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.db.WithContext(ctx).Model(&models.Submission{})

	columns := make([]string, 0, len(summaryColumns))
	for _, column := range summaryColumns {
		columns = append(columns, "submissions."+column)
	}
	query = query.Select(columns)

	if filter.TeamID != nil {
		query = query.Where("submissions.team_id = ?", *filter.TeamID)
	}

	if filter.ProblemID != nil {
		query = query.Where("submissions.problem_id = ?", *filter.ProblemID)
	}

	if filter.Status != nil {
		query = query.Where("submissions.status = ?", *filter.Status)
	}

	if filter.Round != nil {
		query = query.
			Joins("JOIN problems ON problems.id = submissions.problem_id").
			Where("problems.difficulty = ?", *filter.Round)
	}

	order := "submissions.timestamp ASC, submissions.id ASC"
	if filter.Newest {
		order = "submissions.timestamp DESC, submissions.id DESC"
	}

	var submissions []models.Submission
	if err := query.Order(order).Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

// BestScores returns the highest score per problem among the team's graded submissions.
func (r *submissionRepository) BestScores(ctx context.Context, teamID uint, problemIDs []uint, excludeSubmissionID uint) (map[uint]int, error) {
	best := make(map[uint]int, len(problemIDs))
	if len(problemIDs) == 0 {
		return best, nil
	}

	var rows []struct {
		ProblemID uint
		Best      int
	}

	query := r.db.WithContext(ctx).Model(&models.Submission{}).
		Select("problem_id, MAX(score) AS best").
		Where("team_id = ?", teamID).
		Where("problem_id IN ?", problemIDs).
		Where("status <> ?", models.SubmissionStatusPending)
	if excludeSubmissionID != 0 {
		query = query.Where("id <> ?", excludeSubmissionID)
	}

	if err := query.Group("problem_id").Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		best[row.ProblemID] = row.Best
	}

	return best, nil
}
