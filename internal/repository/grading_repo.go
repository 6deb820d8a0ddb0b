package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-contest-api/internal/models"
)

// ErrTeamScoreUpdate marks failures while applying a delta to a team's total.
var ErrTeamScoreUpdate = errors.New("team score update failed")

// GradeCommit is everything one grading call persists.
type GradeCommit struct {
	Submission *models.Submission
	Delta      int
	// Event is appended to the score ledger when Delta is non-zero. TeamScore is filled in.
	Event *models.ScoreEvent
}

// GradingRepository persists a grading result and its team delta atomically.
type GradingRepository interface {
	CommitGrade(ctx context.Context, commit GradeCommit) (int, error)
}

type gradingRepository struct {
	db *gorm.DB
}

// NewGradingRepository constructs the grading repository.
func NewGradingRepository(db *gorm.DB) GradingRepository {
	return &gradingRepository{db: db}
}

// gradedColumns are the only submission columns grading may change.
var gradedColumns = []string{"status", "evaluation", "judge_id", "judge_name", "correct_cases", "score", "updated_at"}

// CommitGrade applies the team delta and saves the submission in one transaction, returning the
// team's score afterwards. A team failure is wrapped with ErrTeamScoreUpdate and nothing is written.
func (r *gradingRepository) CommitGrade(ctx context.Context, commit GradeCommit) (int, error) {
	if commit.Submission == nil || commit.Submission.ID == 0 {
		return 0, errors.New("grade commit requires a stored submission")
	}

	var teamScore int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		teamID := commit.Submission.TeamID

		if commit.Delta != 0 {
			update := tx.Model(&models.Team{}).
				Where("id = ?", teamID).
				Update("score", gorm.Expr("score + ?", commit.Delta))
			if update.Error != nil {
				return fmt.Errorf("%w: %w", ErrTeamScoreUpdate, update.Error)
			}
			if update.RowsAffected == 0 {
				return fmt.Errorf("%w: team %d: %w", ErrTeamScoreUpdate, teamID, gorm.ErrRecordNotFound)
			}
		}

		var team models.Team
		if err := tx.Select("id", "score").First(&team, teamID).Error; err != nil {
			return fmt.Errorf("%w: %w", ErrTeamScoreUpdate, err)
		}
		teamScore = team.Score

		saved := tx.Model(commit.Submission).Select(gradedColumns).Updates(commit.Submission)
		if saved.Error != nil {
			return fmt.Errorf("save submission: %w", saved.Error)
		}
		if saved.RowsAffected == 0 {
			return fmt.Errorf("save submission %d: %w", commit.Submission.ID, gorm.ErrRecordNotFound)
		}

		if commit.Delta != 0 && commit.Event != nil {
			commit.Event.TeamScore = teamScore
			if err := tx.Create(commit.Event).Error; err != nil {
				return fmt.Errorf("append score event: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return teamScore, nil
}
