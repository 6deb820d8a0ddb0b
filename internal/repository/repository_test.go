package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-contest-api/internal/models"
)

// setupTestDB opens a private in-memory database so tests never share state.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Team{}, &models.Problem{}, &models.Submission{}, &models.ScoreEvent{}))
	return db
}

func seedProblem(t *testing.T, db *gorm.DB, title string, round models.Round, points int) models.Problem {
	t.Helper()
	problem := models.Problem{Title: title, Difficulty: round, PossiblePoints: points, TotalCases: 10}
	require.NoError(t, db.Create(&problem).Error)
	return problem
}

func seedSubmission(t *testing.T, db *gorm.DB, team models.Team, problem models.Problem, status models.SubmissionStatus, score int) models.Submission {
	t.Helper()
	submission := models.Submission{
		TeamID:         team.ID,
		TeamName:       team.Name,
		ProblemID:      problem.ID,
		ProblemTitle:   problem.Title,
		Status:         status,
		Evaluation:     models.EvaluationPending,
		TotalTestCases: problem.TotalCases,
		PossiblePoints: problem.PossiblePoints,
		Score:          score,
		JudgeID:        models.UnassignedJudge,
		JudgeName:      models.UnassignedJudge,
	}
	require.NoError(t, NewSubmissionRepository(db).Create(context.Background(), &submission))
	return submission
}
