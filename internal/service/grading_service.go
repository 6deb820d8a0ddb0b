package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-contest-api/internal/dto"
	"github.com/noah-isme/gema-contest-api/internal/locker"
	"github.com/noah-isme/gema-contest-api/internal/models"
	"github.com/noah-isme/gema-contest-api/internal/observability"
	"github.com/noah-isme/gema-contest-api/internal/repository"
	"github.com/noah-isme/gema-contest-api/internal/scoring"
)

const defaultGradingLockWait = 5 * time.Second

// LeaderboardInvalidator drops cached standings after a team total changes.
type LeaderboardInvalidator interface {
	InvalidateLeaderboard(ctx context.Context) error
}

// GradingService checks submissions and keeps team totals in step with the scoring policy.
type GradingService interface {
	Grade(ctx context.Context, submissionID uint, payload dto.GradeSubmissionRequest) (dto.GradingResult, error)
}

// GradingDependencies groups the collaborators of the grading service.
type GradingDependencies struct {
	Submissions repository.SubmissionRepository
	Grades      repository.GradingRepository
	Engine      *scoring.Engine
	Locker      locker.Locker
	LockWait    time.Duration
	Events      EventPublisher
	Leaderboard LeaderboardInvalidator
}

type gradingService struct {
	submissions repository.SubmissionRepository
	grades      repository.GradingRepository
	engine      *scoring.Engine
	locker      locker.Locker
	lockWait    time.Duration
	events      EventPublisher
	leaderboard LeaderboardInvalidator
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewGradingService constructs the grading service. A nil locker falls back to an in-process one.
func NewGradingService(deps GradingDependencies, validate *validator.Validate, logger zerolog.Logger) GradingService {
	lock := deps.Locker
	if lock == nil {
		lock = locker.NewKeyedMutex()
	}
	wait := deps.LockWait
	if wait <= 0 {
		wait = defaultGradingLockWait
	}

	return &gradingService{
		submissions: deps.Submissions,
		grades:      deps.Grades,
		engine:      deps.Engine,
		locker:      lock,
		lockWait:    wait,
		events:      deps.Events,
		leaderboard: deps.Leaderboard,
		validator:   validate,
		logger:      logger.With().Str("component", "grading_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-contest-api/internal/service/grading"),
	}
}

// GradingLockKey is the key serialising grading of one team within one round.
func GradingLockKey(teamID uint, round models.Round) string {
	return fmt.Sprintf("grading:team:%d:round:%s", teamID, round)
}

func (s *gradingService) Grade(ctx context.Context, submissionID uint, payload dto.GradeSubmissionRequest) (dto.GradingResult, error) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, "grading.check")
	span.SetAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.String("grading.judge_id", payload.JudgeID),
	)
	defer span.End()

	fail := func(outcome string, err error) (dto.GradingResult, error) {
		observability.GradingRequests().WithLabelValues(outcome).Inc()
		observability.GradingLatency().Observe(time.Since(started).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)

		level := zerolog.WarnLevel
		switch outcome {
		case "team_update", "store", "registry":
			level = zerolog.ErrorLevel
		}
		s.logger.WithLevel(level).Err(err).Uint("submission_id", submissionID).Str("outcome", outcome).Msg("grading failed")
		return dto.GradingResult{}, err
	}

	if err := s.validator.Struct(payload); err != nil {
		return fail("invalid", err)
	}

	evaluation, ok := models.ParseEvaluation(payload.Evaluation)
	if !ok || evaluation == models.EvaluationPending {
		return fail("invalid", fmt.Errorf("%w: %q", ErrInvalidEvaluation, payload.Evaluation))
	}

	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return fail(lookupOutcome(err), err)
	}

	round, err := s.engine.Round(ctx, submission.ProblemID)
	if err != nil {
		return fail("registry", err)
	}
	span.SetAttributes(
		attribute.Int64("grading.team_id", int64(submission.TeamID)),
		attribute.String("grading.round", string(round)),
	)

	lockStarted := time.Now()
	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	unlock, err := s.locker.Lock(lockCtx, GradingLockKey(submission.TeamID, round))
	cancel()
	observability.GradingLockWait().Observe(time.Since(lockStarted).Seconds())
	if err != nil {
		return fail("busy", fmt.Errorf("%w: %w", ErrGradingBusy, err))
	}
	release := sync.OnceFunc(unlock)
	defer release()

	// Another judge may have graded this submission while we waited.
	submission, err = s.loadSubmission(ctx, submissionID)
	if err != nil {
		return fail(lookupOutcome(err), err)
	}

	if payload.PossiblePoints != 0 && payload.PossiblePoints != submission.PossiblePoints {
		return fail("invalid", fmt.Errorf("%w: got %d, submission allows %d", ErrPossiblePointsMismatch, payload.PossiblePoints, submission.PossiblePoints))
	}

	tier, err := scoring.ComputeScore(payload.CorrectCases, submission.TotalTestCases, submission.PossiblePoints, evaluation)
	if err != nil {
		if errors.Is(err, scoring.ErrInvalidCorrectCases) {
			return fail("invalid", fmt.Errorf("%w: %d of %d: %w", ErrInvalidCorrectCases, payload.CorrectCases, submission.TotalTestCases, err))
		}
		return fail("store", fmt.Errorf("%w: submission %d: %w", ErrStore, submissionID, err))
	}

	credit, err := s.engine.CreditDelta(ctx, scoring.CreditRequest{
		TeamID:       submission.TeamID,
		ProblemID:    submission.ProblemID,
		SubmissionID: submission.ID,
		NewScore:     tier.Score,
		PriorScore:   submission.Score,
		PriorGraded:  submission.IsGraded(),
	})
	if err != nil {
		if errors.Is(err, scoring.ErrRegistryLookup) {
			return fail("registry", err)
		}
		return fail("store", fmt.Errorf("%w: %w", ErrStore, err))
	}

	previousScore := submission.Score
	previousStatus := submission.Status

	graded := submission
	graded.Status = tier.Status
	graded.Evaluation = tier.Evaluation
	graded.JudgeID = payload.JudgeID
	graded.JudgeName = payload.JudgeName
	graded.CorrectCases = payload.CorrectCases
	if graded.CorrectCases > graded.TotalTestCases {
		// only an error verdict gets this far with an out of range count
		graded.CorrectCases = graded.TotalTestCases
	}
	graded.Score = tier.Score

	ledger := &models.ScoreEvent{
		TeamID:         graded.TeamID,
		SubmissionID:   graded.ID,
		ProblemID:      graded.ProblemID,
		Round:          round,
		Delta:          credit.Delta,
		OldRoundCredit: credit.OldRoundCredit,
		NewRoundCredit: credit.NewRoundCredit,
		JudgeID:        graded.JudgeID,
		Details: datatypes.JSONMap{
			"policy":          s.engine.Policy().Name(),
			"evaluation":      string(graded.Evaluation),
			"score":           graded.Score,
			"previous_score":  previousScore,
			"previous_status": string(previousStatus),
			"candidates":      candidateDetails(credit.Candidates),
		},
	}

	teamScore, err := s.grades.CommitGrade(ctx, repository.GradeCommit{
		Submission: &graded,
		Delta:      credit.Delta,
		Event:      ledger,
	})
	if err != nil {
		if errors.Is(err, repository.ErrTeamScoreUpdate) {
			return fail("team_update", fmt.Errorf("%w: %w", ErrTeamUpdate, err))
		}
		return fail("store", fmt.Errorf("%w: %w", ErrStore, err))
	}

	// Invalidate before releasing so the next grade for this key cannot commit in between.
	if credit.Delta != 0 {
		s.invalidateLeaderboard(ctx)
	}
	release()

	observability.GradingRequests().WithLabelValues("ok").Inc()
	observability.GradingLatency().Observe(time.Since(started).Seconds())
	observability.GradingDeltaPoints().Observe(float64(credit.Delta))
	span.SetAttributes(
		attribute.Int("grading.score", graded.Score),
		attribute.Int("grading.delta", credit.Delta),
		attribute.String("grading.status", string(graded.Status)),
	)

	s.logger.Info().
		Uint("submission_id", graded.ID).
		Uint("team_id", graded.TeamID).
		Str("round", string(round)).
		Int("score", graded.Score).
		Int("delta", credit.Delta).
		Int("team_score", teamScore).
		Msg("submission graded")

	result := dto.GradingResult{
		Status:      string(graded.Status),
		PointsToAdd: credit.Delta,
		Round:       string(round),
		TeamScore:   teamScore,
		Submission:  dto.NewSubmissionResponse(graded),
	}

	s.afterGrade(ctx, result)

	return result, nil
}

func (s *gradingService) invalidateLeaderboard(ctx context.Context) {
	if s.leaderboard == nil {
		return
	}
	if err := s.leaderboard.InvalidateLeaderboard(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate leaderboard cache")
	}
}

// afterGrade notifies listeners. Failures here never undo a committed grade.
func (s *gradingService) afterGrade(ctx context.Context, result dto.GradingResult) {
	if s.events == nil {
		return
	}

	event, err := dto.NewEvent(dto.EventSubmissionGraded, result)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode graded event")
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", result.Submission.ID).Msg("failed to publish graded event")
	}
}

func (s *gradingService) loadSubmission(ctx context.Context, id uint) (models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, fmt.Errorf("%w: load submission %d: %w", ErrStore, id, err)
	}
	return submission, nil
}

func lookupOutcome(err error) string {
	if errors.Is(err, ErrSubmissionNotFound) {
		return "not_found"
	}
	return "store"
}

func candidateDetails(candidates map[uint]int) map[string]interface{} {
	details := make(map[string]interface{}, len(candidates))
	for problemID, score := range candidates {
		details[strconv.FormatUint(uint64(problemID), 10)] = score
	}
	return details
}
