package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-contest-api/internal/dto"
	"github.com/noah-isme/gema-contest-api/internal/models"
	"github.com/noah-isme/gema-contest-api/internal/repository"
)

const (
	defaultMaxSourceBytes = 256 * 1024
	noSubmissionLabel     = "No Submission"
)

// RoundProvider reports the round the competition is currently in.
type RoundProvider interface {
	CurrentRound() models.Round
}

// SubmissionService handles uploads and the read side of submissions. It never grades.
type SubmissionService interface {
	Upload(ctx context.Context, payload dto.SubmissionUploadRequest, filename string, content []byte) (dto.SubmissionResponse, error)
	Content(ctx context.Context, id uint) (dto.SubmissionContentResponse, error)
	ListByTeamProblem(ctx context.Context, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error)
	Last(ctx context.Context, filter dto.SubmissionFilter) (dto.LastSubmissionResponse, error)
	ListByTeam(ctx context.Context, teamID uint) ([]dto.SubmissionResponse, error)
	ListForCurrentRound(ctx context.Context) ([]dto.SubmissionResponse, error)
}

// SubmissionDependencies groups the collaborators of the submission service.
type SubmissionDependencies struct {
	Submissions    repository.SubmissionRepository
	Teams          repository.TeamRepository
	Problems       repository.ProblemRepository
	Rounds         RoundProvider
	Events         EventPublisher
	MaxSourceBytes int
}

type submissionService struct {
	submissions repository.SubmissionRepository
	teams       repository.TeamRepository
	problems    repository.ProblemRepository
	rounds      RoundProvider
	events      EventPublisher
	maxBytes    int
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSubmissionService constructs the submission service.
func NewSubmissionService(deps SubmissionDependencies, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	maxBytes := deps.MaxSourceBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxSourceBytes
	}

	return &submissionService{
		submissions: deps.Submissions,
		teams:       deps.Teams,
		problems:    deps.Problems,
		rounds:      deps.Rounds,
		events:      deps.Events,
		maxBytes:    maxBytes,
		validator:   validate,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
}

// Upload stores a pending submission. Points and case counts are copied from the problem so
// later problem edits can never change how an existing submission is scored.
func (s *submissionService) Upload(ctx context.Context, payload dto.SubmissionUploadRequest, filename string, content []byte) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}
	if err := s.checkSource(content); err != nil {
		return dto.SubmissionResponse{}, err
	}

	team, err := s.teams.GetByID(ctx, payload.TeamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrTeamNotFound
		}
		return dto.SubmissionResponse{}, fmt.Errorf("%w: load team %d: %w", ErrStore, payload.TeamID, err)
	}

	problem, err := s.problems.GetByID(ctx, payload.ProblemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrProblemNotFound
		}
		return dto.SubmissionResponse{}, fmt.Errorf("%w: load problem %d: %w", ErrStore, payload.ProblemID, err)
	}

	submission := models.Submission{
		TeamID:         team.ID,
		TeamName:       team.Name,
		ProblemID:      problem.ID,
		ProblemTitle:   problem.Title,
		Filename:       cleanFilename(filename),
		Content:        string(content),
		Status:         models.SubmissionStatusPending,
		Evaluation:     models.EvaluationPending,
		TotalTestCases: problem.TotalCases,
		PossiblePoints: problem.PossiblePoints,
		JudgeID:        models.UnassignedJudge,
		JudgeName:      models.UnassignedJudge,
		Timestamp:      s.now().UTC(),
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("%w: create submission: %w", ErrStore, err)
	}

	response := dto.NewSubmissionResponse(submission)
	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("team_id", team.ID).
		Uint("problem_id", problem.ID).
		Msg("submission uploaded")

	if s.events != nil {
		if event, err := dto.NewEvent(dto.EventSubmissionUploaded, response); err == nil {
			if err := s.events.Publish(ctx, event); err != nil {
				s.logger.Warn().Err(err).Msg("failed to publish upload event")
			}
		}
	}

	return response, nil
}

func (s *submissionService) checkSource(content []byte) error {
	if len(strings.TrimSpace(string(content))) == 0 {
		return ErrEmptySource
	}
	if len(content) > s.maxBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrSourceTooLarge, len(content), s.maxBytes)
	}

	detected := mimetype.Detect(content)
	for mtype := detected; mtype != nil; mtype = mtype.Parent() {
		if mtype.Is("text/plain") {
			return nil
		}
	}
	return fmt.Errorf("%w: detected %s", ErrUnsupportedSource, detected.String())
}

func (s *submissionService) Content(ctx context.Context, id uint) (dto.SubmissionContentResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionContentResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionContentResponse{}, fmt.Errorf("%w: load submission %d: %w", ErrStore, id, err)
	}

	return dto.SubmissionContentResponse{
		ID:       submission.ID,
		Filename: submission.Filename,
		Content:  submission.Content,
	}, nil
}

func (s *submissionService) ListByTeamProblem(ctx context.Context, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	items, err := s.submissions.List(ctx, repository.SubmissionFilter{TeamID: &filter.TeamID, ProblemID: &filter.ProblemID})
	if err != nil {
		return nil, fmt.Errorf("%w: list submissions: %w", ErrStore, err)
	}
	return dto.NewSubmissionResponseSlice(items), nil
}

// Last reports the newest attempt's status together with the score of the newest graded one.
func (s *submissionService) Last(ctx context.Context, filter dto.SubmissionFilter) (dto.LastSubmissionResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return dto.LastSubmissionResponse{}, err
	}

	items, err := s.submissions.List(ctx, repository.SubmissionFilter{TeamID: &filter.TeamID, ProblemID: &filter.ProblemID, Newest: true})
	if err != nil {
		return dto.LastSubmissionResponse{}, fmt.Errorf("%w: list submissions: %w", ErrStore, err)
	}

	if len(items) == 0 {
		return dto.LastSubmissionResponse{
			Status:     string(models.SubmissionStatusPending),
			CheckedBy:  models.UnassignedJudge,
			Evaluation: noSubmissionLabel,
		}, nil
	}

	latest := items[0]
	response := dto.LastSubmissionResponse{
		Status:     string(latest.Status),
		CheckedBy:  latest.JudgeName,
		Evaluation: string(latest.Evaluation),
	}
	for _, item := range items {
		if item.IsGraded() {
			response.Score = item.Score
			break
		}
	}

	return response, nil
}

func (s *submissionService) ListByTeam(ctx context.Context, teamID uint) ([]dto.SubmissionResponse, error) {
	if teamID == 0 {
		return nil, ErrTeamNotFound
	}

	items, err := s.submissions.List(ctx, repository.SubmissionFilter{TeamID: &teamID, Newest: true})
	if err != nil {
		return nil, fmt.Errorf("%w: list submissions: %w", ErrStore, err)
	}
	return dto.NewSubmissionResponseSlice(items), nil
}

// ListForCurrentRound is the judges' queue. Outside problem rounds it is empty.
func (s *submissionService) ListForCurrentRound(ctx context.Context) ([]dto.SubmissionResponse, error) {
	if s.rounds == nil {
		return []dto.SubmissionResponse{}, nil
	}

	round := s.rounds.CurrentRound()
	if !round.HasProblems() {
		return []dto.SubmissionResponse{}, nil
	}

	items, err := s.submissions.List(ctx, repository.SubmissionFilter{Round: &round, Newest: true})
	if err != nil {
		return nil, fmt.Errorf("%w: list submissions: %w", ErrStore, err)
	}
	return dto.NewSubmissionResponseSlice(items), nil
}

func cleanFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "submission.txt"
	}
	return name
}
