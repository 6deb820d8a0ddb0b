package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-contest-api/internal/dto"
	"github.com/noah-isme/gema-contest-api/internal/locker"
	"github.com/noah-isme/gema-contest-api/internal/models"
	"github.com/noah-isme/gema-contest-api/internal/repository"
	"github.com/noah-isme/gema-contest-api/internal/scoring"
)

// contestStore is an in-memory stand-in for the submission, team, problem and grading stores.
type contestStore struct {
	mu          sync.Mutex
	teams       map[uint]*models.Team
	problems    map[uint]models.Problem
	submissions map[uint]models.Submission
	events      []models.ScoreEvent
	nextID      uint
	failTeam    bool
	// slowRead widens the read-compute-write window to expose missing locking.
	slowRead time.Duration
}

func newContestStore() *contestStore {
	return &contestStore{
		teams:       make(map[uint]*models.Team),
		problems:    make(map[uint]models.Problem),
		submissions: make(map[uint]models.Submission),
	}
}

func (s *contestStore) addTeam(id uint, name string) {
	s.teams[id] = &models.Team{ID: id, Name: name}
}

func (s *contestStore) addProblem(id uint, round models.Round, points, cases int) {
	s.problems[id] = models.Problem{ID: id, Title: "P", Difficulty: round, PossiblePoints: points, TotalCases: cases}
}

func (s *contestStore) addSubmission(teamID, problemID uint) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	problem := s.problems[problemID]
	s.submissions[s.nextID] = models.Submission{
		ID:             s.nextID,
		TeamID:         teamID,
		ProblemID:      problemID,
		Status:         models.SubmissionStatusPending,
		Evaluation:     models.EvaluationPending,
		TotalTestCases: problem.TotalCases,
		PossiblePoints: problem.PossiblePoints,
		JudgeID:        models.UnassignedJudge,
		JudgeName:      models.UnassignedJudge,
	}
	return s.nextID
}

func (s *contestStore) teamScore(id uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teams[id].Score
}

func (s *contestStore) Create(_ context.Context, submission *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	submission.ID = s.nextID
	s.submissions[submission.ID] = *submission
	return nil
}

func (s *contestStore) GetByID(_ context.Context, id uint) (models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	submission, ok := s.submissions[id]
	if !ok {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return submission, nil
}

func (s *contestStore) List(_ context.Context, filter repository.SubmissionFilter) ([]models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []models.Submission
	for id := uint(1); id <= s.nextID; id++ {
		item, ok := s.submissions[id]
		if !ok {
			continue
		}
		if filter.TeamID != nil && item.TeamID != *filter.TeamID {
			continue
		}
		if filter.ProblemID != nil && item.ProblemID != *filter.ProblemID {
			continue
		}
		if filter.Round != nil && s.problems[item.ProblemID].Difficulty != *filter.Round {
			continue
		}
		items = append(items, item)
	}
	if filter.Newest {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	}
	return items, nil
}

func (s *contestStore) BestScores(_ context.Context, teamID uint, problemIDs []uint, exclude uint) (map[uint]int, error) {
	s.mu.Lock()
	best := make(map[uint]int)
	for _, submission := range s.submissions {
		if submission.TeamID != teamID || submission.ID == exclude || !submission.IsGraded() {
			continue
		}
		for _, id := range problemIDs {
			if id == submission.ProblemID && submission.Score > best[id] {
				best[id] = submission.Score
			}
		}
	}
	s.mu.Unlock()

	if s.slowRead > 0 {
		time.Sleep(s.slowRead)
	}
	return best, nil
}

func (s *contestStore) GetDifficulty(_ context.Context, problemID uint) (models.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	problem, ok := s.problems[problemID]
	if !ok {
		return "", gorm.ErrRecordNotFound
	}
	return problem.Difficulty, nil
}

func (s *contestStore) FindProblemsByDifficulty(_ context.Context, round models.Round) ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint
	for id, problem := range s.problems {
		if problem.Difficulty == round {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// CommitGrade mirrors the transactional repository: nothing is written when the team fails.
func (s *contestStore) CommitGrade(_ context.Context, commit repository.GradeCommit) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	team, ok := s.teams[commit.Submission.TeamID]
	if commit.Delta != 0 && (s.failTeam || !ok) {
		return 0, repository.ErrTeamScoreUpdate
	}
	if !ok {
		return 0, repository.ErrTeamScoreUpdate
	}

	team.Score += commit.Delta
	s.submissions[commit.Submission.ID] = *commit.Submission
	if commit.Delta != 0 && commit.Event != nil {
		commit.Event.TeamScore = team.Score
		s.events = append(s.events, *commit.Event)
	}
	return team.Score, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []dto.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event dto.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingInvalidator) InvalidateLeaderboard(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil
}

type gradingFixture struct {
	store       *contestStore
	service     GradingService
	events      *recordingPublisher
	leaderboard *countingInvalidator
}

func newGradingFixture(t *testing.T, lock locker.Locker) gradingFixture {
	t.Helper()
	store := newContestStore()
	store.addTeam(1, "Alpha")
	store.addTeam(2, "Beta")
	store.addProblem(10, models.RoundEasy, 100, 10)
	store.addProblem(11, models.RoundEasy, 200, 10)
	store.addProblem(20, models.RoundHard, 300, 5)

	events := &recordingPublisher{}
	leaderboard := &countingInvalidator{}
	service := NewGradingService(GradingDependencies{
		Submissions: store,
		Grades:      store,
		Engine:      scoring.NewEngine(store, store, scoring.RoundBest{}),
		Locker:      lock,
		LockWait:    time.Second,
		Events:      events,
		Leaderboard: leaderboard,
	}, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())

	return gradingFixture{store: store, service: service, events: events, leaderboard: leaderboard}
}

func gradeRequest(evaluation string, correct int) dto.GradeSubmissionRequest {
	return dto.GradeSubmissionRequest{
		Evaluation:   evaluation,
		JudgeID:      "judge-1",
		JudgeName:    "Grace",
		CorrectCases: correct,
	}
}

func TestGradingServiceFollowsRoundBestPolicy(t *testing.T) {
	f := newGradingFixture(t, nil)
	ctx := context.Background()

	q1 := f.store.addSubmission(1, 10)
	result, err := f.service.Grade(ctx, q1, gradeRequest("Partially Correct", 8))
	require.NoError(t, err)
	require.Equal(t, 40, result.Submission.Score)
	require.Equal(t, 40, result.PointsToAdd)
	require.Equal(t, "checked", result.Status)
	require.Equal(t, 40, result.TeamScore)

	q2 := f.store.addSubmission(1, 11)
	result, err = f.service.Grade(ctx, q2, gradeRequest("correct", 10))
	require.NoError(t, err)
	require.Equal(t, 160, result.PointsToAdd)
	require.Equal(t, 200, f.store.teamScore(1))

	// A lower regrade of the dominated problem leaves the round credit alone.
	result, err = f.service.Grade(ctx, q1, gradeRequest("partially correct", 3))
	require.NoError(t, err)
	require.Equal(t, 20, result.Submission.Score)
	require.Zero(t, result.PointsToAdd)
	require.Equal(t, 200, f.store.teamScore(1))

	hard := f.store.addSubmission(1, 20)
	result, err = f.service.Grade(ctx, hard, gradeRequest("correct", 5))
	require.NoError(t, err)
	require.Equal(t, 300, result.PointsToAdd)
	require.Equal(t, 500, f.store.teamScore(1))
	require.Zero(t, f.store.teamScore(2))

	require.Len(t, f.store.events, 3)
	require.Equal(t, 3, f.leaderboard.calls)
	require.Equal(t, 4, f.events.count())
}

func TestGradingServiceRegradeIsIdempotent(t *testing.T) {
	f := newGradingFixture(t, nil)
	ctx := context.Background()

	id := f.store.addSubmission(1, 11)
	first, err := f.service.Grade(ctx, id, gradeRequest("correct", 10))
	require.NoError(t, err)
	require.Equal(t, 200, first.PointsToAdd)

	second, err := f.service.Grade(ctx, id, gradeRequest("correct", 10))
	require.NoError(t, err)
	require.Zero(t, second.PointsToAdd)
	require.Equal(t, 200, f.store.teamScore(1))
	require.Len(t, f.store.events, 1)
}

func TestGradingServiceErrorEvaluationZeroesScore(t *testing.T) {
	f := newGradingFixture(t, nil)
	ctx := context.Background()

	id := f.store.addSubmission(1, 10)
	_, err := f.service.Grade(ctx, id, gradeRequest("correct", 10))
	require.NoError(t, err)
	require.Equal(t, 100, f.store.teamScore(1))

	result, err := f.service.Grade(ctx, id, gradeRequest("error", 10))
	require.NoError(t, err)
	require.Equal(t, "error", result.Status)
	require.Zero(t, result.Submission.Score)
	require.Equal(t, -100, result.PointsToAdd)
	require.Zero(t, f.store.teamScore(1))

	// Error is not terminal.
	result, err = f.service.Grade(ctx, id, gradeRequest("correct", 10))
	require.NoError(t, err)
	require.Equal(t, "checked", result.Status)
	require.Equal(t, 100, f.store.teamScore(1))
}

func TestGradingServiceErrorEvaluationAcceptsAnyCaseCount(t *testing.T) {
	f := newGradingFixture(t, nil)
	ctx := context.Background()

	id := f.store.addSubmission(1, 10)
	_, err := f.service.Grade(ctx, id, gradeRequest("correct", 10))
	require.NoError(t, err)

	result, err := f.service.Grade(ctx, id, gradeRequest("error", 15))
	require.NoError(t, err)
	require.Equal(t, "error", result.Status)
	require.Equal(t, -100, result.PointsToAdd)
	require.Equal(t, 10, result.Submission.CorrectCases)
	require.Zero(t, f.store.teamScore(1))
}

// lockCheckingInvalidator records whether the grading lock was still held when it ran.
type lockCheckingInvalidator struct {
	lock       locker.Locker
	key        string
	calls      int
	heldOnCall bool
}

func (l *lockCheckingInvalidator) InvalidateLeaderboard(context.Context) error {
	l.calls++
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	unlock, err := l.lock.Lock(ctx, l.key)
	if err != nil {
		l.heldOnCall = true
		return nil
	}
	unlock()
	return nil
}

func TestGradingServiceInvalidatesLeaderboardWhileLocked(t *testing.T) {
	store := newContestStore()
	store.addTeam(1, "Alpha")
	store.addProblem(10, models.RoundEasy, 100, 10)

	lock := locker.NewKeyedMutex()
	leaderboard := &lockCheckingInvalidator{lock: lock, key: GradingLockKey(1, models.RoundEasy)}
	svc := NewGradingService(GradingDependencies{
		Submissions: store,
		Grades:      store,
		Engine:      scoring.NewEngine(store, store, scoring.RoundBest{}),
		Locker:      lock,
		LockWait:    time.Second,
		Leaderboard: leaderboard,
	}, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())

	id := store.addSubmission(1, 10)
	_, err := svc.Grade(context.Background(), id, gradeRequest("correct", 10))
	require.NoError(t, err)
	require.Equal(t, 1, leaderboard.calls)
	require.True(t, leaderboard.heldOnCall)
	require.Zero(t, lock.Len())
}

func TestGradingServiceLeavesSubmissionUntouchedWhenTeamUpdateFails(t *testing.T) {
	f := newGradingFixture(t, nil)
	f.store.failTeam = true

	id := f.store.addSubmission(1, 10)
	before, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)

	_, err = f.service.Grade(context.Background(), id, gradeRequest("correct", 10))
	require.ErrorIs(t, err, ErrTeamUpdate)

	after, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Zero(t, f.store.teamScore(1))
	require.Zero(t, f.events.count())
}

func TestGradingServiceRejectsBadRequests(t *testing.T) {
	f := newGradingFixture(t, nil)
	ctx := context.Background()
	id := f.store.addSubmission(1, 10)

	_, err := f.service.Grade(ctx, 999, gradeRequest("correct", 10))
	require.ErrorIs(t, err, ErrSubmissionNotFound)

	_, err = f.service.Grade(ctx, id, gradeRequest("brilliant", 10))
	require.ErrorIs(t, err, ErrInvalidEvaluation)

	_, err = f.service.Grade(ctx, id, gradeRequest("pending", 10))
	require.ErrorIs(t, err, ErrInvalidEvaluation)

	_, err = f.service.Grade(ctx, id, gradeRequest("correct", 11))
	require.ErrorIs(t, err, ErrInvalidCorrectCases)

	mismatch := gradeRequest("correct", 10)
	mismatch.PossiblePoints = 500
	_, err = f.service.Grade(ctx, id, mismatch)
	require.ErrorIs(t, err, ErrPossiblePointsMismatch)

	missingJudge := gradeRequest("correct", 10)
	missingJudge.JudgeID = ""
	_, err = f.service.Grade(ctx, id, missingJudge)
	var validationErrs validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrs))

	require.Zero(t, f.store.teamScore(1))
}

func TestGradingServiceFailsClosedOnRegistryLookup(t *testing.T) {
	f := newGradingFixture(t, nil)
	id := f.store.addSubmission(1, 10)
	delete(f.store.problems, 10)

	_, err := f.service.Grade(context.Background(), id, gradeRequest("correct", 10))
	require.ErrorIs(t, err, scoring.ErrRegistryLookup)
	require.Zero(t, f.store.teamScore(1))

	submission, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusPending, submission.Status)
}

func TestGradingServiceReportsBusyLock(t *testing.T) {
	lock := locker.NewKeyedMutex()
	f := newGradingFixture(t, lock)
	id := f.store.addSubmission(1, 10)

	unlock, err := lock.Lock(context.Background(), GradingLockKey(1, models.RoundEasy))
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = f.service.Grade(ctx, id, gradeRequest("correct", 10))
	require.ErrorIs(t, err, ErrGradingBusy)
}

func TestGradingServiceConcurrentGradesDoNotDoubleCredit(t *testing.T) {
	f := newGradingFixture(t, locker.NewKeyedMutex())
	f.store.slowRead = 20 * time.Millisecond

	q1 := f.store.addSubmission(1, 10)
	q2 := f.store.addSubmission(1, 11)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, id := range []uint{q1, q2} {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := f.service.Grade(context.Background(), id, gradeRequest("correct", 10))
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	// Only the best problem of the round counts: 200, not 100 + 200.
	require.Equal(t, 200, f.store.teamScore(1))
}
