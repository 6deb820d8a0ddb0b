package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-contest-api/internal/config"
	"github.com/noah-isme/gema-contest-api/internal/database"
	"github.com/noah-isme/gema-contest-api/internal/dto"
	"github.com/noah-isme/gema-contest-api/internal/handler"
	"github.com/noah-isme/gema-contest-api/internal/locker"
	"github.com/noah-isme/gema-contest-api/internal/middleware"
	"github.com/noah-isme/gema-contest-api/internal/repository"
	"github.com/noah-isme/gema-contest-api/internal/router"
	"github.com/noah-isme/gema-contest-api/internal/scoring"
	"github.com/noah-isme/gema-contest-api/internal/service"
)

const testJWTSecret = "contest-test-secret"

type contestApp struct {
	app         *fiber.App
	db          *gorm.DB
	competition service.CompetitionService
	events      service.EventService
	stop        context.CancelFunc
}

type envelope[T any] struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    T                 `json:"data"`
	Details map[string]string `json:"details"`
}

func setupContestApp(t *testing.T) *contestApp {
	t.Helper()

	db, err := database.Connect(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	cfg := config.Config{
		AppName:         "Contest Test",
		AppEnv:          "test",
		JWTSecret:       testJWTSecret,
		ScoringPolicy:   scoring.PolicyRoundBest,
		LockBackend:     config.LockBackendMemory,
		UploadMaxBytes:  1024,
		UploadRateLimit: 100,
		SSEKeepAlive:    time.Second,
	}

	teamRepo := repository.NewTeamRepository(db)
	problemRepo := repository.NewProblemRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	events := service.NewEventService(nil, "contest-test", nil, logger)
	events.Start(ctx)

	competition := service.NewCompetitionService(map[string]time.Duration{
		"easy": time.Hour, "medium": time.Hour, "wager": time.Hour, "hard": time.Hour,
	}, events, logger)

	teams := service.NewTeamService(teamRepo, nil, 0, validate, logger)
	problems := service.NewProblemService(problemRepo, validate, logger)
	submissions := service.NewSubmissionService(service.SubmissionDependencies{
		Submissions:    submissionRepo,
		Teams:          teamRepo,
		Problems:       problemRepo,
		Rounds:         competition,
		Events:         events,
		MaxSourceBytes: cfg.UploadMaxBytes,
	}, validate, logger)
	grading := service.NewGradingService(service.GradingDependencies{
		Submissions: submissionRepo,
		Grades:      repository.NewGradingRepository(db),
		Engine:      scoring.NewEngine(problemRepo, submissionRepo, scoring.RoundBest{}),
		Locker:      locker.NewKeyedMutex(),
		LockWait:    time.Second,
		Events:      events,
		Leaderboard: teams,
	}, validate, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		TeamHandler:        handler.NewTeamHandler(teams, logger),
		ProblemHandler:     handler.NewProblemHandler(problems, logger),
		SubmissionHandler:  handler.NewSubmissionHandler(submissions, int64(cfg.UploadMaxBytes), logger),
		GradingHandler:     handler.NewGradingHandler(grading, submissions, logger),
		CompetitionHandler: handler.NewCompetitionHandler(competition, validate, logger, cfg.SSEKeepAlive),
		EventHandler:       handler.NewEventHandler(events, logger),
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
	})

	return &contestApp{app: app, db: db, competition: competition, events: events, stop: cancel}
}

func signedToken(t *testing.T, role string, subject uint) string {
	t.Helper()

	claims := jwt.MapClaims{"role": role, "exp": time.Now().Add(time.Hour).Unix()}
	if subject > 0 {
		claims["sub"] = strconv.FormatUint(uint64(subject), 10)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, payload interface{}) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) envelope[T] {
	t.Helper()
	defer resp.Body.Close()

	var out envelope[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func uploadSource(t *testing.T, app *fiber.App, token string, teamID, problemID uint, filename string, content []byte) *http.Response {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("team_id", strconv.FormatUint(uint64(teamID), 10)))
	require.NoError(t, writer.WriteField("problem_id", strconv.FormatUint(uint64(problemID), 10)))
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func createTeam(t *testing.T, ca *contestApp, name string) uint {
	t.Helper()

	resp := doJSON(t, ca.app, http.MethodPost, "/api/v1/admin/teams", signedToken(t, "admin", 1), dto.TeamCreateRequest{Name: name})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	return decode[dto.TeamResponse](t, resp).Data.ID
}

func createProblem(t *testing.T, ca *contestApp, difficulty string, points, cases int) uint {
	t.Helper()

	resp := doJSON(t, ca.app, http.MethodPost, "/api/v1/admin/problems", signedToken(t, "admin", 1), dto.ProblemCreateRequest{
		Title:          "Problem " + difficulty,
		Difficulty:     difficulty,
		PossiblePoints: points,
		TotalCases:     cases,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	return decode[dto.ProblemResponse](t, resp).Data.ID
}

func uploadAs(t *testing.T, ca *contestApp, teamID, problemID uint) uint {
	t.Helper()

	resp := uploadSource(t, ca.app, signedToken(t, "team", teamID), teamID, problemID, "main.py", []byte("print(input())\n"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	return decode[dto.SubmissionResponse](t, resp).Data.ID
}

func startFiberServer(t *testing.T, app *fiber.App) (string, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	shutdown := func() {
		_ = app.ShutdownWithTimeout(time.Second)
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}

	return "http://" + listener.Addr().String(), shutdown
}
