package handler

import (
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-contest-api/internal/dto"
	"github.com/noah-isme/gema-contest-api/internal/middleware"
	"github.com/noah-isme/gema-contest-api/internal/service"
	"github.com/noah-isme/gema-contest-api/internal/utils"
)

// SubmissionHandler exposes upload and read endpoints for submissions.
type SubmissionHandler struct {
	service  service.SubmissionService
	maxBytes int64
	logger   zerolog.Logger
}

// NewSubmissionHandler constructs the handler. maxBytes bounds how much of an upload is read.
func NewSubmissionHandler(service service.SubmissionService, maxBytes int64, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service:  service,
		maxBytes: maxBytes,
		logger:   logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the read endpoints. The upload route is registered separately so the
// router can rate limit it.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Get("/last", h.last)
	router.Get("/team/:teamId", h.listByTeam)
	router.Get("/:id/content", h.content)
}

// Upload stores a new pending submission from a multipart form with a "file" field.
func (h *SubmissionHandler) Upload(c *fiber.Ctx) error {
	var payload dto.SubmissionUploadRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	if userRoleFromContext(c) == middleware.AuthRoleTeam && userIDFromContext(c) != payload.TeamID {
		return utils.SendError(c, fiber.StatusForbidden, "cannot submit for another team")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}
	if h.maxBytes > 0 && file.Size > h.maxBytes {
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, service.ErrSourceTooLarge.Error())
	}

	src, err := file.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read file")
	}
	defer src.Close()

	limit := h.maxBytes
	if limit <= 0 {
		limit = file.Size
	}
	content, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "unable to read file")
	}

	submission, err := h.service.Upload(withRequestContext(c), payload, file.Filename, content)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendCreated(c, "submission uploaded", submission)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	filter, err := parseSubmissionFilter(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	items, err := h.service.ListByTeamProblem(withRequestContext(c), filter)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "submissions", items)
}

func (h *SubmissionHandler) last(c *fiber.Ctx) error {
	filter, err := parseSubmissionFilter(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	result, err := h.service.Last(withRequestContext(c), filter)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "last submission", result)
}

func (h *SubmissionHandler) listByTeam(c *fiber.Ctx) error {
	teamID, err := parseUintParam(c, "teamId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	items, err := h.service.ListByTeam(withRequestContext(c), teamID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "submissions", items)
}

func (h *SubmissionHandler) content(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	result, err := h.service.Content(withRequestContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}

	if strings.Contains(strings.ToLower(c.Get(fiber.HeaderAccept)), fiber.MIMETextPlain) {
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+result.Filename+`"`)
		return c.Type("txt").SendString(result.Content)
	}
	return utils.SendSuccess(c, "submission content", result)
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case isValidationError(err):
		return sendValidationError(c, err)
	case errors.Is(err, service.ErrSubmissionNotFound),
		errors.Is(err, service.ErrTeamNotFound),
		errors.Is(err, service.ErrProblemNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrEmptySource),
		errors.Is(err, service.ErrUnsupportedSource):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSourceTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	default:
		h.logger.Error().Err(err).Str("path", c.Path()).Msg("submission request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to process submission")
	}
}

func parseSubmissionFilter(c *fiber.Ctx) (dto.SubmissionFilter, error) {
	var filter dto.SubmissionFilter
	if err := c.QueryParser(&filter); err != nil {
		return dto.SubmissionFilter{}, err
	}
	return filter, nil
}
