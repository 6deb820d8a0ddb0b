package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-contest-api/internal/dto"
	"github.com/noah-isme/gema-contest-api/internal/service"
	"github.com/noah-isme/gema-contest-api/internal/utils"
)

const gradingFailedMessage = "failed checking submission"

// GradingHandler serves the judges' queue and the check endpoint.
type GradingHandler struct {
	grading     service.GradingService
	submissions service.SubmissionService
	logger      zerolog.Logger
}

// NewGradingHandler constructs the handler.
func NewGradingHandler(grading service.GradingService, submissions service.SubmissionService, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		grading:     grading,
		submissions: submissions,
		logger:      logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches judge endpoints to the router group.
func (h *GradingHandler) Register(router fiber.Router) {
	router.Get("/", h.queue)
	router.Patch("/:id/check", h.check)
}

func (h *GradingHandler) queue(c *fiber.Ctx) error {
	items, err := h.submissions.ListForCurrentRound(withRequestContext(c))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list round submissions")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list submissions")
	}
	return utils.SendSuccess(c, "submissions", items)
}

func (h *GradingHandler) check(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.GradeSubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.grading.Grade(withRequestContext(c), id, payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubmissionNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "submission not found")
		case isValidationError(err):
			return sendValidationError(c, err)
		case errors.Is(err, service.ErrInvalidEvaluation),
			errors.Is(err, service.ErrInvalidCorrectCases),
			errors.Is(err, service.ErrPossiblePointsMismatch):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrGradingBusy):
			return utils.SendError(c, fiber.StatusConflict, service.ErrGradingBusy.Error())
		default:
			// The store error stays in the logs; judges only need to retry.
			return utils.SendError(c, fiber.StatusInternalServerError, gradingFailedMessage)
		}
	}

	return utils.SendSuccess(c, "submission checked", result)
}
