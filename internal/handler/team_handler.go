package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-contest-api/internal/dto"
	"github.com/noah-isme/gema-contest-api/internal/service"
	"github.com/noah-isme/gema-contest-api/internal/utils"
)

// TeamHandler serves the leaderboard and team registration.
type TeamHandler struct {
	service service.TeamService
	logger  zerolog.Logger
}

// NewTeamHandler constructs the handler.
func NewTeamHandler(service service.TeamService, logger zerolog.Logger) *TeamHandler {
	return &TeamHandler{
		service: service,
		logger:  logger.With().Str("component", "team_handler").Logger(),
	}
}

// Register attaches the public team routes.
func (h *TeamHandler) Register(router fiber.Router) {
	router.Get("/", h.leaderboard)
	router.Get("/:id", h.get)
}

// RegisterAdmin attaches the team management routes.
func (h *TeamHandler) RegisterAdmin(router fiber.Router) {
	router.Post("/", h.create)
}

func (h *TeamHandler) leaderboard(c *fiber.Ctx) error {
	teams, err := h.service.Leaderboard(withRequestContext(c))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load leaderboard")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load leaderboard")
	}
	return utils.SendSuccess(c, "leaderboard", teams)
}

func (h *TeamHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	team, err := h.service.Get(withRequestContext(c), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "team", team)
}

func (h *TeamHandler) create(c *fiber.Ctx) error {
	var payload dto.TeamCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	team, err := h.service.Create(withRequestContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendCreated(c, "team created", team)
}

func (h *TeamHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case isValidationError(err):
		return sendValidationError(c, err)
	case errors.Is(err, service.ErrTeamNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrTeamNameTaken):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	default:
		h.logger.Error().Err(err).Msg("team request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to process team")
	}
}
