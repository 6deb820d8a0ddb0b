package handler

import (
	"bufio"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-contest-api/internal/dto"
	"github.com/noah-isme/gema-contest-api/internal/service"
	"github.com/noah-isme/gema-contest-api/internal/utils"
)

const competitionStreamEvent = "competition"

// CompetitionHandler exposes the live competition state and the admin controls.
type CompetitionHandler struct {
	service   service.CompetitionService
	validator *validator.Validate
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewCompetitionHandler constructs the handler.
func NewCompetitionHandler(service service.CompetitionService, validate *validator.Validate, logger zerolog.Logger, keepAlive time.Duration) *CompetitionHandler {
	return &CompetitionHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "competition_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register binds the public routes.
func (h *CompetitionHandler) Register(router fiber.Router) {
	router.Get("/", h.snapshot)
	router.Get("/stream", h.stream)
}

// RegisterAdmin binds the state changing routes.
func (h *CompetitionHandler) RegisterAdmin(router fiber.Router) {
	router.Post("/command", h.command)
	router.Post("/immunity", h.immunity)
	router.Post("/announcements", h.announcements)
}

func (h *CompetitionHandler) snapshot(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "competition", h.service.Snapshot())
}

func (h *CompetitionHandler) stream(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	updates, cleanup := h.service.Subscribe()

	keepAliveInterval := h.keepAlive
	if keepAliveInterval <= 0 {
		keepAliveInterval = 15 * time.Second
	}

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cleanup()

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		for {
			select {
			case snapshot, ok := <-updates:
				if !ok {
					return
				}
				if err := writeSSEEvent(w, competitionStreamEvent, snapshot); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write competition event")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write competition keepalive")
					return
				}
			}
		}
	})

	return nil
}

func (h *CompetitionHandler) command(c *fiber.Ctx) error {
	var payload dto.CompetitionCommandRequest
	if err := h.parse(c, &payload); err != nil {
		return h.handleError(c, err)
	}

	snapshot, err := h.service.SetCommand(withRequestContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "command updated", snapshot)
}

func (h *CompetitionHandler) immunity(c *fiber.Ctx) error {
	var payload dto.BuyImmunityRequest
	if err := h.parse(c, &payload); err != nil {
		return h.handleError(c, err)
	}

	snapshot, err := h.service.SetBuyImmunity(withRequestContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "immunity updated", snapshot)
}

func (h *CompetitionHandler) announcements(c *fiber.Ctx) error {
	var payload dto.AnnouncementRequest
	if err := h.parse(c, &payload); err != nil {
		return h.handleError(c, err)
	}

	snapshot, err := h.service.SetAnnouncements(withRequestContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "announcements updated", snapshot)
}

var errInvalidPayload = errors.New("invalid payload")

func (h *CompetitionHandler) parse(c *fiber.Ctx, payload interface{}) error {
	if err := c.BodyParser(payload); err != nil {
		return errInvalidPayload
	}
	return h.validator.Struct(payload)
}

func (h *CompetitionHandler) handleError(c *fiber.Ctx, err error) error {
	if isValidationError(err) {
		return sendValidationError(c, err)
	}
	// Every service error here is a rejected input; state is never half applied.
	return utils.SendError(c, fiber.StatusBadRequest, err.Error())
}
