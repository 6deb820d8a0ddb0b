package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-contest-api/internal/dto"
	"github.com/noah-isme/gema-contest-api/internal/service"
)

const (
	eventWriteTimeout = 10 * time.Second
	eventWelcome      = "connected"
)

// EventHandler pushes realtime contest events (uploads, grades, state changes) over websocket.
type EventHandler struct {
	events service.EventService
	logger zerolog.Logger
}

// NewEventHandler constructs the handler.
func NewEventHandler(events service.EventService, logger zerolog.Logger) *EventHandler {
	return &EventHandler{
		events: events,
		logger: logger.With().Str("component", "event_handler").Logger(),
	}
}

// Register attaches the websocket endpoint.
func (h *EventHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("request_ctx", withRequestContext(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *EventHandler) handleConnection(conn *websocket.Conn) {
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	stream, unsubscribe := h.events.Subscribe()
	defer unsubscribe()

	welcome, err := dto.NewEvent(eventWelcome, fiber.Map{"time": time.Now().UTC()})
	if err == nil {
		if err := h.write(conn, welcome); err != nil {
			_ = conn.Close()
			return
		}
	}

	// Clients never send anything meaningful; reading detects disconnects.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.logger.Debug().Msg("event websocket connected")
	defer h.logger.Debug().Msg("event websocket disconnected")

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close()
			return
		case event, ok := <-stream:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				_ = conn.Close()
				return
			}
			if err := h.write(conn, event); err != nil {
				h.logger.Debug().Err(err).Msg("failed to write event")
				_ = conn.Close()
				return
			}
		}
	}
}

func (h *EventHandler) write(conn *websocket.Conn, event dto.Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(event)
}
