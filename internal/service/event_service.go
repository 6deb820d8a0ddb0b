package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-contest-api/internal/dto"
	"github.com/noah-isme/gema-contest-api/internal/observability"
)

const eventBufferSize = 32

// EventPublisher emits realtime events. Delivery is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, event dto.Event) error
}

// EventService fans contest events out to local subscribers and to the other API nodes.
type EventService interface {
	EventPublisher
	Subscribe() (<-chan dto.Event, func())
	Start(ctx context.Context)
}

type eventService struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	tracer       trace.Tracer
	broker       *eventBroker
	nodeID       string
}

type eventEnvelope struct {
	Source string    `json:"source"`
	Event  dto.Event `json:"event"`
	SentAt time.Time `json:"sent_at"`
}

type eventBroker struct {
	mu          sync.RWMutex
	subscribers map[chan dto.Event]struct{}
	closed      bool
}

// NewEventService constructs the event service. Either transport may be nil.
func NewEventService(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) EventService {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":events"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".events"
	}

	return &eventService{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "event_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/gema-contest-api/internal/service/events"),
		broker:       &eventBroker{subscribers: make(map[chan dto.Event]struct{})},
		nodeID:       uuid.NewString(),
	}
}

// Start runs the cross-node consumers until ctx is done, then closes every local subscription.
func (s *eventService) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		s.broker.close()
	}()
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// Publish delivers the event locally, then forwards it to the other nodes.
func (s *eventService) Publish(ctx context.Context, event dto.Event) error {
	if strings.TrimSpace(event.Type) == "" {
		return errors.New("event type is required")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	spanCtx, span := s.tracer.Start(ctx, "events.publish", trace.WithAttributes(attribute.String("event.type", event.Type)))
	defer span.End()

	s.deliver(event)

	if err := s.forward(spanCtx, event); err != nil {
		span.RecordError(err)
		return err
	}

	return nil
}

func (s *eventService) Subscribe() (<-chan dto.Event, func()) {
	channel := make(chan dto.Event, eventBufferSize)

	s.broker.subscribe(channel)
	observability.RealtimeClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(channel)
			observability.RealtimeClientsActive().Dec()
		})
	}

	return channel, cleanup
}

func (s *eventService) deliver(event dto.Event) {
	observability.EventsPublished().WithLabelValues(event.Type).Inc()
	s.broker.broadcast(event)
}

func (s *eventService) forward(ctx context.Context, event dto.Event) error {
	if (s.redis == nil || s.redisChannel == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(eventEnvelope{
		Source: s.nodeID,
		Event:  event,
		SentAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *eventService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("event redis subscription closed")
			return
		}
		s.handleEnvelope([]byte(msg.Payload))
	}
}

func (s *eventService) consumeNATS(ctx context.Context) {
	// Every node needs every event, so each subscribes on its own rather than in a queue group.
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEnvelope(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats events subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain event nats subscription")
		}
	}()
}

func (s *eventService) handleEnvelope(payload []byte) {
	var envelope eventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid event payload")
		return
	}

	if envelope.Source == s.nodeID || envelope.Event.Type == "" {
		return
	}

	s.deliver(envelope.Event)
}

func (b *eventBroker) subscribe(ch chan dto.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return
	}
	b.subscribers[ch] = struct{}{}
}

func (b *eventBroker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for ch := range b.subscribers {
		delete(b.subscribers, ch)
		close(ch)
	}
}

func (b *eventBroker) unsubscribe(ch chan dto.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

// broadcast drops the event for subscribers whose buffer is full.
func (b *eventBroker) broadcast(event dto.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
