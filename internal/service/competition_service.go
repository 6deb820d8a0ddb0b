package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-contest-api/internal/dto"
	"github.com/noah-isme/gema-contest-api/internal/models"
	"github.com/noah-isme/gema-contest-api/internal/observability"
)

// Broadcast commands.
const (
	CommandNormal = "normal"
	CommandFreeze = "freeze"
	CommandLogout = "logout"
)

const (
	logoutBroadcasts        = 5
	competitionBufferSize   = 4
	defaultCompetitionTick  = time.Second
	buyImmunityDisabledFlag = "disabled"
)

// CompetitionService owns the live competition state: round, broadcast command, immunity
// purchases, announcements and the round timer.
type CompetitionService interface {
	RoundProvider
	Snapshot() dto.CompetitionSnapshot
	SetCommand(ctx context.Context, payload dto.CompetitionCommandRequest) (dto.CompetitionSnapshot, error)
	SetBuyImmunity(ctx context.Context, payload dto.BuyImmunityRequest) (dto.CompetitionSnapshot, error)
	SetAnnouncements(ctx context.Context, payload dto.AnnouncementRequest) (dto.CompetitionSnapshot, error)
	Subscribe() (<-chan dto.CompetitionSnapshot, func())
	Run(ctx context.Context, interval time.Duration)
}

// CompetitionState is the mutable competition state. It is only touched under competitionService.mu.
type CompetitionState struct {
	Round       models.Round
	Command     string
	BuyImmunity string
	Messages    []dto.Announcement
	UpdatedAt   time.Time

	logoutTicks int
	timer       roundTimer
}

type roundTimer struct {
	pending    *time.Timer
	remaining  time.Duration
	startedAt  time.Time
	running    bool
	generation int
}

type competitionService struct {
	mu          sync.Mutex
	state       CompetitionState
	durations   map[models.Round]time.Duration
	events      EventPublisher
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
	subMu       sync.RWMutex
	subscribers map[chan dto.CompetitionSnapshot]struct{}
}

// NewCompetitionService constructs the competition state holder. durations maps round names to
// the length of their timer; rounds without a duration run untimed.
func NewCompetitionService(durations map[string]time.Duration, events EventPublisher, logger zerolog.Logger) CompetitionService {
	roundDurations := make(map[models.Round]time.Duration, len(durations))
	for name, duration := range durations {
		if round, ok := models.ParseRound(name); ok && round.HasProblems() && duration > 0 {
			roundDurations[round] = duration
		}
	}

	return &competitionService{
		state: CompetitionState{
			Round:       models.RoundStart,
			Command:     CommandNormal,
			BuyImmunity: buyImmunityDisabledFlag,
			Messages:    []dto.Announcement{},
			UpdatedAt:   time.Now().UTC(),
		},
		durations:   roundDurations,
		events:      events,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "competition_service").Logger(),
		now:         time.Now,
		subscribers: make(map[chan dto.CompetitionSnapshot]struct{}),
	}
}

func (s *competitionService) CurrentRound() models.Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Round
}

func (s *competitionService) Snapshot() dto.CompetitionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// SetCommand changes the broadcast command and the round. Moving to another round restarts the
// timer; freeze pauses it and normal resumes it.
func (s *competitionService) SetCommand(ctx context.Context, payload dto.CompetitionCommandRequest) (dto.CompetitionSnapshot, error) {
	command := strings.ToLower(strings.TrimSpace(payload.Command))
	switch command {
	case CommandNormal, CommandFreeze, CommandLogout:
	default:
		return dto.CompetitionSnapshot{}, fmt.Errorf("unknown command %q", payload.Command)
	}

	round, ok := models.ParseRound(payload.Round)
	if !ok {
		return dto.CompetitionSnapshot{}, fmt.Errorf("%w: %q", ErrInvalidRound, payload.Round)
	}

	s.mu.Lock()
	if round != s.state.Round {
		s.stopTimerLocked()
		s.state.Round = round
		if duration, ok := s.durations[round]; ok {
			s.startTimerLocked(duration)
		}
	}

	s.state.Command = command
	s.state.logoutTicks = 0
	switch command {
	case CommandFreeze:
		s.pauseTimerLocked()
	case CommandNormal:
		s.resumeTimerLocked()
	}
	snapshot := s.touchLocked()
	s.mu.Unlock()

	s.logger.Info().Str("round", string(round)).Str("command", command).Msg("competition command set")
	s.changed(ctx, snapshot)
	return snapshot, nil
}

func (s *competitionService) SetBuyImmunity(ctx context.Context, payload dto.BuyImmunityRequest) (dto.CompetitionSnapshot, error) {
	value := strings.ToLower(strings.TrimSpace(payload.Value))
	if value != "enabled" && value != buyImmunityDisabledFlag {
		return dto.CompetitionSnapshot{}, fmt.Errorf("invalid immunity value %q", payload.Value)
	}

	s.mu.Lock()
	s.state.BuyImmunity = value
	snapshot := s.touchLocked()
	s.mu.Unlock()

	s.changed(ctx, snapshot)
	return snapshot, nil
}

// SetAnnouncements replaces every announcement. Markup is stripped and blank messages dropped.
func (s *competitionService) SetAnnouncements(ctx context.Context, payload dto.AnnouncementRequest) (dto.CompetitionSnapshot, error) {
	now := s.now().UTC().Format(time.RFC3339)

	messages := make([]dto.Announcement, 0, len(payload.Messages))
	for _, input := range payload.Messages {
		clean := strings.TrimSpace(s.sanitizer.Sanitize(input.Message))
		if clean == "" {
			continue
		}
		timestamp := strings.TrimSpace(s.sanitizer.Sanitize(input.Timestamp))
		if timestamp == "" {
			timestamp = now
		}
		messages = append(messages, dto.Announcement{Message: clean, Timestamp: timestamp})
	}

	s.mu.Lock()
	s.state.Messages = messages
	snapshot := s.touchLocked()
	s.mu.Unlock()

	s.changed(ctx, snapshot)
	return snapshot, nil
}

// Subscribe streams snapshots, starting with the current one.
func (s *competitionService) Subscribe() (<-chan dto.CompetitionSnapshot, func()) {
	channel := make(chan dto.CompetitionSnapshot, competitionBufferSize)
	channel <- s.Snapshot()

	s.subMu.Lock()
	s.subscribers[channel] = struct{}{}
	s.subMu.Unlock()
	observability.RealtimeClientsActive().Inc()

	var once sync.Once
	return channel, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, channel)
			close(channel)
			s.subMu.Unlock()
			observability.RealtimeClientsActive().Dec()
		})
	}
}

// Run broadcasts the state every interval until ctx is done. A logout command falls back to
// normal once it has been broadcast enough times for every client to see it.
func (s *competitionService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultCompetitionTick
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.stopTimerLocked()
			s.mu.Unlock()
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *competitionService) tick(ctx context.Context) {
	s.mu.Lock()
	snapshot := s.snapshotLocked()
	reverted := false
	if s.state.Command == CommandLogout {
		s.state.logoutTicks++
		if s.state.logoutTicks >= logoutBroadcasts {
			s.state.Command = CommandNormal
			s.state.logoutTicks = 0
			reverted = true
		}
	}
	var after dto.CompetitionSnapshot
	if reverted {
		after = s.touchLocked()
	}
	s.mu.Unlock()

	s.broadcast(snapshot)
	if reverted {
		s.changed(ctx, after)
	}
}

func (s *competitionService) startTimerLocked(duration time.Duration) {
	s.state.timer.generation++
	s.state.timer.remaining = duration
	s.state.timer.running = false
	s.resumeTimerLocked()
}

func (s *competitionService) resumeTimerLocked() {
	timer := &s.state.timer
	if timer.running || timer.remaining <= 0 {
		return
	}

	generation := timer.generation
	timer.running = true
	timer.startedAt = s.now()
	timer.pending = time.AfterFunc(timer.remaining, func() {
		s.expire(generation)
	})
}

func (s *competitionService) pauseTimerLocked() {
	timer := &s.state.timer
	if !timer.running {
		return
	}
	if timer.pending != nil {
		timer.pending.Stop()
		timer.pending = nil
	}
	timer.remaining -= s.now().Sub(timer.startedAt)
	if timer.remaining < 0 {
		timer.remaining = 0
	}
	timer.running = false
}

func (s *competitionService) stopTimerLocked() {
	timer := &s.state.timer
	if timer.pending != nil {
		timer.pending.Stop()
		timer.pending = nil
	}
	timer.generation++
	timer.running = false
	timer.remaining = 0
}

// expire resets the round once its timer runs out, unless the timer was replaced meanwhile.
func (s *competitionService) expire(generation int) {
	s.mu.Lock()
	if s.state.timer.generation != generation || !s.state.timer.running {
		s.mu.Unlock()
		return
	}
	s.state.timer.pending = nil
	s.state.timer.running = false
	s.state.timer.remaining = 0
	ended := s.state.Round
	s.state.Round = models.RoundStart
	snapshot := s.touchLocked()
	s.mu.Unlock()

	s.logger.Info().Str("round", string(ended)).Msg("round timer ended, round reset to start")
	s.changed(context.Background(), snapshot)
}

func (s *competitionService) touchLocked() dto.CompetitionSnapshot {
	s.state.UpdatedAt = s.now().UTC()
	return s.snapshotLocked()
}

func (s *competitionService) snapshotLocked() dto.CompetitionSnapshot {
	timer := s.state.timer
	remaining := timer.remaining
	if timer.running {
		remaining -= s.now().Sub(timer.startedAt)
	}
	if remaining < 0 {
		remaining = 0
	}

	messages := make([]dto.Announcement, len(s.state.Messages))
	copy(messages, s.state.Messages)

	return dto.CompetitionSnapshot{
		Command:        s.state.Command,
		BuyImmunity:    s.state.BuyImmunity,
		Messages:       messages,
		Round:          string(s.state.Round),
		TimerRunning:   timer.running,
		TimerRemaining: int64(remaining.Round(time.Second) / time.Second),
		UpdatedAt:      s.state.UpdatedAt,
	}
}

func (s *competitionService) changed(ctx context.Context, snapshot dto.CompetitionSnapshot) {
	s.broadcast(snapshot)

	if s.events == nil {
		return
	}
	event, err := dto.NewEvent(dto.EventCompetitionUpdated, snapshot)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode competition event")
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish competition event")
	}
}

func (s *competitionService) broadcast(snapshot dto.CompetitionSnapshot) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for ch := range s.subscribers {
		select {
		case ch <- snapshot:
		default:
		}
	}
}
