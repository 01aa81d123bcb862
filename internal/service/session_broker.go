package service

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/quizzy-go-api/internal/dto"
	"github.com/noah-isme/quizzy-go-api/internal/observability"
)

const (
	sessionEventBufferSize = 8
	sessionEventsSubject   = "quizzy.sessions"
)

// SessionBroker fans session events out to local subscribers and, when NATS is configured,
// to the other API nodes.
type SessionBroker interface {
	Publish(ctx context.Context, event dto.SessionEvent)
	Subscribe(localID string) (<-chan dto.SessionEvent, func())
	Start(ctx context.Context)
}

type sessionBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan dto.SessionEvent]struct{}
	nats        *nats.Conn
	nodeID      string
	logger      zerolog.Logger
}

type sessionEnvelope struct {
	Source string           `json:"source"`
	Event  dto.SessionEvent `json:"event"`
}

// NewSessionBroker builds a broker. natsConn may be nil for single-node deployments.
func NewSessionBroker(natsConn *nats.Conn, logger zerolog.Logger) SessionBroker {
	return &sessionBroker{
		subscribers: make(map[string]map[chan dto.SessionEvent]struct{}),
		nats:        natsConn,
		nodeID:      uuid.NewString(),
		logger:      logger.With().Str("component", "session_broker").Logger(),
	}
}

func (b *sessionBroker) Start(ctx context.Context) {
	if b.nats == nil {
		return
	}

	// Each node needs every event, so this is a plain subscription rather than a queue group.
	sub, err := b.nats.Subscribe(sessionEventsSubject, func(msg *nats.Msg) {
		b.handleRemote(msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to nats session subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain session nats subscription")
		}
	}()
}

func (b *sessionBroker) Publish(_ context.Context, event dto.SessionEvent) {
	b.broadcast(event)

	if b.nats == nil {
		return
	}

	payload, err := json.Marshal(sessionEnvelope{Source: b.nodeID, Event: event})
	if err != nil {
		b.logger.Warn().Err(err).Msg("failed to encode session event")
		return
	}
	if err := b.nats.Publish(sessionEventsSubject, payload); err != nil {
		b.logger.Warn().Err(err).Msg("failed to publish session event to nats")
	}
}

func (b *sessionBroker) Subscribe(localID string) (<-chan dto.SessionEvent, func()) {
	ch := make(chan dto.SessionEvent, sessionEventBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[localID]; !ok {
		b.subscribers[localID] = make(map[chan dto.SessionEvent]struct{})
	}
	b.subscribers[localID][ch] = struct{}{}
	b.mu.Unlock()
	observability.SessionStreamsActive().Inc()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if subscribers, ok := b.subscribers[localID]; ok {
				delete(subscribers, ch)
				if len(subscribers) == 0 {
					delete(b.subscribers, localID)
				}
			}
			close(ch)
			b.mu.Unlock()
			observability.SessionStreamsActive().Dec()
		})
	}

	return ch, cancel
}

func (b *sessionBroker) handleRemote(payload []byte) {
	var envelope sessionEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		b.logger.Warn().Err(err).Msg("invalid session event payload")
		return
	}
	if envelope.Source == b.nodeID {
		return
	}
	b.broadcast(envelope.Event)
}

func (b *sessionBroker) broadcast(event dto.SessionEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[event.LocalID] {
		select {
		case ch <- event:
		default:
			b.logger.Debug().Str("local_id", event.LocalID).Msg("dropping session event for slow subscriber")
		}
	}
}
