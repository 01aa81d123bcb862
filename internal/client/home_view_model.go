package client

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/quizzy-go-api/internal/models"
)

// FailedToLoadMessage is shown when a fetch error carries no text.
const FailedToLoadMessage = "Failed to load data"

// DashboardGetter loads a dashboard snapshot.
type DashboardGetter interface {
	GetDashboard(ctx context.Context) (models.DashboardSnapshot, error)
}

// SessionEnder ends the current session.
type SessionEnder interface {
	SignOut(ctx context.Context) error
}

// HomeViewModel drives the dashboard screen. At most one fetch is in flight: a new
// Load cancels the previous one and the superseded outcome is never published.
type HomeViewModel struct {
	dashboard DashboardGetter
	session   SessionEnder
	state     *Stream[ViewState]
	logger    zerolog.Logger

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	closed     bool
}

// NewHomeViewModel creates the view model in the Loading state. Call Load to fetch.
func NewHomeViewModel(dashboard DashboardGetter, session SessionEnder, logger zerolog.Logger) *HomeViewModel {
	return &HomeViewModel{
		dashboard: dashboard,
		session:   session,
		state:     NewStream(LoadingView()),
		logger:    logger.With().Str("component", "home_view_model").Logger(),
	}
}

// State returns the current view state.
func (m *HomeViewModel) State() ViewState {
	return m.state.Value()
}

// Subscribe observes view state changes, starting with the current state.
func (m *HomeViewModel) Subscribe() (<-chan ViewState, func()) {
	return m.state.Subscribe()
}

// Load publishes Loading, fetches once and publishes the outcome. It blocks until the
// fetch ends and returns the state it published, or the current state when superseded.
func (m *HomeViewModel) Load(ctx context.Context) ViewState {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return m.state.Value()
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.generation++
	generation := m.generation
	fetchCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.state.Set(LoadingView())
	m.mu.Unlock()
	defer cancel()

	snapshot, err := m.dashboard.GetDashboard(fetchCtx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || generation != m.generation {
		m.logger.Debug().Uint64("generation", generation).Msg("discarding superseded dashboard fetch")
		return m.state.Value()
	}
	m.cancel = nil

	next := LoadedView(snapshot)
	if err != nil {
		next = FailedView(errorMessage(err, FailedToLoadMessage))
		m.logger.Warn().Err(err).Msg("dashboard load failed")
	}
	m.state.Set(next)
	return next
}

// Retry restarts the fetch, discarding any previous error.
func (m *HomeViewModel) Retry(ctx context.Context) ViewState {
	return m.Load(ctx)
}

// SignOut ends the session through the auth repository.
func (m *HomeViewModel) SignOut(ctx context.Context) error {
	return m.session.SignOut(ctx)
}

// Close tears the view down, cancelling any in-flight fetch and closing subscriptions.
func (m *HomeViewModel) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.state.Close()
}

func errorMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	if message := err.Error(); message != "" {
		return message
	}
	return fallback
}
