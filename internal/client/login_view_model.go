package client

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/quizzy-go-api/pkg/identity"
)

// Messages surfaced by the login form.
const (
	MissingFieldsMessage = "Please enter both School ID and Student ID"
	SignInFailedMessage  = "Sign in failed"
)

// Authenticator signs a school/student pair in.
type Authenticator interface {
	SignIn(ctx context.Context, schoolID, studentID string) (identity.User, error)
	IsAuthenticated() bool
}

// LoginViewModel drives the login form.
type LoginViewModel struct {
	auth   Authenticator
	state  *Stream[AuthState]
	logger zerolog.Logger

	mu        sync.Mutex
	schoolID  string
	studentID string
}

// NewLoginViewModel starts Authenticated when a user is already signed in.
func NewLoginViewModel(auth Authenticator, logger zerolog.Logger) *LoginViewModel {
	initial := unauthenticated()
	if auth.IsAuthenticated() {
		initial = authenticated()
	}

	return &LoginViewModel{
		auth:   auth,
		state:  NewStream(initial),
		logger: logger.With().Str("component", "login_view_model").Logger(),
	}
}

// State returns the current auth state.
func (m *LoginViewModel) State() AuthState {
	return m.state.Value()
}

// Subscribe observes auth state changes, starting with the current state.
func (m *LoginViewModel) Subscribe() (<-chan AuthState, func()) {
	return m.state.Subscribe()
}

// SetSchoolID updates the school field. Editing clears a failure.
func (m *LoginViewModel) SetSchoolID(value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schoolID = value
	m.clearFailureLocked()
}

// SetStudentID updates the student field. Editing clears a failure.
func (m *LoginViewModel) SetStudentID(value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.studentID = value
	m.clearFailureLocked()
}

// ClearError returns a failed form to Unauthenticated.
func (m *LoginViewModel) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearFailureLocked()
}

// SignIn validates the fields and signs in. Blank fields fail without calling the
// provider. A call made while a sign-in is already loading is ignored.
func (m *LoginViewModel) SignIn(ctx context.Context) AuthState {
	m.mu.Lock()
	current := m.state.Value()
	if current.Kind == AuthLoading {
		m.mu.Unlock()
		return current
	}

	schoolID := strings.TrimSpace(m.schoolID)
	studentID := strings.TrimSpace(m.studentID)
	if schoolID == "" || studentID == "" {
		next := authFailed(MissingFieldsMessage)
		m.state.Set(next)
		m.mu.Unlock()
		return next
	}

	m.state.Set(authLoading())
	m.mu.Unlock()

	_, err := m.auth.SignIn(ctx, schoolID, studentID)

	next := authenticated()
	if err != nil {
		m.logger.Warn().Err(err).Msg("sign-in failed")
		next = authFailed(errorMessage(err, SignInFailedMessage))
	}

	m.mu.Lock()
	m.state.Set(next)
	m.mu.Unlock()
	return next
}

// OnSessionChanged applies an external session notification.
func (m *LoginViewModel) OnSessionChanged(authenticatedNow bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.state.Value()
	switch {
	case authenticatedNow && current.Kind != AuthAuthenticated && current.Kind != AuthLoading:
		m.state.Set(authenticated())
	case !authenticatedNow && current.Kind == AuthAuthenticated:
		m.state.Set(unauthenticated())
	}
}

// Follow applies session changes until the channel closes or ctx ends.
func (m *LoginViewModel) Follow(ctx context.Context, changes <-chan bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case authenticatedNow, ok := <-changes:
			if !ok {
				return
			}
			m.OnSessionChanged(authenticatedNow)
		}
	}
}

// Close closes subscriptions.
func (m *LoginViewModel) Close() {
	m.state.Close()
}

func (m *LoginViewModel) clearFailureLocked() {
	if m.state.Value().Kind == AuthFailed {
		m.state.Set(unauthenticated())
	}
}
