package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/noah-isme/quizzy-go-api/internal/dto"
	"github.com/noah-isme/quizzy-go-api/internal/utils"
)

const defaultTimeout = 10 * time.Second

// ErrNotSignedIn is returned by operations that need a current user.
var ErrNotSignedIn = errors.New("no user is signed in")

// User is the signed-in account as seen by the client.
type User struct {
	LocalID   string
	Email     string
	IDToken   string
	SessionID string
	ExpiresAt time.Time
}

// Error is a provider-side failure. Message is the provider's error code.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Config configures the identity client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
	Logger     zerolog.Logger
}

// Client talks to the identity service and owns the process-wide current user.
type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
	logger     zerolog.Logger
	now        func() time.Time

	mu        sync.RWMutex
	user      *User
	listeners map[uint64]func(*User)
	nextID    uint64
}

// New creates an identity client.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("identity base url is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		dialer:     dialer,
		logger:     cfg.Logger.With().Str("component", "identity_client").Logger(),
		now:        time.Now,
		listeners:  make(map[uint64]func(*User)),
	}, nil
}

// SignInWithPassword signs in an existing account.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (User, error) {
	return c.authenticate(ctx, "/sign-in", email, password)
}

// CreateUserWithPassword registers a new account and signs it in.
func (c *Client) CreateUserWithPassword(ctx context.Context, email, password string) (User, error) {
	return c.authenticate(ctx, "/sign-up", email, password)
}

// SignOut clears the current user locally, then revokes the server session.
// The local sign-out always succeeds; the returned error reports the revoke only.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	user := c.user
	c.user = nil
	c.mu.Unlock()

	if user == nil {
		return nil
	}
	c.notify(nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sign-out", nil)
	if err != nil {
		return fmt.Errorf("build sign-out request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+user.IDToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	return nil
}

// CurrentUser returns the signed-in user, if any.
func (c *Client) CurrentUser() (User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.user == nil {
		return User{}, false
	}
	return *c.user, true
}

// AddSessionListener registers fn for session changes. fn is invoked right away with the
// current user and then after every change; nil means signed out.
func (c *Client) AddSessionListener(fn func(*User)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	current := c.copyUser()
	c.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Watch streams server session events for the current user until ctx ends or the
// connection drops. A sign-out of the current session elsewhere clears the local user.
func (c *Client) Watch(ctx context.Context) error {
	user, ok := c.CurrentUser()
	if !ok {
		return ErrNotSignedIn
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+user.IDToken)

	conn, resp, err := c.dialer.DialContext(ctx, websocketURL(c.baseURL+"/events"), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return decodeError(resp)
		}
		return fmt.Errorf("dial session events: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		var event dto.SessionEvent
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read session event: %w", err)
		}
		c.applyEvent(event)
	}
}

func (c *Client) applyEvent(event dto.SessionEvent) {
	if event.Type != dto.SessionEventSignedOut {
		return
	}

	c.mu.Lock()
	if c.user == nil || c.user.LocalID != event.LocalID || c.user.SessionID != event.SessionID {
		c.mu.Unlock()
		return
	}
	c.user = nil
	c.mu.Unlock()

	c.logger.Info().Str("local_id", event.LocalID).Msg("session revoked remotely")
	c.notify(nil)
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) (User, error) {
	body, err := json.Marshal(dto.PasswordCredentialsRequest{Email: email, Password: password})
	if err != nil {
		return User{}, fmt.Errorf("encode credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return User{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return User{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return User{}, decodeError(resp)
	}

	var auth dto.AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return User{}, fmt.Errorf("decode auth response: %w", err)
	}
	if auth.IDToken == "" || auth.LocalID == "" {
		return User{}, errors.New("identity response missing token")
	}

	user := User{
		LocalID:   auth.LocalID,
		Email:     auth.Email,
		IDToken:   auth.IDToken,
		SessionID: auth.SessionID,
		ExpiresAt: c.now().Add(time.Duration(auth.ExpiresIn) * time.Second),
	}

	c.mu.Lock()
	c.user = &user
	c.mu.Unlock()

	c.notify(&user)
	return user, nil
}

func (c *Client) notify(user *User) {
	c.mu.RLock()
	listeners := make([]func(*User), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.RUnlock()

	for _, fn := range listeners {
		if user == nil {
			fn(nil)
			continue
		}
		copied := *user
		fn(&copied)
	}
}

func (c *Client) copyUser() *User {
	if c.user == nil {
		return nil
	}
	copied := *c.user
	return &copied
}

func decodeError(resp *http.Response) error {
	var payload utils.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Message == "" {
		return &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return &Error{Status: resp.StatusCode, Message: payload.Message}
}

func websocketURL(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	default:
		return httpURL
	}
}
