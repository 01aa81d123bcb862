package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quizzy-go-api/internal/dto"
	"github.com/noah-isme/quizzy-go-api/internal/handler"
	"github.com/noah-isme/quizzy-go-api/internal/service"
)

type stubIdentityService struct {
	response  dto.AuthResponse
	err       error
	signOuts  int
	lastEmail string
	claims    dto.SessionClaims
}

func (s *stubIdentityService) SignIn(_ context.Context, req dto.PasswordCredentialsRequest) (dto.AuthResponse, error) {
	s.lastEmail = req.Email
	return s.response, s.err
}

func (s *stubIdentityService) SignUp(_ context.Context, req dto.PasswordCredentialsRequest) (dto.AuthResponse, error) {
	s.lastEmail = req.Email
	return s.response, s.err
}

func (s *stubIdentityService) SignOut(_ context.Context, _ dto.SessionClaims) error {
	s.signOuts++
	return s.err
}

func (s *stubIdentityService) VerifyToken(_ context.Context, token string) (dto.SessionClaims, error) {
	if token != "valid-token" {
		return dto.SessionClaims{}, service.ErrInvalidToken
	}
	return s.claims, nil
}

func (s *stubIdentityService) CurrentAccount(_ context.Context, claims dto.SessionClaims) (dto.AccountResponse, error) {
	return dto.AccountResponse{LocalID: claims.LocalID, Email: claims.Email, SessionID: claims.SessionID}, nil
}

func newIdentityApp(svc service.IdentityService, broker service.SessionBroker) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/identity")
	handler.NewIdentityHandler(svc, broker, zerolog.Nop()).Register(group, handler.IdentityRouteOptions{})
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp, payload
}

func TestIdentityHandler_SignInSuccess(t *testing.T) {
	svc := &stubIdentityService{response: dto.AuthResponse{IDToken: "tok", LocalID: "4", Email: "s-1@sch.school.com", ExpiresIn: 3600}}
	app := newIdentityApp(svc, service.NewSessionBroker(nil, zerolog.Nop()))

	resp, payload := postJSON(t, app, "/api/v1/identity/sign-in", dto.PasswordCredentialsRequest{Email: "s-1@sch.school.com", Password: "Student@123"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "tok", payload["idToken"])
	require.Equal(t, "4", payload["localId"])
	require.Equal(t, "s-1@sch.school.com", svc.lastEmail)
}

func TestIdentityHandler_SignUpReturnsCreated(t *testing.T) {
	svc := &stubIdentityService{response: dto.AuthResponse{IDToken: "tok", LocalID: "5"}}
	app := newIdentityApp(svc, service.NewSessionBroker(nil, zerolog.Nop()))

	resp, payload := postJSON(t, app, "/api/v1/identity/sign-up", dto.PasswordCredentialsRequest{Email: "s-2@sch.school.com", Password: "Student@123"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "5", payload["localId"])
}

func TestIdentityHandler_MapsProviderErrors(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		path    string
		status  int
		message string
	}{
		{name: "bad credentials", err: service.ErrInvalidCredentials, path: "/api/v1/identity/sign-in", status: fiber.StatusBadRequest, message: "INVALID_LOGIN_CREDENTIALS"},
		{name: "existing email", err: service.ErrEmailExists, path: "/api/v1/identity/sign-up", status: fiber.StatusBadRequest, message: "EMAIL_EXISTS"},
		{name: "unexpected", err: context.DeadlineExceeded, path: "/api/v1/identity/sign-in", status: fiber.StatusInternalServerError, message: "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newIdentityApp(&stubIdentityService{err: tc.err}, service.NewSessionBroker(nil, zerolog.Nop()))

			resp, payload := postJSON(t, app, tc.path, dto.PasswordCredentialsRequest{Email: "s@sch.school.com", Password: "Student@123"})
			require.Equal(t, tc.status, resp.StatusCode)
			require.Equal(t, false, payload["success"])
			require.Equal(t, tc.message, payload["message"])
		})
	}
}

func TestIdentityHandler_ValidationErrorsCarryDetails(t *testing.T) {
	validationErr := validator.New().Struct(dto.PasswordCredentialsRequest{Email: "nope", Password: "1"})
	require.Error(t, validationErr)

	app := newIdentityApp(&stubIdentityService{err: validationErr}, service.NewSessionBroker(nil, zerolog.Nop()))

	resp, payload := postJSON(t, app, "/api/v1/identity/sign-in", map[string]string{"email": "nope", "password": "1"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "INVALID_REQUEST", payload["message"])

	details, ok := payload["details"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "email", details["email"])
	require.Equal(t, "min", details["password"])
}

func TestIdentityHandler_SessionRequiresBearer(t *testing.T) {
	svc := &stubIdentityService{claims: dto.SessionClaims{AccountID: 9, LocalID: "9", Email: "s@sch.school.com", SessionID: "sid-9"}}
	app := newIdentityApp(svc, service.NewSessionBroker(nil, zerolog.Nop()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/identity/session", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	req = httptest.NewRequest(http.MethodGet, "/api/v1/identity/session", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Success bool                `json:"success"`
		Data    dto.AccountResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	resp.Body.Close()
	require.True(t, payload.Success)
	require.Equal(t, "sid-9", payload.Data.SessionID)
}

func TestIdentityHandler_SignOut(t *testing.T) {
	svc := &stubIdentityService{claims: dto.SessionClaims{LocalID: "9", SessionID: "sid-9"}}
	app := newIdentityApp(svc, service.NewSessionBroker(nil, zerolog.Nop()))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/identity/sign-out", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp.Body.Close()
	require.Equal(t, 1, svc.signOuts)

	svc.err = service.ErrSessionNotFound
	req = httptest.NewRequest(http.MethodPost, "/api/v1/identity/sign-out", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestIdentityHandler_EventsStreamsSessionChanges(t *testing.T) {
	svc := &stubIdentityService{claims: dto.SessionClaims{LocalID: "12", SessionID: "sid-12"}}
	broker := service.NewSessionBroker(nil, zerolog.Nop())
	app := newIdentityApp(svc, broker)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(listener) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	url := "ws://" + listener.Addr().String() + "/api/v1/identity/events"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	if resp != nil {
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer valid-token")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				broker.Publish(context.Background(), dto.SessionEvent{Type: dto.SessionEventSignedOut, LocalID: "12", SessionID: "sid-12"})
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var event dto.SessionEvent
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, dto.SessionEventSignedOut, event.Type)
	require.Equal(t, "sid-12", event.SessionID)
}
