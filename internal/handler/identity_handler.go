package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/quizzy-go-api/internal/dto"
	"github.com/noah-isme/quizzy-go-api/internal/middleware"
	"github.com/noah-isme/quizzy-go-api/internal/service"
	"github.com/noah-isme/quizzy-go-api/internal/utils"
)

const sessionStreamPingInterval = 30 * time.Second

// IdentityHandler exposes the email/password identity provider.
type IdentityHandler struct {
	service service.IdentityService
	broker  service.SessionBroker
	logger  zerolog.Logger
}

// IdentityRouteOptions carries the middleware the identity routes depend on.
type IdentityRouteOptions struct {
	Protect       fiber.Handler
	SignInLimiter fiber.Handler
}

// NewIdentityHandler creates an identity handler.
func NewIdentityHandler(service service.IdentityService, broker service.SessionBroker, logger zerolog.Logger) *IdentityHandler {
	return &IdentityHandler{
		service: service,
		broker:  broker,
		logger:  logger.With().Str("component", "identity_handler").Logger(),
	}
}

// Register binds the identity routes under the provided router group.
func (h *IdentityHandler) Register(router fiber.Router, opts IdentityRouteOptions) {
	protect := opts.Protect
	if protect == nil {
		protect = middleware.IDTokenProtected(h.service)
	}

	if opts.SignInLimiter != nil {
		router.Post("/sign-in", opts.SignInLimiter, h.signIn)
	} else {
		router.Post("/sign-in", h.signIn)
	}
	router.Post("/sign-up", h.signUp)
	router.Post("/sign-out", protect, h.signOut)
	router.Get("/session", protect, h.session)

	router.Use("/events", protect, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/events", websocket.New(h.streamEvents))
}

func (h *IdentityHandler) signIn(c *fiber.Ctx) error {
	var req dto.PasswordCredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.SignIn(requestContext(c), req)
	if err != nil {
		return h.fail(c, "sign_in", err)
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

func (h *IdentityHandler) signUp(c *fiber.Ctx) error {
	var req dto.PasswordCredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.SignUp(requestContext(c), req)
	if err != nil {
		return h.fail(c, "sign_up", err)
	}

	return c.Status(fiber.StatusCreated).JSON(response)
}

func (h *IdentityHandler) signOut(c *fiber.Ctx) error {
	claims, err := middleware.SessionClaims(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
	}

	if err := h.service.SignOut(requestContext(c), claims); err != nil {
		return h.fail(c, "sign_out", err)
	}

	return utils.SendSuccess(c, "signed out", nil)
}

func (h *IdentityHandler) session(c *fiber.Ctx) error {
	claims, err := middleware.SessionClaims(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
	}

	account, err := h.service.CurrentAccount(requestContext(c), claims)
	if err != nil {
		return h.fail(c, "session", err)
	}

	return utils.SendSuccess(c, "session active", account)
}

func (h *IdentityHandler) streamEvents(conn *websocket.Conn) {
	claims, ok := conn.Locals(middleware.LocalSessionClaims).(dto.SessionClaims)
	if !ok {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session missing"))
		_ = conn.Close()
		return
	}

	events, cancel := h.broker.Subscribe(claims.LocalID)
	defer cancel()

	logger := h.logger.With().Str("local_id", claims.LocalID).Str("session_id", claims.SessionID).Logger()
	logger.Info().Msg("session stream connected")
	defer logger.Info().Msg("session stream disconnected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(sessionStreamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.Debug().Err(err).Msg("session stream write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}

func (h *IdentityHandler) fail(c *fiber.Ctx, operation string, err error) error {
	switch {
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "INVALID_REQUEST", validationDetails(err))
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrEmailExists):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrSessionNotFound):
		return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Str("operation", operation).Msg("identity request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR")
	}
}
