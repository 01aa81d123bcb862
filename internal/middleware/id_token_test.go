package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/quizzy-go-api/internal/dto"
	"github.com/noah-isme/quizzy-go-api/internal/middleware"
)

type stubVerifier struct {
	claims dto.SessionClaims
	err    error
	tokens []string
}

func (s *stubVerifier) VerifyToken(_ context.Context, token string) (dto.SessionClaims, error) {
	s.tokens = append(s.tokens, token)
	return s.claims, s.err
}

func newProtectedApp(verifier middleware.TokenVerifier) *fiber.App {
	app := fiber.New()
	app.Get("/", middleware.IDTokenProtected(verifier), func(c *fiber.Ctx) error {
		claims, err := middleware.SessionClaims(c)
		if err != nil {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString(claims.SessionID)
	})
	return app
}

func TestIDTokenProtectedBindsClaims(t *testing.T) {
	verifier := &stubVerifier{claims: dto.SessionClaims{AccountID: 4, LocalID: "4", SessionID: "sess-1"}}
	app := newProtectedApp(verifier)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer token-abc")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"token-abc"}, verifier.tokens)
}

func TestIDTokenProtectedRejects(t *testing.T) {
	cases := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic abc",
		"empty token":    "Bearer   ",
		"short header":   "Bear",
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			verifier := &stubVerifier{}
			app := newProtectedApp(verifier)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			resp.Body.Close()

			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
			require.Empty(t, verifier.tokens)
		})
	}
}

func TestIDTokenProtectedRejectsRevokedSession(t *testing.T) {
	app := newProtectedApp(&stubVerifier{err: errors.New("SESSION_NOT_FOUND")})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCorrelationIDPropagation(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		fromCtx := middleware.CorrelationIDFromContext(c.UserContext())
		return c.SendString(middleware.GetCorrelationID(c) + "|" + fromCtx)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "req-42", resp.Header.Get(middleware.HeaderCorrelationID))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.NotEmpty(t, resp.Header.Get(middleware.HeaderCorrelationID))
}
