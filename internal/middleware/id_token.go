package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/quizzy-go-api/internal/dto"
	"github.com/noah-isme/quizzy-go-api/internal/utils"
)

// Locals keys populated by IDTokenProtected.
const (
	LocalUserID        = "user_id"
	LocalSessionClaims = "session_claims"
)

// ErrMissingSession is returned by SessionClaims when no verified token is bound to the request.
var ErrMissingSession = errors.New("missing session context")

// TokenVerifier checks an ID token and resolves its session.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (dto.SessionClaims, error)
}

// IDTokenProtected validates the bearer ID token and binds its claims to the request.
func IDTokenProtected(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get(fiber.HeaderAuthorization)
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "Bearer "
		if len(authorization) < len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		token := strings.TrimSpace(authorization[len(bearer):])
		if token == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		ctx := c.UserContext()
		if ctx == nil {
			ctx = context.Background()
		}

		claims, err := verifier.VerifyToken(ctx, token)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}

		c.Locals(LocalUserID, claims.AccountID)
		c.Locals(LocalSessionClaims, claims)

		return c.Next()
	}
}

// SessionClaims returns the claims bound by IDTokenProtected.
func SessionClaims(c *fiber.Ctx) (dto.SessionClaims, error) {
	if value := c.Locals(LocalSessionClaims); value != nil {
		if claims, ok := value.(dto.SessionClaims); ok {
			return claims, nil
		}
	}
	return dto.SessionClaims{}, ErrMissingSession
}
