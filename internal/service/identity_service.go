package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/noah-isme/quizzy-go-api/internal/dto"
	"github.com/noah-isme/quizzy-go-api/internal/models"
	"github.com/noah-isme/quizzy-go-api/internal/observability"
	"github.com/noah-isme/quizzy-go-api/internal/repository"
	"github.com/noah-isme/quizzy-go-api/internal/utils"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("INVALID_LOGIN_CREDENTIALS")
	// ErrEmailExists is returned when signing up with an email that already has an account.
	ErrEmailExists = errors.New("EMAIL_EXISTS")
	// ErrInvalidToken is returned when an ID token cannot be verified.
	ErrInvalidToken = errors.New("INVALID_ID_TOKEN")
	// ErrSessionNotFound is returned when the token's session was revoked or expired.
	ErrSessionNotFound = errors.New("SESSION_NOT_FOUND")
)

const sessionKeyPrefix = "identity:session:"

// IdentityOptions configures token issuance.
type IdentityOptions struct {
	Secret     string
	SessionTTL time.Duration
	BcryptCost int
}

// IdentityService is the email/password identity provider.
type IdentityService interface {
	SignIn(ctx context.Context, req dto.PasswordCredentialsRequest) (dto.AuthResponse, error)
	SignUp(ctx context.Context, req dto.PasswordCredentialsRequest) (dto.AuthResponse, error)
	SignOut(ctx context.Context, claims dto.SessionClaims) error
	VerifyToken(ctx context.Context, token string) (dto.SessionClaims, error)
	CurrentAccount(ctx context.Context, claims dto.SessionClaims) (dto.AccountResponse, error)
}

type identityService struct {
	accounts  repository.AccountRepository
	sessions  *redis.Client
	broker    SessionBroker
	validator *validator.Validate
	opts      IdentityOptions
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

type idTokenClaims struct {
	Email     string `json:"email"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewIdentityService constructs the identity provider.
func NewIdentityService(accounts repository.AccountRepository, sessions *redis.Client, broker SessionBroker, validate *validator.Validate, opts IdentityOptions, logger zerolog.Logger) IdentityService {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}

	return &identityService{
		accounts:  accounts,
		sessions:  sessions,
		broker:    broker,
		validator: validate,
		opts:      opts,
		logger:    logger.With().Str("component", "identity_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/quizzy-go-api/internal/service/identity"),
		now:       time.Now,
	}
}

func (s *identityService) SignIn(ctx context.Context, req dto.PasswordCredentialsRequest) (dto.AuthResponse, error) {
	ctx, span := s.tracer.Start(ctx, "identity.sign_in")
	defer span.End()

	response, err := s.signIn(ctx, req)
	s.record(span, "sign_in", err)
	return response, err
}

func (s *identityService) signIn(ctx context.Context, req dto.PasswordCredentialsRequest) (dto.AuthResponse, error) {
	req = normalizeCredentials(req)
	if err := s.validator.Struct(req); err != nil {
		return dto.AuthResponse{}, err
	}

	account, err := s.accounts.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AuthResponse{}, ErrInvalidCredentials
		}
		return dto.AuthResponse{}, fmt.Errorf("load account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return dto.AuthResponse{}, ErrInvalidCredentials
	}

	return s.openSession(ctx, account)
}

func (s *identityService) SignUp(ctx context.Context, req dto.PasswordCredentialsRequest) (dto.AuthResponse, error) {
	ctx, span := s.tracer.Start(ctx, "identity.sign_up")
	defer span.End()

	response, err := s.signUp(ctx, req)
	s.record(span, "sign_up", err)
	return response, err
}

func (s *identityService) signUp(ctx context.Context, req dto.PasswordCredentialsRequest) (dto.AuthResponse, error) {
	req = normalizeCredentials(req)
	if err := s.validator.Struct(req); err != nil {
		return dto.AuthResponse{}, err
	}

	if _, err := s.accounts.GetByEmail(ctx, req.Email); err == nil {
		return dto.AuthResponse{}, ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.AuthResponse{}, fmt.Errorf("load account: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.opts.BcryptCost)
	if err != nil {
		return dto.AuthResponse{}, fmt.Errorf("hash password: %w", err)
	}

	account := models.Account{Email: req.Email, PasswordHash: string(hash)}
	if err := s.accounts.Create(ctx, &account); err != nil {
		if s.lostSignUpRace(ctx, req.Email, err) {
			return dto.AuthResponse{}, ErrEmailExists
		}
		return dto.AuthResponse{}, fmt.Errorf("create account: %w", err)
	}

	s.logger.Info().Uint("account_id", account.ID).Str("email", utils.MaskEmail(account.Email)).Msg("account created")

	return s.openSession(ctx, account)
}

// lostSignUpRace reports whether a failed insert collided with an account
// created concurrently for the same email.
func (s *identityService) lostSignUpRace(ctx context.Context, email string, createErr error) bool {
	if errors.Is(createErr, gorm.ErrDuplicatedKey) {
		return true
	}
	_, err := s.accounts.GetByEmail(ctx, email)
	return err == nil
}

func (s *identityService) SignOut(ctx context.Context, claims dto.SessionClaims) error {
	deleted, err := s.sessions.Del(ctx, sessionKey(claims.SessionID)).Result()
	if err != nil {
		observability.IdentityAttempts().WithLabelValues("sign_out", "error").Inc()
		return fmt.Errorf("revoke session: %w", err)
	}
	if deleted == 0 {
		observability.IdentityAttempts().WithLabelValues("sign_out", "rejected").Inc()
		return ErrSessionNotFound
	}

	observability.IdentityAttempts().WithLabelValues("sign_out", "success").Inc()
	s.broker.Publish(ctx, dto.SessionEvent{
		Type:       dto.SessionEventSignedOut,
		LocalID:    claims.LocalID,
		SessionID:  claims.SessionID,
		OccurredAt: s.now().UTC(),
	})
	s.logger.Info().Str("local_id", claims.LocalID).Str("session_id", claims.SessionID).Msg("session revoked")

	return nil
}

func (s *identityService) VerifyToken(ctx context.Context, token string) (dto.SessionClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &idTokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.opts.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return dto.SessionClaims{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*idTokenClaims)
	if !ok || claims.SessionID == "" {
		return dto.SessionClaims{}, ErrInvalidToken
	}

	accountID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return dto.SessionClaims{}, ErrInvalidToken
	}

	owner, err := s.sessions.Get(ctx, sessionKey(claims.SessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return dto.SessionClaims{}, ErrSessionNotFound
		}
		return dto.SessionClaims{}, fmt.Errorf("load session: %w", err)
	}
	if owner != claims.Subject {
		return dto.SessionClaims{}, ErrInvalidToken
	}

	result := dto.SessionClaims{
		AccountID: uint(accountID),
		LocalID:   claims.Subject,
		Email:     claims.Email,
		SessionID: claims.SessionID,
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}

	return result, nil
}

func (s *identityService) CurrentAccount(ctx context.Context, claims dto.SessionClaims) (dto.AccountResponse, error) {
	account, err := s.accounts.GetByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AccountResponse{}, ErrInvalidToken
		}
		return dto.AccountResponse{}, fmt.Errorf("load account: %w", err)
	}

	return dto.NewAccountResponse(account, claims.SessionID), nil
}

func (s *identityService) openSession(ctx context.Context, account models.Account) (dto.AuthResponse, error) {
	now := s.now().UTC()
	sessionID := uuid.NewString()
	localID := dto.LocalID(account.ID)

	if err := s.sessions.Set(ctx, sessionKey(sessionID), localID, s.opts.SessionTTL).Err(); err != nil {
		return dto.AuthResponse{}, fmt.Errorf("store session: %w", err)
	}

	claims := idTokenClaims{
		Email:     account.Email,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   localID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.opts.SessionTTL)),
			ID:        uuid.NewString(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.opts.Secret))
	if err != nil {
		return dto.AuthResponse{}, fmt.Errorf("sign id token: %w", err)
	}

	if err := s.accounts.TouchSignIn(ctx, account.ID, now); err != nil {
		s.logger.Warn().Err(err).Uint("account_id", account.ID).Msg("failed to record sign-in time")
	}

	s.broker.Publish(ctx, dto.SessionEvent{
		Type:       dto.SessionEventSignedIn,
		LocalID:    localID,
		SessionID:  sessionID,
		OccurredAt: now,
	})

	return dto.AuthResponse{
		IDToken:   token,
		LocalID:   localID,
		Email:     account.Email,
		SessionID: sessionID,
		ExpiresIn: int64(s.opts.SessionTTL / time.Second),
	}, nil
}

func (s *identityService) record(span trace.Span, operation string, err error) {
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrEmailExists), isValidationError(err):
		outcome = "rejected"
	default:
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error().Err(err).Str("operation", operation).Msg("identity operation failed")
	}

	span.SetAttributes(attribute.String("identity.outcome", outcome))
	observability.IdentityAttempts().WithLabelValues(operation, outcome).Inc()
}

func normalizeCredentials(req dto.PasswordCredentialsRequest) dto.PasswordCredentialsRequest {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	return req
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}
