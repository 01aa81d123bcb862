package client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/quizzy-go-api/internal/config"
	"github.com/noah-isme/quizzy-go-api/internal/utils"
	"github.com/noah-isme/quizzy-go-api/pkg/identity"
)

const emailDomainSuffix = ".school.com"

// IdentityProvider is the identity backend consumed by the auth repository.
type IdentityProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (identity.User, error)
	CreateUserWithPassword(ctx context.Context, email, password string) (identity.User, error)
	SignOut(ctx context.Context) error
	CurrentUser() (identity.User, bool)
	AddSessionListener(fn func(*identity.User)) func()
}

// Credentials is the email/password pair derived from a school and student id.
type Credentials struct {
	Email    string
	Password string
}

// SynthesizeCredentials builds "<studentId>@<schoolId>.school.com" with the shared passphrase.
func SynthesizeCredentials(schoolID, studentID, passphrase string) Credentials {
	return Credentials{
		Email:    fmt.Sprintf("%s@%s%s", strings.TrimSpace(studentID), strings.TrimSpace(schoolID), emailDomainSuffix),
		Password: passphrase,
	}
}

// AuthRepository signs students in with synthesized credentials.
//
// Every school/student pair maps to one account sharing a single passphrase, and an
// unknown pair is registered on first use. This is only suitable for demos.
type AuthRepository struct {
	provider   IdentityProvider
	passphrase string
	logger     zerolog.Logger
}

// NewAuthRepository wraps provider. An empty passphrase falls back to the default.
func NewAuthRepository(provider IdentityProvider, passphrase string, logger zerolog.Logger) *AuthRepository {
	if passphrase == "" {
		passphrase = config.DefaultDemoPassphrase
	}

	repo := &AuthRepository{
		provider:   provider,
		passphrase: passphrase,
		logger:     logger.With().Str("component", "auth_repository").Logger(),
	}
	repo.logger.Warn().Msg("demo credential scheme in use: any school/student id pair becomes a permanent account")
	return repo
}

// SignIn signs in the pair, creating the account when sign-in is refused.
func (r *AuthRepository) SignIn(ctx context.Context, schoolID, studentID string) (identity.User, error) {
	creds := SynthesizeCredentials(schoolID, studentID, r.passphrase)

	user, err := r.provider.SignInWithPassword(ctx, creds.Email, creds.Password)
	if err == nil {
		return user, nil
	}
	if ctx.Err() != nil {
		return identity.User{}, err
	}

	r.logger.Debug().Err(err).Str("email", utils.MaskEmail(creds.Email)).Msg("sign-in refused, creating account")

	user, err = r.provider.CreateUserWithPassword(ctx, creds.Email, creds.Password)
	if err != nil {
		return identity.User{}, err
	}
	return user, nil
}

// SignOut ends the current session.
func (r *AuthRepository) SignOut(ctx context.Context) error {
	return r.provider.SignOut(ctx)
}

// IsAuthenticated reports whether the provider has a signed-in user.
func (r *AuthRepository) IsAuthenticated() bool {
	_, ok := r.provider.CurrentUser()
	return ok
}

// CurrentUser returns the signed-in user, if any.
func (r *AuthRepository) CurrentUser() (identity.User, bool) {
	return r.provider.CurrentUser()
}

// SessionChanges mirrors provider session notifications as authenticated flags. The
// listener is removed and the channel closed once ctx ends. Only the latest flag is
// buffered.
func (r *AuthRepository) SessionChanges(ctx context.Context) <-chan bool {
	out := make(chan bool, 1)

	var (
		mu     sync.Mutex
		closed bool
	)
	remove := r.provider.AddSessionListener(func(user *identity.User) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		offer(out, user != nil)
	})

	go func() {
		<-ctx.Done()
		remove()

		mu.Lock()
		closed = true
		close(out)
		mu.Unlock()
	}()

	return out
}
