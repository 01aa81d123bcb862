package dto

import (
	"time"

	"github.com/noah-isme/quizzy-go-api/internal/models"
)

// PasswordCredentialsRequest is the payload for sign-in and sign-up.
type PasswordCredentialsRequest struct {
	Email    string `json:"email" validate:"required,email,max=320"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

// AuthResponse is returned after a successful sign-in or sign-up.
type AuthResponse struct {
	IDToken   string `json:"idToken"`
	LocalID   string `json:"localId"`
	Email     string `json:"email"`
	SessionID string `json:"sessionId"`
	ExpiresIn int64  `json:"expiresIn"`
}

// AccountResponse describes the signed-in account.
type AccountResponse struct {
	LocalID      string     `json:"localId"`
	Email        string     `json:"email"`
	SessionID    string     `json:"sessionId,omitempty"`
	LastSignInAt *time.Time `json:"lastSignInAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// NewAccountResponse maps an account row to its response payload.
func NewAccountResponse(account models.Account, sessionID string) AccountResponse {
	return AccountResponse{
		LocalID:      LocalID(account.ID),
		Email:        account.Email,
		SessionID:    sessionID,
		LastSignInAt: account.LastSignInAt,
		CreatedAt:    account.CreatedAt,
	}
}

// SessionClaims are the verified contents of an ID token.
type SessionClaims struct {
	AccountID uint
	LocalID   string
	Email     string
	SessionID string
	ExpiresAt time.Time
}
