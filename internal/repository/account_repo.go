package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/quizzy-go-api/internal/models"
)

// AccountRepository persists identity provider accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByEmail(ctx context.Context, email string) (models.Account, error)
	GetByID(ctx context.Context, id uint) (models.Account, error)
	TouchSignIn(ctx context.Context, id uint, at time.Time) error
}

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository constructs an account repository.
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		return models.Account{}, err
	}

	return account, nil
}

func (r *accountRepository) GetByID(ctx context.Context, id uint) (models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return models.Account{}, err
	}

	return account, nil
}

func (r *accountRepository) TouchSignIn(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Update("last_sign_in_at", at).Error
}
