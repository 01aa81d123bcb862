package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/quizzy-go-api/internal/models"
)

// DashboardDocumentRepository stores the JSON documents served by the files endpoint.
type DashboardDocumentRepository interface {
	GetByName(ctx context.Context, name string) (models.DashboardDocument, error)
	Upsert(ctx context.Context, document *models.DashboardDocument) error
}

type dashboardDocumentRepository struct {
	db *gorm.DB
}

// NewDashboardDocumentRepository constructs a document repository.
func NewDashboardDocumentRepository(db *gorm.DB) DashboardDocumentRepository {
	return &dashboardDocumentRepository{db: db}
}

func (r *dashboardDocumentRepository) GetByName(ctx context.Context, name string) (models.DashboardDocument, error) {
	var document models.DashboardDocument
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&document).Error; err != nil {
		return models.DashboardDocument{}, err
	}

	return document, nil
}

func (r *dashboardDocumentRepository) Upsert(ctx context.Context, document *models.DashboardDocument) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "content_type", "payload", "updated_at"}),
	}).Create(document).Error
}
