package client

import (
	"context"

	"github.com/noah-isme/quizzy-go-api/internal/models"
)

// DashboardSource is the remote endpoint holding the dashboard document.
type DashboardSource interface {
	FetchDashboard(ctx context.Context) (models.DashboardSnapshot, error)
}

// DashboardRepository hands the dashboard snapshot to the view layer.
type DashboardRepository struct {
	source DashboardSource
}

// NewDashboardRepository wraps source.
func NewDashboardRepository(source DashboardSource) *DashboardRepository {
	return &DashboardRepository{source: source}
}

// GetDashboard fetches a fresh snapshot. Errors from the source are returned unchanged.
func (r *DashboardRepository) GetDashboard(ctx context.Context) (models.DashboardSnapshot, error) {
	return r.source.FetchDashboard(ctx)
}
