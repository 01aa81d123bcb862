package models

import (
	"time"

	"gorm.io/datatypes"
)

// DashboardDocument stores a JSON document served by the files endpoint.
type DashboardDocument struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"size:255;uniqueIndex;not null" json:"name"`
	AccessToken string         `gorm:"size:255;not null" json:"-"`
	ContentType string         `gorm:"size:100;not null" json:"content_type"`
	Payload     datatypes.JSON `json:"payload"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
