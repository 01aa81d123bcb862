package dto

import "time"

// DocumentMetadata describes a stored document without its payload.
type DocumentMetadata struct {
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int       `json:"size"`
	Updated     time.Time `json:"updated"`
}
