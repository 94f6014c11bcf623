package domain

import (
	"time"
)

// Record is a schemaless document in an mbaas data collection
type Record struct {
	GUID       string         `json:"guid" db:"guid"`
	Collection string         `json:"type" db:"collection"`
	Fields     map[string]any `json:"fields" db:"fields"`
	CreatedAt  time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time      `json:"updatedAt" db:"updated_at"`
}

// Blob describes an object held by the file store
type Blob struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}
