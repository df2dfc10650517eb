package model

import (
	"encoding/json"
	"time"
)

// Job represents one queued retrieval request
type Job struct {
	ID         string          `json:"id"`
	ResourceID string          `json:"resourceId"`
	SourceURL  string          `json:"sourceUrl"`
	Rendition  json.RawMessage `json:"rendition"` // opaque, forwarded verbatim to the fetch executor
	Display    DisplayMeta     `json:"display"`
	Status     JobStatus       `json:"status"`
	Error      *string         `json:"error,omitempty"`
	RetryCount int             `json:"retryCount"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// DisplayMeta carries informational fields shown by UI surfaces.
// Never used for correctness decisions.
type DisplayMeta struct {
	Title     string `json:"title,omitempty"`
	Uploader  string `json:"uploader,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// HistoryEntry is the terminal record of a finished Job
type HistoryEntry struct {
	ID          string          `json:"id"`
	ResourceID  string          `json:"resourceId"`
	SourceURL   string          `json:"sourceUrl"`
	Rendition   json.RawMessage `json:"rendition"`
	Display     DisplayMeta     `json:"display"`
	Status      JobStatus       `json:"status"` // completed or failed
	Error       *string         `json:"error,omitempty"`
	RetryCount  int             `json:"retryCount"`
	CompletedAt time.Time       `json:"completedAt"`
}
