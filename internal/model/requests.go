package model

import (
	"encoding/json"
	"time"
)

// EnqueueRequest is the body of POST /api/queue/jobs, a Job without an id
type EnqueueRequest struct {
	ResourceID string          `json:"resourceId" validate:"required"`
	SourceURL  string          `json:"sourceUrl" validate:"required,url"`
	Rendition  json.RawMessage `json:"rendition" validate:"required"`
	Display    DisplayMeta     `json:"display"`
}

// EnqueueResponse acknowledges admission
type EnqueueResponse struct {
	OK          bool      `json:"ok"`
	JobID       string    `json:"jobId"`
	QueueLength int       `json:"queueLength"`
	CreatedAt   time.Time `json:"createdAt"`
}

// QueueStateResponse is the full queue snapshot
type QueueStateResponse struct {
	Jobs         []Job `json:"jobs"`
	IsProcessing bool  `json:"isProcessing"`
}

// ClearFinishedResponse reports the queue length after the sweep
type ClearFinishedResponse struct {
	OK          bool `json:"ok"`
	Cleared     int  `json:"cleared"`
	QueueLength int  `json:"queueLength"`
}

// HistoryResponse is the full ledger snapshot with terminal-status totals
type HistoryResponse struct {
	Entries        []HistoryEntry `json:"entries"`
	TotalCompleted int            `json:"totalCompleted"`
	TotalFailed    int            `json:"totalFailed"`
}

// RetryResponse acknowledges a single resubmission
type RetryResponse struct {
	OK          bool   `json:"ok"`
	JobID       string `json:"jobId"`
	QueueLength int    `json:"queueLength"`
}

// RetryAllResponse reports partial-failure-tolerant bulk retry results
type RetryAllResponse struct {
	Retried int `json:"retried"`
	Total   int `json:"total"`
}

// PrefetchRequest asks the cache to warm metadata for a resource
type PrefetchRequest struct {
	ResourceID string `json:"resourceId" validate:"required"`
	SourceURL  string `json:"sourceUrl" validate:"omitempty,url"`
}

// PrefetchResponse acknowledges the fire-and-forget prefetch
type PrefetchResponse struct {
	Acknowledged bool `json:"acknowledged"`
}
