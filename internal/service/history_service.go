package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/vidstash/api/internal/model"
	"github.com/vidstash/api/internal/store"
)

const (
	historyStoreKey = "history"
	// historyCap bounds the ledger; the oldest entry is evicted first
	historyCap = 100
)

var (
	ErrEntryNotFound = errors.New("history entry not found")
	// ErrNotRetryable rejects retry of a completed entry
	ErrNotRetryable = errors.New("only failed entries can be retried")
)

// HistoryService is the append-at-head ledger of terminal job outcomes.
// Failed entries can be replayed back into the queue as brand-new jobs.
type HistoryService struct {
	mu      sync.Mutex
	entries []model.HistoryEntry
	store   store.Store

	notifier Notifier
	queue    *QueueService
}

func NewHistoryService(st store.Store, queue *QueueService, notifier Notifier) *HistoryService {
	return &HistoryService{
		store:    st,
		queue:    queue,
		notifier: notifier,
	}
}

// Load reads the persisted ledger at process start
func (s *HistoryService) Load(ctx context.Context) error {
	data, err := s.store.Get(ctx, historyStoreKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load history: %w", err)
	}

	var entries []model.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to decode history: %w", err)
	}

	s.mu.Lock()
	if len(entries) > historyCap {
		entries = entries[:historyCap]
	}
	s.entries = entries
	s.mu.Unlock()
	return nil
}

// Record prepends the terminal outcome of a finished job and truncates
// the ledger to the most recent entries.
func (s *HistoryService) Record(ctx context.Context, job model.Job) {
	entry := model.HistoryEntry{
		ID:          job.ID,
		ResourceID:  job.ResourceID,
		SourceURL:   job.SourceURL,
		Rendition:   job.Rendition,
		Display:     job.Display,
		Status:      job.Status,
		Error:       job.Error,
		RetryCount:  job.RetryCount,
		CompletedAt: time.Now(),
	}

	s.mu.Lock()
	s.entries = append([]model.HistoryEntry{entry}, s.entries...)
	if len(s.entries) > historyCap {
		s.entries = s.entries[:historyCap]
	}
	if err := s.persistLocked(ctx); err != nil {
		log.Printf("Failed to persist history after record: %v", err)
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notifyHistory(snapshot)
}

// Snapshot returns the entries plus terminal-status totals
func (s *HistoryService) Snapshot() (entries []model.HistoryEntry, totalCompleted, totalFailed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		switch e.Status {
		case model.JobStatusCompleted:
			totalCompleted++
		case model.JobStatusFailed:
			totalFailed++
		}
	}
	return s.snapshotLocked(), totalCompleted, totalFailed
}

// Remove deletes a single entry by id
func (s *HistoryService) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := -1
	for i, e := range s.entries {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		return ErrEntryNotFound
	}

	s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
	if err := s.persistLocked(ctx); err != nil {
		log.Printf("Failed to persist history after remove: %v", err)
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notifyHistory(snapshot)
	return nil
}

// Clear drops the whole ledger
func (s *HistoryService) Clear(ctx context.Context) int {
	s.mu.Lock()
	cleared := len(s.entries)
	s.entries = nil
	if err := s.persistLocked(ctx); err != nil {
		log.Printf("Failed to persist history after clear: %v", err)
	}
	s.mu.Unlock()

	s.notifyHistory(nil)
	return cleared
}

// ClearFailed drops only the failed entries
func (s *HistoryService) ClearFailed(ctx context.Context) int {
	s.mu.Lock()
	kept := s.entries[:0]
	cleared := 0
	for _, e := range s.entries {
		if e.Status == model.JobStatusFailed {
			cleared++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	if cleared > 0 {
		if err := s.persistLocked(ctx); err != nil {
			log.Printf("Failed to persist history after clear-failed: %v", err)
		}
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if cleared > 0 {
		s.notifyHistory(snapshot)
	}
	return cleared
}

// Retry replays a failed entry: a brand-new job (fresh id, retry count
// bumped) is admitted to the queue, and only then is the entry removed,
// so a duplicate-suppression rejection leaves the ledger unchanged.
func (s *HistoryService) Retry(ctx context.Context, id string) (jobID string, queueLength int, err error) {
	s.mu.Lock()
	var found *model.HistoryEntry
	for i := range s.entries {
		if s.entries[i].ID == id {
			found = &s.entries[i]
			break
		}
	}
	if found == nil {
		s.mu.Unlock()
		return "", 0, ErrEntryNotFound
	}
	if found.Status != model.JobStatusFailed {
		s.mu.Unlock()
		return "", 0, ErrNotRetryable
	}
	entry := *found
	s.mu.Unlock()

	job := &model.Job{
		ResourceID: entry.ResourceID,
		SourceURL:  entry.SourceURL,
		Rendition:  entry.Rendition,
		Display:    entry.Display,
		RetryCount: entry.RetryCount + 1,
	}
	queueLength, err = s.queue.Enqueue(ctx, job)
	if err != nil {
		return "", 0, err
	}

	if err := s.Remove(ctx, id); err != nil && !errors.Is(err, ErrEntryNotFound) {
		log.Printf("Failed to remove retried history entry %s: %v", id, err)
	}
	return job.ID, queueLength, nil
}

// RetryAll replays every failed entry, tolerating partial failure.
// Reports how many resubmissions succeeded out of how many failed
// entries were attempted.
func (s *HistoryService) RetryAll(ctx context.Context) (retried, total int) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Status == model.JobStatusFailed {
			ids = append(ids, e.ID)
		}
	}
	s.mu.Unlock()

	for _, id := range ids {
		if _, _, err := s.Retry(ctx, id); err == nil {
			retried++
		}
	}
	return retried, len(ids)
}

func (s *HistoryService) snapshotLocked() []model.HistoryEntry {
	out := make([]model.HistoryEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *HistoryService) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(s.entries)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, historyStoreKey, data)
}

func (s *HistoryService) notifyHistory(entries []model.HistoryEntry) {
	if s.notifier == nil {
		return
	}
	s.notifier.HistoryChanged(entries)
}
