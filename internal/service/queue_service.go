package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vidstash/api/internal/model"
	"github.com/vidstash/api/internal/store"
)

const queueStoreKey = "queue"

var (
	// ErrDuplicateJob rejects admission while the same resource is
	// already pending or active
	ErrDuplicateJob = errors.New("resource already queued")
	// ErrJobActive refuses removal of an in-flight job
	ErrJobActive   = errors.New("job is active")
	ErrJobNotFound = errors.New("job not found")
)

// Notifier receives best-effort full-state change events. Delivery to
// zero subscribers is the normal case, never an error.
type Notifier interface {
	QueueChanged(jobs []model.Job, isProcessing bool)
	HistoryChanged(entries []model.HistoryEntry)
}

// QueueService owns the ordered job list: FIFO admission with duplicate
// suppression, removal, persistence after every mutation, and the
// claim/finish transitions driven by the fetch worker. All state lives
// on this struct; a fresh instance per test is cheap.
type QueueService struct {
	mu    sync.Mutex
	jobs  []*model.Job
	store store.Store

	notifier   Notifier
	processing atomic.Bool
	wake       chan struct{}
}

func NewQueueService(st store.Store, notifier Notifier) *QueueService {
	return &QueueService{
		store:    st,
		notifier: notifier,
		wake:     make(chan struct{}, 1),
	}
}

// Load reads the persisted queue and resets every Active job back to
// Pending: an active job cannot have survived a restart, its executor
// call was abandoned. Must complete before Enqueue is served and
// before the worker starts.
func (s *QueueService) Load(ctx context.Context) error {
	data, err := s.store.Get(ctx, queueStoreKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load queue: %w", err)
	}

	var jobs []*model.Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return fmt.Errorf("failed to decode queue: %w", err)
	}

	recovered := 0
	for _, j := range jobs {
		if j.Status == model.JobStatusActive {
			j.Status = model.JobStatusPending
			recovered++
		}
	}

	s.mu.Lock()
	s.jobs = jobs
	if recovered > 0 {
		s.persistLocked(ctx)
	}
	s.mu.Unlock()

	if recovered > 0 {
		log.Printf("Queue recovery: reset %d active job(s) to pending", recovered)
	}
	return nil
}

// Enqueue admits a job at the tail of the queue. Rejected without any
// state change when another job for the same resource is pending or
// active. The job's ID and CreatedAt are filled in when empty.
func (s *QueueService) Enqueue(ctx context.Context, job *model.Job) (int, error) {
	s.mu.Lock()
	for _, j := range s.jobs {
		if j.ResourceID == job.ResourceID && !j.Status.Terminal() {
			s.mu.Unlock()
			return 0, ErrDuplicateJob
		}
	}

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	job.Status = model.JobStatusPending
	job.Error = nil

	s.jobs = append(s.jobs, job)
	if err := s.persistLocked(ctx); err != nil {
		s.jobs = s.jobs[:len(s.jobs)-1]
		s.mu.Unlock()
		return 0, err
	}
	length := len(s.jobs)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notifyQueue(snapshot)
	s.kick()
	return length, nil
}

// Remove deletes a job by id. Active jobs cannot be removed: there is
// no cancellation of in-flight work.
func (s *QueueService) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := -1
	for i, j := range s.jobs {
		if j.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		return ErrJobNotFound
	}
	if s.jobs[idx].Status == model.JobStatusActive {
		s.mu.Unlock()
		return ErrJobActive
	}

	s.jobs = append(s.jobs[:idx], s.jobs[idx+1:]...)
	if err := s.persistLocked(ctx); err != nil {
		log.Printf("Failed to persist queue after remove: %v", err)
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notifyQueue(snapshot)
	return nil
}

// ClearFinished sweeps every terminal job out of the list in one batch.
// Pending and active jobs are untouched.
func (s *QueueService) ClearFinished(ctx context.Context) (cleared, length int) {
	s.mu.Lock()
	kept := s.jobs[:0]
	for _, j := range s.jobs {
		if j.Status.Terminal() {
			cleared++
			continue
		}
		kept = append(kept, j)
	}
	s.jobs = kept
	if cleared > 0 {
		if err := s.persistLocked(ctx); err != nil {
			log.Printf("Failed to persist queue after clear: %v", err)
		}
	}
	length = len(s.jobs)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if cleared > 0 {
		s.notifyQueue(snapshot)
	}
	return cleared, length
}

// Snapshot returns value copies of every job plus the processing flag
func (s *QueueService) Snapshot() ([]model.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), s.processing.Load()
}

// ClaimNext marks the first pending job active and hands a copy to the
// worker. The processing flag doubles as the re-entrancy guard: it is
// set here and cleared only by Finish.
func (s *QueueService) ClaimNext(ctx context.Context) (model.Job, bool) {
	s.mu.Lock()
	var claimed *model.Job
	for _, j := range s.jobs {
		if j.Status == model.JobStatusPending {
			claimed = j
			break
		}
	}
	if claimed == nil {
		s.mu.Unlock()
		return model.Job{}, false
	}

	claimed.Status = model.JobStatusActive
	s.processing.Store(true)
	if err := s.persistLocked(ctx); err != nil {
		log.Printf("Failed to persist queue after claim: %v", err)
	}
	jobCopy := *claimed
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notifyQueue(snapshot)
	return jobCopy, true
}

// Finish records the terminal outcome of the active job and removes it
// from the list; queue and history never both hold the same attempt
// as current. Clears the re-entrancy guard.
func (s *QueueService) Finish(ctx context.Context, id string, jobErr error) (model.Job, error) {
	s.mu.Lock()
	idx := -1
	for i, j := range s.jobs {
		if j.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.processing.Store(false)
		s.mu.Unlock()
		return model.Job{}, ErrJobNotFound
	}

	job := s.jobs[idx]
	if jobErr != nil {
		msg := jobErr.Error()
		job.Status = model.JobStatusFailed
		job.Error = &msg
	} else {
		job.Status = model.JobStatusCompleted
		job.Error = nil
	}

	s.jobs = append(s.jobs[:idx], s.jobs[idx+1:]...)
	if err := s.persistLocked(ctx); err != nil {
		log.Printf("Failed to persist queue after finish: %v", err)
	}
	s.processing.Store(false)
	terminal := *job
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notifyQueue(snapshot)
	return terminal, nil
}

// HasPending reports whether any job is still waiting for execution
func (s *QueueService) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.Status == model.JobStatusPending {
			return true
		}
	}
	return false
}

// Length returns the current number of jobs in the list
func (s *QueueService) Length() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// IsProcessing reports whether an execution pass is in flight
func (s *QueueService) IsProcessing() bool {
	return s.processing.Load()
}

// Wake is the worker's trigger channel. Buffered at one: a trigger
// while a pass is running is simply dropped, the running pass
// re-checks for pending work itself.
func (s *QueueService) Wake() <-chan struct{} {
	return s.wake
}

func (s *QueueService) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *QueueService) snapshotLocked() []model.Job {
	out := make([]model.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	return out
}

func (s *QueueService) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(s.jobs)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, queueStoreKey, data)
}

func (s *QueueService) notifyQueue(jobs []model.Job) {
	if s.notifier == nil {
		return
	}
	s.notifier.QueueChanged(jobs, s.processing.Load())
}
