package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/vidstash/api/internal/client"
	"github.com/vidstash/api/internal/model"
	"github.com/vidstash/api/internal/service"
)

// FetchWorker drives the serialized execution loop: one job at a time,
// strictly FIFO, on a single dedicated goroutine. Triggers arriving
// while a pass runs are dropped; the running pass re-checks for
// pending work itself before going back to sleep.
type FetchWorker struct {
	queue    *service.QueueService
	history  *service.HistoryService
	executor client.FetchExecutor

	// pause between passes while a backlog remains, yields control
	// instead of hammering the executor back to back
	passDelay time.Duration
}

// NewFetchWorker creates the execution loop worker
func NewFetchWorker(queue *service.QueueService, history *service.HistoryService, executor client.FetchExecutor, passDelay time.Duration) *FetchWorker {
	if passDelay <= 0 {
		passDelay = 500 * time.Millisecond
	}
	return &FetchWorker{
		queue:     queue,
		history:   history,
		executor:  executor,
		passDelay: passDelay,
	}
}

// Run blocks until ctx is canceled. Start it on its own goroutine
// after the queue has been loaded and recovered.
func (w *FetchWorker) Run(ctx context.Context) {
	// jobs recovered at startup need no enqueue trigger
	w.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.queue.Wake():
			// a wake and a cancel can arrive together; cancel wins
			if ctx.Err() != nil {
				return
			}
			w.drain(ctx)
		}
	}
}

// drain executes passes until no pending job remains or ctx ends
func (w *FetchWorker) drain(ctx context.Context) {
	for {
		job, ok := w.queue.ClaimNext(ctx)
		if !ok {
			return
		}

		log.Printf("Fetching resource %s (job %s)", job.ResourceID, job.ID)
		err := w.execute(ctx, &job)
		if err != nil {
			log.Printf("Fetch failed for resource %s: %v", job.ResourceID, err)
		}

		terminal, finErr := w.queue.Finish(ctx, job.ID, err)
		if finErr != nil {
			log.Printf("Failed to finish job %s: %v", job.ID, finErr)
			return
		}
		w.history.Record(ctx, terminal)

		if !w.queue.HasPending() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.passDelay):
		}
	}
}

// execute calls the fetch executor and converts any panic into a
// failed outcome. Nothing may escape a pass: the loop has to survive
// to run the next job.
func (w *FetchWorker) execute(ctx context.Context, job *model.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch executor panic: %v", r)
		}
	}()

	return w.executor.Fetch(ctx, &client.FetchRequest{
		ResourceID: job.ResourceID,
		URL:        job.SourceURL,
		Rendition:  job.Rendition,
		Title:      job.Display.Title,
	})
}
