package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/vidstash/api/internal/cache"
	"github.com/vidstash/api/internal/client"
	"github.com/vidstash/api/internal/config"
	"github.com/vidstash/api/internal/handler"
	"github.com/vidstash/api/internal/service"
	"github.com/vidstash/api/internal/store"
	"github.com/vidstash/api/internal/worker"
)

// stubExecutor scripts per-resource outcomes so tests control what the
// "fetch service" reports.
type stubExecutor struct {
	mu    sync.Mutex
	errs  map[string]error
	calls []string
}

func (e *stubExecutor) Fetch(_ context.Context, req *client.FetchRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, req.ResourceID)
	if e.errs == nil {
		return nil
	}
	return e.errs[req.ResourceID]
}

func (e *stubExecutor) IsConfigured() bool { return true }

// testApp holds all components needed for testing
type testApp struct {
	app     *fiber.App
	queue   *service.QueueService
	history *service.HistoryService
	exec    *stubExecutor
}

// setupApp assembles the fiber app the way main.go does, on an
// in-memory store with a scripted executor. runWorker controls whether
// the execution loop is live: admission tests want jobs to stay
// pending, end-to-end tests want them processed.
func setupApp(t *testing.T, runWorker bool, execErrs map[string]error) *testApp {
	t.Helper()

	blobStore := store.NewMemoryStore()
	validate := validator.New()
	exec := &stubExecutor{errs: execErrs}

	metadataClient := client.NewMetadataClient(&config.MetadataConfig{}) // unconfigured → stub metadata
	metadataCache := cache.NewMetadataCache(cache.DefaultTTL)

	queueService := service.NewQueueService(blobStore, nil)
	historyService := service.NewHistoryService(blobStore, queueService, nil)
	settingsService := service.NewSettingsService(blobStore)

	ctx := context.Background()
	if err := queueService.Load(ctx); err != nil {
		t.Fatalf("queue load: %v", err)
	}
	if err := historyService.Load(ctx); err != nil {
		t.Fatalf("history load: %v", err)
	}

	if runWorker {
		workerCtx, cancel := context.WithCancel(ctx)
		t.Cleanup(cancel)
		w := worker.NewFetchWorker(queueService, historyService, exec, time.Millisecond)
		go w.Run(workerCtx)
	}

	queueHandler := handler.NewQueueHandler(queueService, validate)
	historyHandler := handler.NewHistoryHandler(historyService)
	metadataHandler := handler.NewMetadataHandler(metadataCache, metadataClient, cache.DefaultAwaitTimeout, validate)
	settingsHandler := handler.NewSettingsHandler(settingsService)

	app := fiber.New()

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": time.Now().Unix()})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"fetcher":  exec.IsConfigured(),
				"metadata": metadataClient.IsConfigured(),
				"redis":    false,
			},
			"queue": fiber.Map{
				"length":       queueService.Length(),
				"isProcessing": queueService.IsProcessing(),
			},
		})
	})

	api := app.Group("/api")

	queue := api.Group("/queue")
	queue.Get("/", queueHandler.State)
	queue.Post("/jobs", queueHandler.Enqueue)
	queue.Delete("/jobs/:id", queueHandler.Remove)
	queue.Post("/clear-finished", queueHandler.ClearFinished)

	metadata := api.Group("/metadata")
	metadata.Post("/prefetch", metadataHandler.Prefetch)
	metadata.Get("/:resourceId", metadataHandler.Get)
	metadata.Get("/:resourceId/await", metadataHandler.Await)

	history := api.Group("/history")
	history.Get("/", historyHandler.List)
	history.Post("/retry-all", historyHandler.RetryAll)
	history.Post("/:id/retry", historyHandler.Retry)
	history.Delete("/failed", historyHandler.ClearFailed)
	history.Delete("/:id", historyHandler.Remove)
	history.Delete("/", historyHandler.Clear)

	settings := api.Group("/settings")
	settings.Get("/", settingsHandler.Get)
	settings.Put("/", settingsHandler.Put)

	return &testApp{
		app:     app,
		queue:   queueService,
		history: historyService,
		exec:    exec,
	}
}

func doRequest(app *fiber.App, method, path, body string) (*http.Response, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return app.Test(req, 15000)
}

func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, string(body))
	}
}

func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	var result map[string]interface{}
	if len(body) > 0 && string(body) != "null" {
		if err := json.Unmarshal(body, &result); err != nil {
			t.Fatalf("failed to parse JSON %q: %v", string(body), err)
		}
	}
	return result
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return string(body)
}

// waitUntil polls a condition with a deadline
func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func enqueueBody(resourceID string) string {
	return `{
		"resourceId": "` + resourceID + `",
		"sourceUrl": "https://videos.example/watch?v=` + resourceID + `",
		"rendition": {"formatId": "136+140", "label": "720p"},
		"display": {"title": "Video ` + resourceID + `"}
	}`
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	result := parseJSON(t, resp)
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object, got %v", result)
	}
	code, _ := errObj["code"].(string)
	return code
}
