package e2e

import (
	"errors"
	"net/http"
	"testing"

	"github.com/vidstash/api/pkg/response"
)

func TestEnqueue_Success(t *testing.T) {
	ta := setupApp(t, false, nil)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/queue/jobs", enqueueBody("v1"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)

	result := parseJSON(t, resp)
	if result["ok"] != true {
		t.Error("expected ok true")
	}
	if result["jobId"] == nil || result["jobId"] == "" {
		t.Error("expected 'jobId' in response")
	}
	if result["queueLength"] != float64(1) {
		t.Errorf("expected queueLength 1, got %v", result["queueLength"])
	}
}

func TestEnqueue_InvalidBody(t *testing.T) {
	ta := setupApp(t, false, nil)

	// Missing sourceUrl and rendition
	resp, err := doRequest(ta.app, http.MethodPost, "/api/queue/jobs", `{"resourceId": "v1"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
	if code := errorCode(t, resp); code != response.CodeValidationError {
		t.Errorf("expected %s, got %s", response.CodeValidationError, code)
	}
}

func TestEnqueue_DuplicateRejected(t *testing.T) {
	ta := setupApp(t, false, nil)

	resp, _ := doRequest(ta.app, http.MethodPost, "/api/queue/jobs", enqueueBody("v1"))
	assertStatus(t, resp, http.StatusAccepted)

	resp, _ = doRequest(ta.app, http.MethodPost, "/api/queue/jobs", enqueueBody("v1"))
	assertStatus(t, resp, http.StatusConflict)
	if code := errorCode(t, resp); code != response.CodeDuplicateJob {
		t.Errorf("expected %s, got %s", response.CodeDuplicateJob, code)
	}

	// A different resource is fine
	resp, _ = doRequest(ta.app, http.MethodPost, "/api/queue/jobs", enqueueBody("v2"))
	assertStatus(t, resp, http.StatusAccepted)
}

func TestQueueState(t *testing.T) {
	ta := setupApp(t, false, nil)

	resp, _ := doRequest(ta.app, http.MethodGet, "/api/queue", "")
	assertStatus(t, resp, http.StatusOK)
	result := parseJSON(t, resp)
	if jobs, ok := result["jobs"].([]interface{}); !ok || len(jobs) != 0 {
		t.Errorf("expected empty jobs array, got %v", result["jobs"])
	}
	if result["isProcessing"] != false {
		t.Error("expected isProcessing false")
	}

	doRequest(ta.app, http.MethodPost, "/api/queue/jobs", enqueueBody("v1"))

	resp, _ = doRequest(ta.app, http.MethodGet, "/api/queue", "")
	result = parseJSON(t, resp)
	jobs := result["jobs"].([]interface{})
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	job := jobs[0].(map[string]interface{})
	if job["resourceId"] != "v1" || job["status"] != "pending" {
		t.Errorf("unexpected job: %v", job)
	}
}

func TestRemoveJob(t *testing.T) {
	ta := setupApp(t, false, nil)

	resp, _ := doRequest(ta.app, http.MethodDelete, "/api/queue/jobs/missing", "")
	assertStatus(t, resp, http.StatusNotFound)

	resp, _ = doRequest(ta.app, http.MethodPost, "/api/queue/jobs", enqueueBody("v1"))
	jobID := parseJSON(t, resp)["jobId"].(string)

	resp, _ = doRequest(ta.app, http.MethodDelete, "/api/queue/jobs/"+jobID, "")
	assertStatus(t, resp, http.StatusOK)

	resp, _ = doRequest(ta.app, http.MethodGet, "/api/queue", "")
	if jobs := parseJSON(t, resp)["jobs"].([]interface{}); len(jobs) != 0 {
		t.Errorf("expected empty queue after remove, got %d jobs", len(jobs))
	}
}

func TestClearFinished(t *testing.T) {
	ta := setupApp(t, false, nil)

	doRequest(ta.app, http.MethodPost, "/api/queue/jobs", enqueueBody("v1"))

	resp, _ := doRequest(ta.app, http.MethodPost, "/api/queue/clear-finished", "")
	assertStatus(t, resp, http.StatusOK)
	result := parseJSON(t, resp)
	if result["cleared"] != float64(0) {
		t.Errorf("expected 0 cleared (pending jobs untouched), got %v", result["cleared"])
	}
	if result["queueLength"] != float64(1) {
		t.Errorf("expected queueLength 1, got %v", result["queueLength"])
	}
}

// End-to-end: enqueue → worker runs → fetch succeeds → job moves out
// of the queue and into history as completed.
func TestDownloadFlow_Success(t *testing.T) {
	ta := setupApp(t, true, nil)

	resp, _ := doRequest(ta.app, http.MethodPost, "/api/queue/jobs", enqueueBody("v1"))
	assertStatus(t, resp, http.StatusAccepted)

	waitUntil(t, "job to complete", func() bool {
		entries, _, _ := ta.history.Snapshot()
		return len(entries) == 1
	})

	resp, _ = doRequest(ta.app, http.MethodGet, "/api/queue", "")
	result := parseJSON(t, resp)
	if jobs := result["jobs"].([]interface{}); len(jobs) != 0 {
		t.Errorf("expected job moved out of queue, got %v", jobs)
	}

	resp, _ = doRequest(ta.app, http.MethodGet, "/api/history", "")
	result = parseJSON(t, resp)
	entries := result["entries"].([]interface{})
	if len(entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(entries))
	}
	entry := entries[0].(map[string]interface{})
	if entry["resourceId"] != "v1" || entry["status"] != "completed" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if result["totalCompleted"] != float64(1) {
		t.Errorf("expected totalCompleted 1, got %v", result["totalCompleted"])
	}
}

// End-to-end: a failing fetch lands in history as failed with the
// executor's message, and retry puts a fresh pending job in the queue.
func TestDownloadFlow_FailureAndRetry(t *testing.T) {
	ta := setupApp(t, true, map[string]error{"v2": errors.New("network down")})

	resp, _ := doRequest(ta.app, http.MethodPost, "/api/queue/jobs", enqueueBody("v2"))
	assertStatus(t, resp, http.StatusAccepted)

	waitUntil(t, "job to fail", func() bool {
		_, _, failed := ta.history.Snapshot()
		return failed == 1
	})

	resp, _ = doRequest(ta.app, http.MethodGet, "/api/history", "")
	result := parseJSON(t, resp)
	entry := result["entries"].([]interface{})[0].(map[string]interface{})
	if entry["status"] != "failed" {
		t.Errorf("expected failed, got %v", entry["status"])
	}
	if entry["error"] != "network down" {
		t.Errorf("expected verbatim error, got %v", entry["error"])
	}
	entryID := entry["id"].(string)

	// Make the next attempt succeed, then retry over the API
	ta.exec.mu.Lock()
	delete(ta.exec.errs, "v2")
	ta.exec.mu.Unlock()

	resp, _ = doRequest(ta.app, http.MethodPost, "/api/history/"+entryID+"/retry", "")
	assertStatus(t, resp, http.StatusOK)
	if parseJSON(t, resp)["ok"] != true {
		t.Error("expected ok true")
	}

	waitUntil(t, "retried job to complete", func() bool {
		_, completed, _ := ta.history.Snapshot()
		return completed == 1
	})

	resp, _ = doRequest(ta.app, http.MethodGet, "/api/history", "")
	result = parseJSON(t, resp)
	entry = result["entries"].([]interface{})[0].(map[string]interface{})
	if entry["status"] != "completed" || entry["retryCount"] != float64(1) {
		t.Errorf("expected completed retry with retryCount 1, got %v", entry)
	}
}
