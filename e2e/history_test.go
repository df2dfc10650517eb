package e2e

import (
	"errors"
	"net/http"
	"testing"

	"github.com/vidstash/api/pkg/response"
)

// seedHistory runs jobs through the live worker until the ledger holds
// the expected number of terminal outcomes.
func seedHistory(t *testing.T, ta *testApp, resources ...string) {
	t.Helper()
	for _, id := range resources {
		resp, _ := doRequest(ta.app, http.MethodPost, "/api/queue/jobs", enqueueBody(id))
		assertStatus(t, resp, http.StatusAccepted)
	}
	waitUntil(t, "seeded jobs to finish", func() bool {
		entries, _, _ := ta.history.Snapshot()
		return len(entries) == len(resources)
	})
}

func TestHistory_Empty(t *testing.T) {
	ta := setupApp(t, false, nil)

	resp, _ := doRequest(ta.app, http.MethodGet, "/api/history", "")
	assertStatus(t, resp, http.StatusOK)
	result := parseJSON(t, resp)
	if entries, ok := result["entries"].([]interface{}); !ok || len(entries) != 0 {
		t.Errorf("expected empty entries, got %v", result["entries"])
	}
	if result["totalCompleted"] != float64(0) || result["totalFailed"] != float64(0) {
		t.Errorf("expected zero totals, got %v", result)
	}
}

func TestHistory_TotalsAndOrder(t *testing.T) {
	ta := setupApp(t, true, map[string]error{"bad": errors.New("boom")})

	seedHistory(t, ta, "ok1", "bad", "ok2")

	resp, _ := doRequest(ta.app, http.MethodGet, "/api/history", "")
	result := parseJSON(t, resp)
	if result["totalCompleted"] != float64(2) || result["totalFailed"] != float64(1) {
		t.Errorf("expected totals 2/1, got %v/%v", result["totalCompleted"], result["totalFailed"])
	}
	entries := result["entries"].([]interface{})
	newest := entries[0].(map[string]interface{})
	if newest["resourceId"] != "ok2" {
		t.Errorf("expected newest entry first, got %v", newest["resourceId"])
	}
}

func TestHistory_RetryRejectsCompleted(t *testing.T) {
	ta := setupApp(t, true, nil)
	seedHistory(t, ta, "v1")

	entries, _, _ := ta.history.Snapshot()
	resp, _ := doRequest(ta.app, http.MethodPost, "/api/history/"+entries[0].ID+"/retry", "")
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestHistory_RetryUnknown(t *testing.T) {
	ta := setupApp(t, false, nil)

	resp, _ := doRequest(ta.app, http.MethodPost, "/api/history/missing/retry", "")
	assertStatus(t, resp, http.StatusNotFound)
	if code := errorCode(t, resp); code != response.CodeNotFound {
		t.Errorf("expected %s, got %s", response.CodeNotFound, code)
	}
}

func TestHistory_RetryAll(t *testing.T) {
	ta := setupApp(t, true, map[string]error{
		"bad1": errors.New("boom"),
		"bad2": errors.New("boom"),
	})
	seedHistory(t, ta, "bad1", "bad2", "good")

	// Let the retries succeed this time
	ta.exec.mu.Lock()
	ta.exec.errs = nil
	ta.exec.mu.Unlock()

	resp, _ := doRequest(ta.app, http.MethodPost, "/api/history/retry-all", "")
	assertStatus(t, resp, http.StatusOK)
	result := parseJSON(t, resp)
	if result["retried"] != float64(2) || result["total"] != float64(2) {
		t.Errorf("expected 2/2, got %v/%v", result["retried"], result["total"])
	}

	waitUntil(t, "retried jobs to complete", func() bool {
		_, completed, failed := ta.history.Snapshot()
		return completed == 3 && failed == 0
	})
}

func TestHistory_RemoveAndClear(t *testing.T) {
	ta := setupApp(t, true, map[string]error{"bad": errors.New("boom")})
	seedHistory(t, ta, "v1", "bad", "v2")

	resp, _ := doRequest(ta.app, http.MethodDelete, "/api/history/missing", "")
	assertStatus(t, resp, http.StatusNotFound)

	// Drop only the failed entry
	resp, _ = doRequest(ta.app, http.MethodDelete, "/api/history/failed", "")
	assertStatus(t, resp, http.StatusOK)
	if result := parseJSON(t, resp); result["cleared"] != float64(1) {
		t.Errorf("expected 1 cleared, got %v", result["cleared"])
	}

	entries, _, failed := ta.history.Snapshot()
	if len(entries) != 2 || failed != 0 {
		t.Errorf("expected 2 completed entries left, got %d (%d failed)", len(entries), failed)
	}

	// Remove one entry by id
	resp, _ = doRequest(ta.app, http.MethodDelete, "/api/history/"+entries[0].ID, "")
	assertStatus(t, resp, http.StatusOK)

	// Clear the rest
	resp, _ = doRequest(ta.app, http.MethodDelete, "/api/history", "")
	assertStatus(t, resp, http.StatusOK)
	if result := parseJSON(t, resp); result["cleared"] != float64(1) {
		t.Errorf("expected 1 cleared, got %v", result["cleared"])
	}
	if entries, _, _ := ta.history.Snapshot(); len(entries) != 0 {
		t.Errorf("expected empty history, got %d entries", len(entries))
	}
}
