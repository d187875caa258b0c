package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

const githubEventsBody = `[
	{
		"id": "1",
		"type": "PushEvent",
		"actor": {"login": "octocat"},
		"repo": {"name": "octo/hello-world"},
		"payload": {"ref": "refs/heads/main", "commits": [{"message": "fix"}]},
		"created_at": "2024-01-15T10:30:00Z"
	},
	{
		"id": "2",
		"actor": {"login": "broken-item-without-type"}
	},
	{
		"id": "3",
		"type": "WatchEvent",
		"actor": {"login": "stargazer"},
		"repo": {"name": "octo/hello-world"},
		"payload": {"action": "started"},
		"created_at": "2024-01-15T10:31:00Z"
	}
]`

func TestGitHubAdapter_PollIngestsItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Expected bearer token header, got %q", got)
		}
		w.Header().Set("ETag", `"etag-1"`)
		w.Write([]byte(githubEventsBody))
	}))
	defer server.Close()

	sink := &collectingSink{}
	adapter := NewGitHubAdapter(server.URL, "test-token", 5*time.Second, sink)
	adapter.Start(context.Background())

	if err := adapter.Poll(context.Background()); err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}

	// The malformed item is skipped, the other two come through in order
	events := sink.Events()
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].Type != "PushEvent" || events[1].Type != "WatchEvent" {
		t.Errorf("Expected items in feed order, got %s then %s", events[0].Type, events[1].Type)
	}
}

func TestGitHubAdapter_NotModifiedIsNoOp(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.Header().Set("ETag", `"etag-1"`)
			w.Write([]byte(githubEventsBody))
			return
		}
		if got := r.Header.Get("If-None-Match"); got != `"etag-1"` {
			t.Errorf("Expected If-None-Match with previous ETag, got %q", got)
		}
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	sink := &collectingSink{}
	adapter := NewGitHubAdapter(server.URL, "", 5*time.Second, sink)
	adapter.Start(context.Background())

	if err := adapter.Poll(context.Background()); err != nil {
		t.Fatalf("first Poll returned error: %v", err)
	}
	ingested := len(sink.Events())

	// The conditional request short-circuits: zero new events, no error
	if err := adapter.Poll(context.Background()); err != nil {
		t.Fatalf("second Poll returned error: %v", err)
	}
	if len(sink.Events()) != ingested {
		t.Errorf("Expected no new events after 304, got %d extra", len(sink.Events())-ingested)
	}
}

func TestGitHubAdapter_GarbledResponseDoesNotAdvanceETag(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("ETag", `"etag-1"`)
		if requests == 1 {
			// A 200 whose body never parses; the batch is lost in transit
			w.Write([]byte(`[{"type": "PushEv`))
			return
		}
		// The retry must re-fetch the same content unconditionally
		if got := r.Header.Get("If-None-Match"); got != "" {
			t.Errorf("Expected no If-None-Match after a failed batch, got %q", got)
		}
		w.Write([]byte(githubEventsBody))
	}))
	defer server.Close()

	sink := &collectingSink{}
	adapter := NewGitHubAdapter(server.URL, "", 5*time.Second, sink)
	adapter.Start(context.Background())

	if err := adapter.Poll(context.Background()); err == nil {
		t.Fatal("Expected error for an unparsable poll response")
	}
	if len(sink.Events()) != 0 {
		t.Fatalf("Expected no events from the garbled response, got %d", len(sink.Events()))
	}

	if err := adapter.Poll(context.Background()); err != nil {
		t.Fatalf("retry Poll returned error: %v", err)
	}
	if len(sink.Events()) != 2 {
		t.Errorf("Expected the retried batch to ingest 2 events, got %d", len(sink.Events()))
	}
}

func TestGitHubAdapter_RateLimitIsTolerated(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusTooManyRequests} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		sink := &collectingSink{}
		adapter := NewGitHubAdapter(server.URL, "", 5*time.Second, sink)
		adapter.Start(context.Background())

		if err := adapter.Poll(context.Background()); err != nil {
			t.Errorf("Expected rate-limit status %d to be tolerated, got %v", status, err)
		}
		if len(sink.Events()) != 0 {
			t.Errorf("Expected no events on rate-limit skip, got %d", len(sink.Events()))
		}
		server.Close()
	}
}

func TestGitHubAdapter_ServerErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	adapter := NewGitHubAdapter(server.URL, "", 5*time.Second, &collectingSink{})
	adapter.Start(context.Background())

	if err := adapter.Poll(context.Background()); err == nil {
		t.Error("Expected error for a 500 response")
	}
}

func TestGitHubAdapter_OverlappingPollIsSkipped(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		<-release
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	adapter := NewGitHubAdapter(server.URL, "", 5*time.Second, &collectingSink{})
	adapter.Start(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- adapter.Poll(context.Background())
	}()

	// Wait until the first poll is inside its request
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		started := requests == 1
		mu.Unlock()
		if started {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first poll never reached the server")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// The overlapping tick is skipped entirely: no second request fires
	if err := adapter.Poll(context.Background()); err != nil {
		t.Errorf("Overlapping poll returned error: %v", err)
	}
	mu.Lock()
	if requests != 1 {
		t.Errorf("Expected 1 request, got %d", requests)
	}
	mu.Unlock()

	close(release)
	if err := <-done; err != nil {
		t.Errorf("first poll returned error: %v", err)
	}
}

func TestGitHubAdapter_StoppedAdapterSkipsPoll(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	adapter := NewGitHubAdapter(server.URL, "", 5*time.Second, &collectingSink{})
	adapter.Start(context.Background())
	adapter.Stop()

	if err := adapter.Poll(context.Background()); err != nil {
		t.Errorf("Poll on stopped adapter returned error: %v", err)
	}
	if requests != 0 {
		t.Errorf("Expected no requests from a stopped adapter, got %d", requests)
	}
}
