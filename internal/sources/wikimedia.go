package sources

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/database"
	"github.com/pulsewatch/pulsewatch/internal/events"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
)

const (
	dataPrefix        = "data: "
	heartbeatSentinel = ":ok"

	// Recentchange items can carry full page text in some wikis
	maxLineBytes = 1024 * 1024
)

// WikimediaAdapter consumes the Wikimedia EventStreams SSE feed. The stream
// is long-lived; on transport error or stream end the adapter parks itself in
// the not-running state and waits for the external health check to call Start
// again. Recovery is deliberately decoupled from detection so a flapping
// stream cannot trigger a restart storm.
type WikimediaAdapter struct {
	url    string
	client *http.Client
	sink   EventSink

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewWikimediaAdapter creates a stream adapter for the given EventStreams URL
func NewWikimediaAdapter(url string, timeout time.Duration, sink EventSink) *WikimediaAdapter {
	// No overall client timeout: the response body is an endless stream.
	// Timeouts apply to dial and header exchange only.
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: timeout,
		}).DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
	}
	return &WikimediaAdapter{
		url:    url,
		client: &http.Client{Transport: transport},
		sink:   sink,
	}
}

// SourceType returns the wikimedia source identifier
func (a *WikimediaAdapter) SourceType() database.EventSource {
	return database.EventSourceWikimedia
}

// IsRunning reports whether the stream is currently connected
func (a *WikimediaAdapter) IsRunning() bool {
	return a.running.Load()
}

// Start opens the stream and begins consuming it in the background.
// Concurrent Start calls while running are no-ops.
func (a *WikimediaAdapter) Start(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return nil
	}

	streamCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	// Release the previous stream's context; after a natural stream death it
	// was never cancelled and would leak on every restart
	if a.cancel != nil {
		a.cancel()
	}
	a.cancel = cancel
	a.mu.Unlock()

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, a.url, nil)
	if err != nil {
		cancel()
		a.running.Store(false)
		return fmt.Errorf("failed to build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := a.client.Do(req)
	if err != nil {
		cancel()
		a.running.Store(false)
		return fmt.Errorf("failed to open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		a.running.Store(false)
		return fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	log.Printf("Wikimedia stream connected: %s", a.url)
	go a.consume(streamCtx, resp)
	return nil
}

// Stop tears down the stream connection
func (a *WikimediaAdapter) Stop() {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.mu.Unlock()
}

// EnsureRunning is the periodic health check target: it restarts the stream
// when a previous transport error left it down.
func (a *WikimediaAdapter) EnsureRunning(ctx context.Context) {
	if a.IsRunning() {
		return
	}
	log.Println("Wikimedia stream is down, restarting")
	metrics.StreamRestarts.Inc()
	if err := a.Start(ctx); err != nil {
		log.Printf("Warning: failed to restart wikimedia stream: %v", err)
	}
}

// consume reads framed lines until the stream ends or the context is
// cancelled. Items are processed strictly in arrival order.
func (a *WikimediaAdapter) consume(ctx context.Context, resp *http.Response) {
	defer func() {
		resp.Body.Close()
		a.running.Store(false)
		log.Println("Wikimedia stream disconnected")
	}()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := frameData(line)
		if !ok {
			continue
		}
		a.handleChunk(ctx, payload)
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		log.Printf("Wikimedia stream read error: %v", err)
	}
}

// frameData extracts the payload of a data-framed line. Heartbeats, event
// metadata lines and comments are discarded.
func frameData(line string) (string, bool) {
	if line == heartbeatSentinel {
		return "", false
	}
	if !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}
	payload := strings.TrimPrefix(line, dataPrefix)
	if payload == "" {
		return "", false
	}
	return payload, true
}

// handleChunk parses and ingests one stream item. Malformed chunks are
// logged and skipped; they never take the stream down.
func (a *WikimediaAdapter) handleChunk(ctx context.Context, payload string) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		log.Printf("Warning: skipping unparsable stream chunk: %v", err)
		return
	}

	event, err := events.Normalize(database.EventSourceWikimedia, raw)
	if err != nil {
		log.Printf("Warning: skipping wikimedia item: %v", err)
		return
	}

	if err := a.sink.Ingest(ctx, event); err != nil {
		log.Printf("Warning: failed to ingest wikimedia event: %v", err)
	}
}
