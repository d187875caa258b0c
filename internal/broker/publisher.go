// Package broker publishes event and incident notifications to Kafka.
// Delivery is best-effort: persistence is the source of truth, the broker is
// a secondary, lossy notification channel.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/pulsewatch/pulsewatch/internal/metrics"
)

// Topic names downstream consumers subscribe to
const (
	TopicEvents     = "events"
	TopicIncidents  = "incidents"
	TopicKnowledge  = "knowledge"
	TopicDeadLetter = "dead-letter"
)

// DefaultTopics is the fixed set provisioned at startup
var DefaultTopics = []string{TopicEvents, TopicIncidents, TopicKnowledge, TopicDeadLetter}

const (
	numPartitions     = 3
	replicationFactor = 1

	provisionAttempts = 3
	backoffBase       = 500 * time.Millisecond
	backoffCap        = 5 * time.Second
)

// controllerConn is the subset of *kafka.Conn used for topic provisioning
type controllerConn interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer used for publishing
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher provisions topics and publishes keyed JSON notifications
type Publisher struct {
	brokers []string
	backoff time.Duration

	mu     sync.Mutex
	writer messageWriter

	// Injection points for tests; production values dial real brokers
	dialController func(ctx context.Context) (controllerConn, error)
	newWriter      func() messageWriter
}

// NewPublisher creates a publisher for the given broker endpoints
func NewPublisher(brokers []string) *Publisher {
	p := &Publisher{brokers: brokers, backoff: backoffBase}
	p.dialController = p.dialClusterController
	p.newWriter = func() messageWriter {
		return &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		}
	}
	return p
}

// dialClusterController connects to any bootstrap broker, finds the cluster
// controller and returns a connection to it. Topic creation must go through
// the controller.
func (p *Publisher) dialClusterController(ctx context.Context) (controllerConn, error) {
	if len(p.brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", p.brokers[0])
	if err != nil {
		return nil, fmt.Errorf("failed to dial broker %s: %w", p.brokers[0], err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cluster controller: %w", err)
	}

	ctrlConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return nil, fmt.Errorf("failed to dial controller: %w", err)
	}
	return ctrlConn, nil
}

// EnsureTopics provisions every topic in the fixed list. Topics are tracked
// independently: a failure on one does not block the others. Returns an error
// summarizing the failures; callers are expected to log it and continue in
// degraded mode rather than fail hard.
func (p *Publisher) EnsureTopics(ctx context.Context) error {
	var failed []string
	created := 0

	for _, topic := range DefaultTopics {
		if err := p.ensureTopic(ctx, topic); err != nil {
			log.Printf("Failed to provision topic %q: %v", topic, err)
			failed = append(failed, topic)
			continue
		}
		created++
	}

	log.Printf("Topic provisioning complete: %d ok, %d failed", created, len(failed))
	if len(failed) > 0 {
		return fmt.Errorf("failed to provision topics: %v", failed)
	}
	return nil
}

// ensureTopic creates one topic, retrying with bounded exponential backoff.
// An already-existing topic counts as success.
func (p *Publisher) ensureTopic(ctx context.Context, topic string) error {
	var lastErr error

	for attempt := 1; attempt <= provisionAttempts; attempt++ {
		lastErr = p.createTopic(ctx, topic)
		if lastErr == nil {
			return nil
		}

		if attempt < provisionAttempts {
			backoff := p.backoff << (attempt - 1)
			if backoff > backoffCap {
				backoff = backoffCap
			}
			log.Printf("Topic %q provisioning attempt %d/%d failed, retrying in %s: %v",
				topic, attempt, provisionAttempts, backoff, lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("exhausted %d attempts: %w", provisionAttempts, lastErr)
}

func (p *Publisher) createTopic(ctx context.Context, topic string) error {
	conn, err := p.dialController(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return err
	}
	return nil
}

// EventNotification is the minimal message published for each stored event
type EventNotification struct {
	EventID   string    `json:"event_id"`
	Source    string    `json:"source"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
	Summary   string    `json:"summary"`
}

// IncidentNotification is published when the synthesizer creates an incident
type IncidentNotification struct {
	IncidentID string    `json:"incident_id"`
	Title      string    `json:"title"`
	Severity   string    `json:"severity"`
	Source     string    `json:"source"`
	Service    string    `json:"service,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
	EventIDs   []string  `json:"event_ids"`
}

// PublishEvent publishes an event notification keyed by the event id, or a
// timestamp fallback when the id is missing
func (p *Publisher) PublishEvent(ctx context.Context, n EventNotification) error {
	key := n.EventID
	if key == "" {
		key = strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return p.publish(ctx, TopicEvents, key, n)
}

// PublishIncident publishes an incident-created notification
func (p *Publisher) PublishIncident(ctx context.Context, n IncidentNotification) error {
	key := n.IncidentID
	if key == "" {
		key = strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return p.publish(ctx, TopicIncidents, key, n)
}

// PublishDeadLetter routes an unprocessable payload to the dead-letter topic
func (p *Publisher) PublishDeadLetter(ctx context.Context, key string, payload []byte) error {
	return p.write(ctx, kafka.Message{
		Topic: TopicDeadLetter,
		Key:   []byte(key),
		Value: payload,
	})
}

func (p *Publisher) publish(ctx context.Context, topic, key string, v interface{}) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", topic, err)
	}
	return p.write(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
}

// write sends one message, reconnecting the writer once if it was closed or
// the send fails on a stale connection
func (p *Publisher) write(ctx context.Context, msg kafka.Message) error {
	p.mu.Lock()
	if p.writer == nil {
		p.writer = p.newWriter()
	}
	writer := p.writer
	p.mu.Unlock()

	err := writer.WriteMessages(ctx, msg)
	if err == nil {
		return nil
	}

	// One reconnect attempt before giving up
	p.mu.Lock()
	if p.writer == writer {
		writer.Close()
		p.writer = p.newWriter()
	}
	writer = p.writer
	p.mu.Unlock()

	if err = writer.WriteMessages(ctx, msg); err != nil {
		metrics.PublishFailures.WithLabelValues(msg.Topic).Inc()
		return fmt.Errorf("failed to publish to %s: %w", msg.Topic, err)
	}
	return nil
}

// Close releases the writer connection
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer == nil {
		return nil
	}
	err := p.writer.Close()
	p.writer = nil
	return err
}
