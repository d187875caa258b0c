package sources

import (
	"context"
	"errors"
	"testing"

	"github.com/pulsewatch/pulsewatch/internal/broker"
	"github.com/pulsewatch/pulsewatch/internal/database"
	"github.com/pulsewatch/pulsewatch/internal/testhelpers"
)

type fakeEventPublisher struct {
	notifications []broker.EventNotification
	err           error
}

func (f *fakeEventPublisher) PublishEvent(ctx context.Context, n broker.EventNotification) error {
	if f.err != nil {
		return f.err
	}
	f.notifications = append(f.notifications, n)
	return nil
}

func TestStoreSink_PersistsAndPublishes(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	publisher := &fakeEventPublisher{}
	sink := NewStoreSink(db, publisher)

	event := testhelpers.NewEventBuilder().Build()
	if err := sink.Ingest(context.Background(), &event); err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}

	stored, err := database.GetEventByUUID(db, event.UUID)
	if err != nil {
		t.Fatalf("event was not persisted: %v", err)
	}
	if stored.Status != database.EventStatusPending {
		t.Errorf("Expected pending status, got %s", stored.Status)
	}

	if len(publisher.notifications) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(publisher.notifications))
	}
	if publisher.notifications[0].EventID != event.UUID {
		t.Errorf("Expected notification keyed by event UUID %s, got %s",
			event.UUID, publisher.notifications[0].EventID)
	}
}

func TestStoreSink_PublishFailureIsSwallowed(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	publisher := &fakeEventPublisher{err: errors.New("broker down")}
	sink := NewStoreSink(db, publisher)

	event := testhelpers.NewEventBuilder().Build()
	if err := sink.Ingest(context.Background(), &event); err != nil {
		t.Errorf("Expected publish failure to be swallowed, got %v", err)
	}

	if _, err := database.GetEventByUUID(db, event.UUID); err != nil {
		t.Errorf("event must persist even when the broker is down: %v", err)
	}
}

func TestStoreSink_NilPublisher(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	sink := NewStoreSink(db, nil)

	event := testhelpers.NewEventBuilder().Build()
	if err := sink.Ingest(context.Background(), &event); err != nil {
		t.Errorf("Ingest without a publisher returned error: %v", err)
	}
}
