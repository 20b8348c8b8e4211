package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kevynz/Vantracing-sub000/internal/bucket"
	"github.com/Kevynz/Vantracing-sub000/internal/db"
)

type fakeWaker struct {
	woken []int64
}

func (w *fakeWaker) Wake(userID int64) {
	w.woken = append(w.woken, userID)
}

func TestLiveChannel_AppendsAndWakes(t *testing.T) {
	store := bucket.NewMemoryStore(50, 5*time.Minute)
	waker := &fakeWaker{}
	ch := NewLiveChannel(store, waker, zap.NewNop())

	notif := &db.Notification{
		ID:       uuid.New(),
		UserID:   7,
		Type:     "pickup_alert",
		Title:    "Van arriving",
		Message:  "5 minutes away",
		Priority: db.PriorityHigh,
	}

	if err := ch.Deliver(context.Background(), notif); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}

	if len(waker.woken) != 1 || waker.woken[0] != 7 {
		t.Errorf("expected wake for user 7, got %v", waker.woken)
	}

	entries, err := store.Drain(context.Background(), 7)
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ID != notif.ID.String() {
		t.Errorf("expected entry id %s, got %s", notif.ID, entries[0].ID)
	}
	if entries[0].Event != "notification" {
		t.Errorf("expected event notification, got %s", entries[0].Event)
	}

	var env liveEnvelope
	if err := json.Unmarshal(entries[0].Data, &env); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if env.Title != "Van arriving" || env.Priority != db.PriorityHigh {
		t.Errorf("unexpected envelope: %+v", env)
	}
}

func TestLiveChannel_SystemEventType(t *testing.T) {
	store := bucket.NewMemoryStore(50, 5*time.Minute)
	ch := NewLiveChannel(store, nil, zap.NewNop())

	notif := &db.Notification{
		ID:     uuid.New(),
		UserID: 7,
		Type:   "system",
		Title:  "Service maintenance tonight",
	}

	if err := ch.Deliver(context.Background(), notif); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}

	entries, _ := store.Drain(context.Background(), 7)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Event != "system_notification" {
		t.Errorf("expected event system_notification, got %s", entries[0].Event)
	}
}

func TestLiveChannel_NilWaker(t *testing.T) {
	store := bucket.NewMemoryStore(50, 5*time.Minute)
	ch := NewLiveChannel(store, nil, zap.NewNop())

	notif := &db.Notification{ID: uuid.New(), UserID: 7, Type: "trip_started", Title: "t"}
	if err := ch.Deliver(context.Background(), notif); err != nil {
		t.Fatalf("deliver with nil waker failed: %v", err)
	}
}

func TestLogChannel(t *testing.T) {
	ch := NewLogChannel(db.ChannelEmail, zap.NewNop())

	if ch.Name() != db.ChannelEmail {
		t.Errorf("expected name email, got %s", ch.Name())
	}

	notif := &db.Notification{ID: uuid.New(), UserID: 7, Type: "trip_started", Title: "t"}
	if err := ch.Deliver(context.Background(), notif); err != nil {
		t.Errorf("log channel should accept every delivery, got %v", err)
	}
}
