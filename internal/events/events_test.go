package events

import (
	"encoding/json"
	"errors"
	"testing"

	"playchrono/internal/calendar"
	"playchrono/internal/models"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	handler := func(event *Event) error {
		received = event
		callCount++
		return nil
	}

	bus.Subscribe("test_event", handler)

	payload := map[string]string{"foo": "bar"}
	if err := bus.PublishJSON("test_event", payload); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}

	if received.Type != "test_event" {
		t.Errorf("expected type test_event, got %s", received.Type)
	}

	var decoded map[string]string
	if err := received.Decode(&decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}

	if decoded["foo"] != "bar" {
		t.Errorf("expected foo=bar, got %s", decoded["foo"])
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe("event", func(_ *Event) error { count1++; return errors.New("first failed") })
	bus.Subscribe("event", func(_ *Event) error { count2++; return nil })

	err := bus.Publish(&Event{Type: "event"})

	if count1 != 1 || count2 != 1 {
		t.Errorf("expected both handlers to be called once, got %d and %d", count1, count2)
	}
	if err == nil || err.Error() != "first failed" {
		t.Errorf("expected handler error to be returned, got %v", err)
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	if err := bus.Publish(&Event{Type: "unknown"}); err != nil {
		t.Errorf("Publish failed: %v", err)
	}
	if err := bus.PublishJSON("unknown", nil); err != nil {
		t.Errorf("PublishJSON failed: %v", err)
	}

	var nilBus *EventBus
	if err := nilBus.PublishJSON("unknown", nil); err != nil {
		t.Errorf("nil bus should be a no-op, got %v", err)
	}
}

func TestNewBookingPayload(t *testing.T) {
	b := &models.Booking{
		ID:            "b1",
		CaptainID:     "c1",
		GroundName:    "Main Field",
		Date:          calendar.MustParseDate("2025-06-15"),
		SelectedSlots: []string{"06:00 - 07:30"},
		Status:        models.StatusConfirmed,
	}

	event, err := NewJSONEvent(EventBookingCreated, NewBookingPayload(b, "admin-1", "Admin"))
	if err != nil {
		t.Fatalf("NewJSONEvent failed: %v", err)
	}

	if event.CreatedAt.IsZero() {
		t.Errorf("expected CreatedAt to be set")
	}

	var decoded BookingEventPayload
	if err := json.Unmarshal(event.Payload, &decoded); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}

	if decoded.BookingID != "b1" || decoded.Date != "2025-06-15" || decoded.ChangedBy != "Admin" {
		t.Errorf("unexpected payload: %+v", decoded)
	}
	if len(decoded.Slots) != 1 || decoded.Slots[0] != "06:00 - 07:30" {
		t.Errorf("unexpected slots: %v", decoded.Slots)
	}
}
