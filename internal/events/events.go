package events

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"playchrono/internal/models"
)

const (
	EventBookingCreated  = "booking_created"
	EventBookingCanceled = "booking_canceled"
	EventNoticeCreated   = "notice_created"
)

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID   string   `json:"booking_id"`
	CaptainID   string   `json:"captain_id"`
	CaptainName string   `json:"captain_name"`
	TeamName    string   `json:"team_name,omitempty"`
	SportType   string   `json:"sport_type"`
	GroundID    string   `json:"ground_id"`
	GroundName  string   `json:"ground_name"`
	Date        string   `json:"date"`
	Slots       []string `json:"slots"`
	Purpose     string   `json:"purpose,omitempty"`
	Status      string   `json:"status"`
	ChangedBy   string   `json:"changed_by,omitempty"`
	ChangedByID string   `json:"changed_by_id,omitempty"`
}

// NewBookingPayload snapshots b; actor is who triggered the change.
func NewBookingPayload(b *models.Booking, actorID, actorName string) BookingEventPayload {
	return BookingEventPayload{
		BookingID:   b.ID,
		CaptainID:   b.CaptainID,
		CaptainName: b.CaptainName,
		TeamName:    b.TeamName,
		SportType:   b.SportType,
		GroundID:    b.GroundID,
		GroundName:  b.GroundName,
		Date:        b.Date.String(),
		Slots:       append([]string(nil), b.SelectedSlots...),
		Purpose:     b.Purpose,
		Status:      b.Status,
		ChangedBy:   actorName,
		ChangedByID: actorID,
	}
}

type NoticeEventPayload struct {
	NoticeID   string `json:"notice_id"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	AuthorName string `json:"author_name"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the JSON payload into v.
func (e *Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs the subscribers of the event type in registration order. Every
// handler runs; their errors are joined.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	return b.Publish(&event)
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
