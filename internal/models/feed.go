package models

import (
	"encoding/json"
	"fmt"
)

// FeedItem is a notice or a booking tagged with its kind. On the wire the
// tag is a "type" field next to the item's own fields.
type FeedItem struct {
	Type    string
	Notice  *Notice
	Booking *Booking
}

func NoticeItem(n Notice) FeedItem   { return FeedItem{Type: FeedNotice, Notice: &n} }
func BookingItem(b Booking) FeedItem { return FeedItem{Type: FeedBooking, Booking: &b} }

func (f FeedItem) MarshalJSON() ([]byte, error) {
	var inner any
	switch f.Type {
	case FeedNotice:
		inner = f.Notice
	case FeedBooking:
		inner = f.Booking
	default:
		return nil, fmt.Errorf("unknown feed item type %q", f.Type)
	}

	raw, err := json.Marshal(inner)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["type"], _ = json.Marshal(f.Type)
	return json.Marshal(fields)
}

func (f *FeedItem) UnmarshalJSON(data []byte) error {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}

	switch tag.Type {
	case FeedNotice:
		var n Notice
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*f = NoticeItem(n)
	case FeedBooking:
		var b Booking
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*f = BookingItem(b)
	default:
		return fmt.Errorf("unknown feed item type %q", tag.Type)
	}
	return nil
}
