package client

import (
	"context"
	"errors"
	"strings"
	"sync"

	"playchrono/internal/calendar"
	"playchrono/internal/domain"
	"playchrono/internal/models"
)

// ErrSuperseded is returned by a load whose selection was replaced by a
// newer one before its response arrived.
var ErrSuperseded = errors.New("availability request superseded")

// Selection is the sport and date a listing was requested for.
type Selection struct {
	Sport string
	Date  calendar.Date
}

// AvailabilityView holds the listing of one screen. Each Load is tagged with
// a generation; starting a new Load cancels the previous one and a response
// for an older generation is discarded, so a slow earlier fetch never
// replaces a later one.
type AvailabilityView struct {
	client *Client

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	current  Selection
	grounds  []models.GroundAvailability
	loadedAt uint64
}

func NewAvailabilityView(c *Client) *AvailabilityView {
	return &AvailabilityView{client: c}
}

// Load fetches the listing for sel and makes it current.
func (v *AvailabilityView) Load(ctx context.Context, sel Selection) ([]models.GroundAvailability, error) {
	ctx, cancel := context.WithCancel(ctx)

	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
	}
	v.gen++
	gen := v.gen
	v.cancel = cancel
	v.current = sel
	v.mu.Unlock()

	grounds, err := v.client.Availability(ctx, sel.Sport, sel.Date)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		cancel()
		return nil, ErrSuperseded
	}
	v.cancel = nil
	cancel()
	if err != nil {
		return nil, err
	}
	v.grounds = grounds
	v.loadedAt = gen
	return grounds, nil
}

// Refresh reloads the current selection.
func (v *AvailabilityView) Refresh(ctx context.Context) ([]models.GroundAvailability, error) {
	v.mu.Lock()
	sel := v.current
	v.mu.Unlock()
	if sel.Sport == "" {
		return nil, domain.ValidationError{Field: "sport", Msg: "nothing selected"}
	}
	return v.Load(ctx, sel)
}

// Snapshot returns the selection and the listing last loaded for it. ok is
// false while the newest selection has not finished loading.
func (v *AvailabilityView) Snapshot() (sel Selection, grounds []models.GroundAvailability, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current, v.grounds, v.loadedAt == v.gen && v.gen > 0
}

// Close cancels any in-flight load. Later responses are discarded.
func (v *AvailabilityView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.gen++
}

// Book submits a booking and then reloads the listing for the booking's
// sport and date, both after success and after a slot conflict. The
// booking error, if any, is returned with the reloaded listing.
//
// The server may fill the sport from the captain's profile, so a stored
// booking wins over the request, and the current selection fills any gap.
func (v *AvailabilityView) Book(ctx context.Context, s *Session, req models.BookingRequest) (*models.Booking, []models.GroundAvailability, error) {
	booking, err := s.CreateBooking(ctx, req)
	if err != nil && !domain.IsConflict(err) {
		return nil, nil, err
	}

	sel := Selection{Sport: req.SportType, Date: req.Date}
	if booking != nil {
		sel = Selection{Sport: booking.SportType, Date: booking.Date}
	}
	if strings.TrimSpace(sel.Sport) == "" {
		v.mu.Lock()
		sel.Sport = v.current.Sport
		v.mu.Unlock()
	}

	grounds, loadErr := v.Load(ctx, sel)
	if err != nil {
		return nil, grounds, err
	}
	if loadErr != nil {
		return booking, nil, loadErr
	}
	return booking, grounds, nil
}
