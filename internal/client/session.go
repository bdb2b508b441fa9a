package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"playchrono/internal/bookingview"
	"playchrono/internal/calendar"
	"playchrono/internal/domain"
	"playchrono/internal/models"
)

const (
	pdfContentType  = "application/pdf"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Session is a logged-in user. It lives from Login until Logout; calls on a
// closed session fail with ErrUnauthorized without reaching the server.
type Session struct {
	client    *Client
	user      models.User
	expiresAt time.Time

	mu     sync.RWMutex
	token  string
	closed bool
}

func (s *Session) User() models.User    { return s.user }
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

// Active reports whether the session can still be used.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

func (s *Session) bearer() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", fmt.Errorf("%w: session closed", domain.ErrUnauthorized)
	}
	return s.token, nil
}

// Logout ends the session on the server and locally. The local session is
// closed even when the server call fails.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	token := s.token
	s.closed = true
	s.token = ""
	s.mu.Unlock()

	return s.client.doPost(ctx, "/api/auth/logout", token, struct{}{}, nil)
}

// CreateBooking books slots on a ground. A slot taken in the meantime comes
// back as a ConflictError naming the slots; nothing is booked in that case.
func (s *Session) CreateBooking(ctx context.Context, req models.BookingRequest) (*models.Booking, error) {
	if err := checkBookingRequest(req); err != nil {
		return nil, err
	}
	token, err := s.bearer()
	if err != nil {
		return nil, err
	}
	var booking models.Booking
	if err := s.client.doPost(ctx, "/api/bookings", token, req, &booking); err != nil {
		return nil, err
	}
	if err := validateBooking(&booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

// checkBookingRequest catches missing fields before the request is sent.
func checkBookingRequest(req models.BookingRequest) error {
	switch {
	case req.GroundID == "":
		return domain.ValidationError{Field: "groundId", Msg: "is required"}
	case req.Date.IsZero():
		return domain.ValidationError{Field: "date", Msg: "is required"}
	case len(req.SelectedSlots) == 0:
		return domain.ValidationError{Field: "selectedSlots", Msg: "select at least one slot"}
	case req.Purpose == "":
		return domain.ValidationError{Field: "purpose", Msg: "is required"}
	}
	return nil
}

// MyBookings returns the user's bookings classified against today and
// ordered for display.
func (s *Session) MyBookings(ctx context.Context, today calendar.Date) ([]bookingview.Entry, error) {
	token, err := s.bearer()
	if err != nil {
		return nil, err
	}
	bookings, err := s.client.bookings(ctx, "/api/bookings/my-bookings/"+url.PathEscape(s.user.ID), token)
	if err != nil {
		return nil, err
	}
	return bookingview.Arrange(bookings, today), nil
}

// CancelBooking deletes a booking the user owns, or any booking for admins.
func (s *Session) CancelBooking(ctx context.Context, bookingID string) error {
	if bookingID == "" {
		return domain.ValidationError{Field: "bookingId", Msg: "is required"}
	}
	token, err := s.bearer()
	if err != nil {
		return err
	}
	return s.client.doDelete(ctx, "/api/bookings/"+url.PathEscape(bookingID), token, nil)
}

// Receipt downloads the PDF receipt of a booking.
func (s *Session) Receipt(ctx context.Context, bookingID string) ([]byte, error) {
	token, err := s.bearer()
	if err != nil {
		return nil, err
	}
	return s.client.doRaw(ctx, "/api/receipts/"+url.PathEscape(bookingID), token, pdfContentType)
}

// PostNotice publishes an announcement as the session user.
func (s *Session) PostNotice(ctx context.Context, title, message string) (*models.Notice, error) {
	token, err := s.bearer()
	if err != nil {
		return nil, err
	}
	req := models.NoticeRequest{Title: title, Message: message, UserID: s.user.ID, UserName: s.user.Username}
	var resp struct {
		Notice *models.Notice `json:"notice"`
	}
	if err := s.client.doPost(ctx, "/api/notices", token, req, &resp); err != nil {
		return nil, err
	}
	if resp.Notice == nil || resp.Notice.ID == "" {
		return nil, invalidResponse("notice", "notice id is missing")
	}
	return resp.Notice, nil
}

// AllBookings lists every booking. Admin only.
func (s *Session) AllBookings(ctx context.Context) ([]models.Booking, error) {
	token, err := s.bearer()
	if err != nil {
		return nil, err
	}
	return s.client.bookings(ctx, "/api/bookings/all", token)
}

// Captains lists captain accounts. Admin only.
func (s *Session) Captains(ctx context.Context) ([]models.User, error) {
	token, err := s.bearer()
	if err != nil {
		return nil, err
	}
	var wrap struct {
		Captains []models.User `json:"captains"`
	}
	if err := s.client.doGet(ctx, "/api/users/captains", token, &wrap); err != nil {
		return nil, err
	}
	if wrap.Captains == nil {
		wrap.Captains = []models.User{}
	}
	return wrap.Captains, nil
}

// Stats returns the admin dashboard counters.
func (s *Session) Stats(ctx context.Context) (*models.AdminStats, error) {
	token, err := s.bearer()
	if err != nil {
		return nil, err
	}
	var resp struct {
		Stats *models.AdminStats `json:"stats"`
	}
	if err := s.client.doGet(ctx, "/api/admin/stats", token, &resp); err != nil {
		return nil, err
	}
	if resp.Stats == nil {
		return nil, invalidResponse("stats", "stats are missing")
	}
	return resp.Stats, nil
}

// ExportBookings downloads the bookings workbook for from..to inclusive.
func (s *Session) ExportBookings(ctx context.Context, from, to calendar.Date) ([]byte, error) {
	if to.Before(from) {
		return nil, domain.ValidationError{Field: "to", Msg: "must not be before from"}
	}
	token, err := s.bearer()
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("from", from.String())
	q.Set("to", to.String())
	return s.client.doRaw(ctx, "/api/admin/export/bookings?"+q.Encode(), token, xlsxContentType)
}
