package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"playchrono/internal/bookingview"
	"playchrono/internal/calendar"
	"playchrono/internal/domain"
	"playchrono/internal/export"
	"playchrono/internal/models"
	"playchrono/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health != nil {
		if err := s.svc.Health(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleGrounds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "grounds": s.svc.Availability.Grounds()})
}

func parseDateParam(raw, field string) (calendar.Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return calendar.Date{}, domain.ValidationError{Field: field, Msg: "is required"}
	}
	d, err := calendar.ParseDate(raw)
	if err != nil {
		return calendar.Date{}, domain.ValidationError{Field: field, Msg: "expected YYYY-MM-DD", Err: err}
	}
	return d, nil
}

func (s *HTTPServer) handleAvailable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := parseDateParam(q.Get("date"), "date")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	grounds, err := s.svc.Availability.GetAvailability(r.Context(), q.Get("sport"), date)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if grounds == nil {
		grounds = []models.GroundAvailability{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "grounds": grounds})
}

type bookingResponse struct {
	Success bool `json:"success"`
	*models.Booking
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	booking, err := s.svc.Bookings.CreateBooking(r.Context(), sessionFrom(r.Context()), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bookingResponse{Success: true, Booking: booking})
}

func (s *HTTPServer) handleTodayBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.svc.Bookings.TodayBookings(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeBookings(w, bookings)
}

func (s *HTTPServer) handleMyBookings(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.Bookings.MyBookings(r.Context(), sessionFrom(r.Context()), r.PathValue("captainId"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []bookingview.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "bookings": entries})
}

func (s *HTTPServer) handleAllBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.svc.Bookings.AllBookings(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeBookings(w, bookings)
}

func writeBookings(w http.ResponseWriter, bookings []models.Booking) {
	if bookings == nil {
		bookings = []models.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "bookings": bookings})
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.svc.Bookings.CancelBooking(r.Context(), sessionFrom(r.Context()), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "bookingId": id})
}

func (s *HTTPServer) handleReceipt(w http.ResponseWriter, r *http.Request) {
	booking, err := s.svc.Bookings.GetBooking(r.Context(), sessionFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	pdf, err := export.BookingReceipt(booking)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeAttachment(w, "application/pdf", fmt.Sprintf("booking-%s.pdf", booking.ID), pdf)
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseDateParam(q.Get("from"), "from")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	to, err := parseDateParam(q.Get("to"), "to")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	bookings, err := s.svc.Bookings.BookingsBetween(r.Context(), from, to)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	data, err := export.BookingsWorkbook(bookings, from, to)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeAttachment(w, xlsxContentType, fmt.Sprintf("bookings_%s_to_%s.xlsx", from, to), data)
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *HTTPServer) handleListNotices(w http.ResponseWriter, r *http.Request) {
	notices, err := s.svc.Notices.ListNotices(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if notices == nil {
		notices = []models.Notice{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "notices": notices})
}

func (s *HTTPServer) handleCreateNotice(w http.ResponseWriter, r *http.Request) {
	var req models.NoticeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	notice, err := s.svc.Notices.CreateNotice(r.Context(), sessionFrom(r.Context()), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "notice": notice})
}

func (s *HTTPServer) handleCaptains(w http.ResponseWriter, r *http.Request) {
	captains, err := s.svc.Users.Captains(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if captains == nil {
		captains = []models.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "captains": captains})
}

func (s *HTTPServer) handleCheckEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	exists, err := s.svc.Users.EmailExists(r.Context(), body.Email)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "exists": exists})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	result, err := s.svc.Auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"token":     result.Token,
		"expiresAt": result.ExpiresAt,
		"user":      result.User,
	})
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	user, err := s.svc.Auth.Register(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "user": user})
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Auth.Logout(r.Context(), sessionFrom(r.Context())); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "stats": stats})
}

// handleFeed serves whatever sources answered; it fails only when both did not.
func (s *HTTPServer) handleFeed(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Feed.Daily(r.Context())
	if err != nil {
		s.log.Error().Err(err).Str("request_id", requestIDFrom(r.Context())).Msg("feed unavailable")
		writeError(w, http.StatusServiceUnavailable, "feed unavailable")
		return
	}
	items := result.Items
	if items == nil {
		items = []models.FeedItem{}
	}
	failed := result.Failed
	if failed == nil {
		failed = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "items": items, "failedSources": failed})
}
