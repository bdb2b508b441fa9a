package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"playchrono/internal/config"
	"playchrono/internal/domain"
	"playchrono/internal/metrics"
	"playchrono/internal/models"
	"playchrono/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Services bundles what the HTTP API serves.
type Services struct {
	Availability *service.AvailabilityService
	Bookings     *service.BookingService
	Notices      *service.NoticeService
	Users        *service.UserService
	Auth         *service.AuthService
	Stats        *service.StatsService
	Feed         *service.FeedService
	// Health reports storage readiness for /healthz; nil means always ready.
	Health func(ctx context.Context) error
}

// HTTPServer exposes the booking API used by the mobile app and the SDK.
type HTTPServer struct {
	cfg     *config.APIConfig
	svc     Services
	server  *http.Server
	limiter *rateLimiter
	log     zerolog.Logger
}

func NewHTTPServer(cfg *config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:     cfg,
		svc:     svc,
		limiter: newRateLimiter(cfg.RateLimit),
		log:     zerolog.Nop(),
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	mux := http.NewServeMux()
	srv.routes(mux)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.requestID(srv.logging(srv.rateLimit(mux))),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	s.handle(mux, "GET /healthz", s.handleHealth)
	s.handle(mux, "GET /api/grounds", s.handleGrounds)
	s.handle(mux, "GET /api/feed", s.handleFeed)

	s.handle(mux, "GET /api/bookings/available", s.handleAvailable)
	s.handle(mux, "GET /api/bookings/today", s.handleTodayBookings)
	s.handle(mux, "POST /api/bookings", s.authenticated(s.handleCreateBooking))
	s.handle(mux, "GET /api/bookings/my-bookings/{captainId}", s.authenticated(s.handleMyBookings))
	s.handle(mux, "GET /api/bookings/all", s.authenticated(requireRole(s.handleAllBookings, models.RoleAdmin)))
	s.handle(mux, "GET /api/receipts/{id}", s.authenticated(s.handleReceipt))
	s.handle(mux, "DELETE /api/bookings/{id}", s.authenticated(s.handleCancelBooking))

	s.handle(mux, "GET /api/notices", s.handleListNotices)
	s.handle(mux, "POST /api/notices", s.authenticated(s.handleCreateNotice))

	s.handle(mux, "GET /api/users/captains", s.authenticated(requireRole(s.handleCaptains, models.RoleAdmin)))
	s.handle(mux, "POST /api/users/check-email", s.handleCheckEmail)

	s.handle(mux, "POST /api/auth/login", s.handleLogin)
	s.handle(mux, "POST /api/auth/register", s.handleRegister)
	s.handle(mux, "POST /api/auth/logout", s.authenticated(s.handleLogout))

	s.handle(mux, "GET /api/admin/stats", s.authenticated(requireRole(s.handleStats, models.RoleAdmin)))
	s.handle(mux, "GET /api/admin/export/bookings", s.authenticated(requireRole(s.handleExportBookings, models.RoleAdmin)))
}

// handle registers h and counts requests per route pattern.
func (s *HTTPServer) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		metrics.IncHTTP(pattern)
		h(w, r)
	})
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Addr() string {
	return s.server.Addr
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeySession
)

const requestIDHeader = "X-Request-ID"

func (s *HTTPServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

func (s *HTTPServer) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.log.Info().
			Str("request_id", requestIDFrom(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *HTTPServer) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter.enabled() && !s.limiter.getLimiter(clientKey(r)).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey buckets by remote host. Request headers are never trusted here.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeServiceError maps domain errors onto HTTP statuses. Unexpected errors
// are logged and reported as a generic 500.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case domain.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case domain.IsConflict(err):
		body := map[string]any{"error": err.Error()}
		if slots := domain.ConflictingSlots(err); len(slots) > 0 {
			body["conflictingSlots"] = slots
		}
		writeJSON(w, http.StatusConflict, body)
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		s.log.Error().
			Err(err).
			Str("request_id", requestIDFrom(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return domain.ValidationError{Msg: "request body is required"}
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.ValidationError{Msg: "invalid JSON body", Err: err}
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
