package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"playchrono/internal/bookingview"
	"playchrono/internal/calendar"
	"playchrono/internal/database"
	"playchrono/internal/domain"
	"playchrono/internal/events"
	"playchrono/internal/metrics"
	"playchrono/internal/models"

	"github.com/rs/zerolog"
)

const (
	SyncTaskUpsert = "upsert"
	SyncTaskDelete = "delete"
)

type BookingService struct {
	catalog        domain.GroundCatalog
	repo           domain.BookingRepository
	cache          domain.AvailabilityCache
	eventBus       domain.EventPublisher
	sheetsWorker   domain.SyncWorker
	clock          Clock
	maxAdvanceDays int
	logger         *zerolog.Logger
}

func NewBookingService(
	catalog domain.GroundCatalog,
	repo domain.BookingRepository,
	cache domain.AvailabilityCache,
	eventBus domain.EventPublisher,
	sheetsWorker domain.SyncWorker,
	clock Clock,
	maxAdvanceDays int,
	logger *zerolog.Logger,
) *BookingService {
	if maxAdvanceDays <= 0 {
		maxAdvanceDays = 30
	}
	return &BookingService{
		catalog:        catalog,
		repo:           repo,
		cache:          cache,
		eventBus:       eventBus,
		sheetsWorker:   sheetsWorker,
		clock:          clock,
		maxAdvanceDays: maxAdvanceDays,
		logger:         logger,
	}
}

// Today returns the current date in the campus timezone.
func (s *BookingService) Today() calendar.Date {
	return s.clock.Today()
}

// CreateBooking claims the requested slots for actor. Captains may only book
// for themselves; admins may book on behalf of anyone. The whole request is
// rejected with a ConflictError when any slot is already taken.
func (s *BookingService) CreateBooking(ctx context.Context, actor *models.Session, req models.BookingRequest) (*models.Booking, error) {
	if actor == nil {
		return nil, domain.ErrUnauthorized
	}
	if !actor.HasRole(models.RoleCaptain, models.RoleAdmin) {
		return nil, domain.ErrForbidden
	}

	s.fillRequester(actor, &req)
	if actor.Role == models.RoleCaptain && req.CaptainID != actor.UserID {
		return nil, domain.ErrForbidden
	}

	ground, slots, err := s.validateRequest(req)
	if err != nil {
		return nil, err
	}

	slotIDs := make([]string, len(slots))
	labels := make([]string, len(slots))
	for i, slot := range slots {
		slotIDs[i] = slot.ID
		labels[i] = slot.Label()
	}

	booking := &models.Booking{
		CaptainID:     req.CaptainID,
		CaptainName:   req.CaptainName,
		TeamName:      req.TeamName,
		SportType:     canonicalSport(ground, req.SportType),
		GroundID:      ground.ID,
		GroundName:    ground.Name,
		Date:          req.Date,
		SelectedSlots: labels,
		Purpose:       req.Purpose,
		Status:        models.StatusConfirmed,
	}

	if err := s.repo.CreateBookingWithLock(ctx, booking, slotIDs); err != nil {
		var taken *database.SlotsTakenError
		if errors.As(err, &taken) {
			metrics.IncSlotConflict(ground.ID)
			return nil, domain.ConflictError{
				Resource: "booking",
				Slots:    slotLabels(ground, taken.SlotIDs),
				Err:      err,
			}
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	metrics.IncBookingCreated(ground.ID)
	s.logger.Info().
		Str("booking_id", booking.ID).
		Str("ground_id", booking.GroundID).
		Str("date", booking.Date.String()).
		Strs("slots", booking.SelectedSlots).
		Msg("booking created")

	s.invalidate(ctx, booking.Date)
	s.publishEvent(events.EventBookingCreated, booking, actor)
	s.enqueueSync(ctx, booking, SyncTaskUpsert)

	return booking, nil
}

func (s *BookingService) fillRequester(actor *models.Session, req *models.BookingRequest) {
	if req.CaptainID != "" && req.CaptainID != actor.UserID {
		return
	}
	req.CaptainID = actor.UserID
	if strings.TrimSpace(req.CaptainName) == "" {
		req.CaptainName = actor.Username
	}
	if strings.TrimSpace(req.TeamName) == "" {
		req.TeamName = actor.TeamName
	}
	if strings.TrimSpace(req.SportType) == "" {
		req.SportType = actor.SportType
	}
}

func (s *BookingService) validateRequest(req models.BookingRequest) (models.Ground, []models.SlotDef, error) {
	if strings.TrimSpace(req.CaptainID) == "" {
		return models.Ground{}, nil, domain.ValidationError{Field: "captainId", Msg: "captain is required"}
	}
	if strings.TrimSpace(req.CaptainName) == "" {
		return models.Ground{}, nil, domain.ValidationError{Field: "captainName", Msg: "captain name is required"}
	}
	if strings.TrimSpace(req.SportType) == "" {
		return models.Ground{}, nil, domain.ValidationError{Field: "sportType", Msg: "sport is required"}
	}
	if strings.TrimSpace(req.Purpose) == "" {
		return models.Ground{}, nil, domain.ValidationError{Field: "purpose", Msg: "select a purpose"}
	}
	if len(req.SelectedSlots) == 0 {
		return models.Ground{}, nil, domain.ValidationError{Field: "selectedSlots", Msg: "select at least one slot"}
	}
	if req.Date.IsZero() {
		return models.Ground{}, nil, domain.ValidationError{Field: "date", Msg: "date is required"}
	}

	ground, ok := s.catalog.GroundByID(req.GroundID)
	if !ok {
		return models.Ground{}, nil, domain.ValidationError{Field: "groundId", Msg: fmt.Sprintf("unknown ground %q", req.GroundID)}
	}
	if !ground.Serves(req.SportType) {
		return models.Ground{}, nil, domain.ValidationError{Field: "sportType", Msg: fmt.Sprintf("%s is not played at %s", req.SportType, ground.Name)}
	}

	today := s.clock.Today()
	if req.Date.Before(today) {
		return models.Ground{}, nil, domain.ValidationError{Field: "date", Msg: "date is in the past"}
	}
	if req.Date.After(today.AddDays(s.maxAdvanceDays)) {
		return models.Ground{}, nil, domain.ValidationError{Field: "date", Msg: fmt.Sprintf("bookings open %d days ahead", s.maxAdvanceDays)}
	}
	if len(ground.SlotsOn(req.Date.Weekday())) == 0 {
		return models.Ground{}, nil, domain.ValidationError{Field: "date", Msg: fmt.Sprintf("%s is closed on %s", ground.Name, req.Date.Weekday())}
	}

	slots, err := resolveSlots(ground, req.SelectedSlots)
	if err != nil {
		return models.Ground{}, nil, err
	}
	return ground, slots, nil
}

// resolveSlots maps requested ids or labels to configured slots in ground order.
func resolveSlots(ground models.Ground, refs []string) ([]models.SlotDef, error) {
	wanted := make(map[string]bool, len(refs))
	for _, ref := range refs {
		slot, ok := ground.FindSlot(ref)
		if !ok {
			return nil, domain.ValidationError{Field: "selectedSlots", Msg: fmt.Sprintf("unknown slot %q", ref)}
		}
		if wanted[slot.ID] {
			return nil, domain.ValidationError{Field: "selectedSlots", Msg: fmt.Sprintf("slot %s selected twice", slot.Label())}
		}
		wanted[slot.ID] = true
	}

	slots := make([]models.SlotDef, 0, len(wanted))
	for _, slot := range ground.Slots {
		if wanted[slot.ID] {
			slots = append(slots, slot)
		}
	}
	return slots, nil
}

func slotLabels(ground models.Ground, ids []string) []string {
	labels := make([]string, 0, len(ids))
	for _, id := range ids {
		if slot, ok := ground.FindSlot(id); ok {
			labels = append(labels, slot.Label())
		} else {
			labels = append(labels, id)
		}
	}
	return labels
}

func canonicalSport(ground models.Ground, sport string) string {
	for _, s := range ground.Sports {
		if strings.EqualFold(s, sport) {
			return s
		}
	}
	return sport
}

// TodayBookings lists bookings dated today.
func (s *BookingService) TodayBookings(ctx context.Context) ([]models.Booking, error) {
	bookings, err := s.repo.GetBookingsByDate(ctx, s.clock.Today())
	if err != nil {
		return nil, fmt.Errorf("today's bookings: %w", err)
	}
	return bookings, nil
}

// MyBookings returns a captain's bookings classified and arranged for display.
func (s *BookingService) MyBookings(ctx context.Context, actor *models.Session, captainID string) ([]bookingview.Entry, error) {
	if actor == nil {
		return nil, domain.ErrUnauthorized
	}
	if actor.UserID != captainID && !actor.HasRole(models.RoleAdmin) {
		return nil, domain.ErrForbidden
	}

	bookings, err := s.repo.GetBookingsByCaptain(ctx, captainID)
	if err != nil {
		return nil, fmt.Errorf("captain bookings: %w", err)
	}
	return bookingview.Arrange(bookings, s.clock.Today()), nil
}

func (s *BookingService) AllBookings(ctx context.Context) ([]models.Booking, error) {
	bookings, err := s.repo.GetAllBookings(ctx)
	if err != nil {
		return nil, fmt.Errorf("all bookings: %w", err)
	}
	return bookings, nil
}

// BookingsBetween lists bookings in the inclusive range.
func (s *BookingService) BookingsBetween(ctx context.Context, from, to calendar.Date) ([]models.Booking, error) {
	if from.IsZero() || to.IsZero() {
		return nil, domain.ValidationError{Field: "range", Msg: "from and to are required"}
	}
	if to.Before(from) {
		return nil, domain.ValidationError{Field: "range", Msg: "from must not be after to"}
	}
	bookings, err := s.repo.GetBookingsByDateRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("bookings in range: %w", err)
	}
	return bookings, nil
}

// GetBooking returns a booking visible to actor: its captain or an admin.
func (s *BookingService) GetBooking(ctx context.Context, actor *models.Session, id string) (*models.Booking, error) {
	if actor == nil {
		return nil, domain.ErrUnauthorized
	}
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, mapRepoError("booking", err)
	}
	if booking.CaptainID != actor.UserID && !actor.HasRole(models.RoleAdmin) {
		return nil, domain.ErrForbidden
	}
	return booking, nil
}

// CancelBooking hard-deletes a booking, releasing its slots.
func (s *BookingService) CancelBooking(ctx context.Context, actor *models.Session, id string) (*models.Booking, error) {
	booking, err := s.GetBooking(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	removed, err := s.repo.DeleteBooking(ctx, id)
	if err != nil {
		return nil, mapRepoError("booking", err)
	}

	s.logger.Info().Str("booking_id", id).Str("by", actor.UserID).Msg("booking canceled")
	s.invalidate(ctx, booking.Date)
	s.publishEvent(events.EventBookingCanceled, removed, actor)
	s.enqueueSync(ctx, removed, SyncTaskDelete)

	return removed, nil
}

func (s *BookingService) invalidate(ctx context.Context, date calendar.Date) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, date); err != nil {
		s.logger.Error().Err(err).Str("date", date.String()).Msg("availability cache invalidate error")
	}
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, actor *models.Session) {
	if s.eventBus == nil {
		return
	}

	payload := events.NewBookingPayload(booking, actor.UserID, actor.Username)
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, booking *models.Booking, taskType string) {
	if s.sheetsWorker == nil {
		return
	}

	if err := s.sheetsWorker.EnqueueTask(ctx, taskType, booking); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}

func mapRepoError(resource string, err error) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return domain.NotFoundError{Resource: resource, Err: err}
	case errors.Is(err, database.ErrEmailTaken):
		return domain.ConflictError{Resource: resource, Msg: "email already registered", Err: err}
	default:
		return fmt.Errorf("%s: %w", resource, err)
	}
}
