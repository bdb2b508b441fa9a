package service

import (
	"context"
	"fmt"
	"strings"

	"playchrono/internal/calendar"
	"playchrono/internal/domain"
	"playchrono/internal/models"

	"github.com/rs/zerolog"
)

type AvailabilityService struct {
	catalog  domain.GroundCatalog
	bookings domain.BookingRepository
	cache    domain.AvailabilityCache
	logger   *zerolog.Logger
}

func NewAvailabilityService(catalog domain.GroundCatalog, bookings domain.BookingRepository, cache domain.AvailabilityCache, logger *zerolog.Logger) *AvailabilityService {
	return &AvailabilityService{
		catalog:  catalog,
		bookings: bookings,
		cache:    cache,
		logger:   logger,
	}
}

// Grounds lists the configured grounds.
func (s *AvailabilityService) Grounds() []models.Ground {
	return s.catalog.Grounds()
}

// GetAvailability lists every ground serving sport with the status of each of
// its slots on date. Grounds that are closed that day are listed with no slots.
// An unknown sport yields an empty list.
func (s *AvailabilityService) GetAvailability(ctx context.Context, sport string, date calendar.Date) ([]models.GroundAvailability, error) {
	sport = strings.TrimSpace(sport)
	if sport == "" {
		return nil, domain.ValidationError{Field: "sport", Msg: "sport is required"}
	}
	if date.IsZero() {
		return nil, domain.ValidationError{Field: "date", Msg: "date is required"}
	}

	var (
		gen       int64
		cacheable bool
	)
	if s.cache != nil {
		cached, g, hit, err := s.cache.Get(ctx, date, sport)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Str("date", date.String()).Msg("availability cache read failed")
		case hit:
			return cached, nil
		default:
			gen, cacheable = g, true
		}
	}

	booked, err := s.bookings.BookedSlots(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load booked slots: %w", err)
	}

	grounds := make([]models.GroundAvailability, 0)
	for _, g := range s.catalog.Grounds() {
		if !g.Serves(sport) {
			continue
		}
		grounds = append(grounds, resolveGround(g, date, booked[g.ID]))
	}

	if cacheable {
		if err := s.cache.Set(ctx, date, sport, gen, grounds); err != nil {
			s.logger.Warn().Err(err).Str("date", date.String()).Msg("availability cache write failed")
		}
	}
	return grounds, nil
}

func resolveGround(g models.Ground, date calendar.Date, booked map[string]bool) models.GroundAvailability {
	defs := g.SlotsOn(date.Weekday())
	ga := models.GroundAvailability{
		GroundID:   g.ID,
		GroundName: g.Name,
		Slots:      make([]models.Slot, 0, len(defs)),
	}
	for _, def := range defs {
		status := models.SlotAvailable
		if booked[def.ID] {
			status = models.SlotBooked
		}
		ga.Slots = append(ga.Slots, models.Slot{
			ID:     def.ID,
			Time:   def.Label(),
			Start:  def.Start,
			End:    def.End,
			Status: status,
		})
	}
	ga.AvailableCount = ga.CountAvailable()
	return ga
}
