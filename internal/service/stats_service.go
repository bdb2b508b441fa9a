package service

import (
	"context"
	"fmt"

	"playchrono/internal/domain"
	"playchrono/internal/models"
)

type StatsService struct {
	repo    domain.StatsRepository
	catalog domain.GroundCatalog
	clock   Clock
}

func NewStatsService(repo domain.StatsRepository, catalog domain.GroundCatalog, clock Clock) *StatsService {
	return &StatsService{repo: repo, catalog: catalog, clock: clock}
}

func (s *StatsService) Stats(ctx context.Context) (*models.AdminStats, error) {
	roles, err := s.repo.CountUsersByRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	total, onDay, upcoming, err := s.repo.CountBookings(ctx, s.clock.Today())
	if err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}
	notices, err := s.repo.CountNotices(ctx)
	if err != nil {
		return nil, fmt.Errorf("count notices: %w", err)
	}

	stats := &models.AdminStats{
		TotalCaptains:    roles[models.RoleCaptain],
		TotalStudents:    roles[models.RoleStudent],
		TotalBookings:    total,
		TodayBookings:    onDay,
		UpcomingBookings: upcoming,
		TotalNotices:     notices,
		Grounds:          len(s.catalog.Grounds()),
	}
	for _, n := range roles {
		stats.TotalUsers += n
	}
	return stats, nil
}
