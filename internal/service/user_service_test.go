package service

import (
	"context"
	"testing"

	"playchrono/internal/calendar"
	"playchrono/internal/domain"
	"playchrono/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService(t *testing.T) {
	ctx := context.Background()
	repo := new(mockUserRepo)
	svc := NewUserService(repo, testLogger())

	repo.On("GetUsersByRole", ctx, models.RoleCaptain).Return([]models.User{{ID: "cap-1"}}, nil)
	captains, err := svc.Captains(ctx)
	require.NoError(t, err)
	assert.Len(t, captains, 1)

	repo.On("EmailExists", ctx, "ravi@campus.edu").Return(true, nil)
	exists, err := svc.EmailExists(ctx, " Ravi@Campus.edu")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = svc.EmailExists(ctx, "nope")
	assert.True(t, domain.IsValidation(err))
}

func TestStatsService(t *testing.T) {
	ctx := context.Background()
	repo := new(mockStatsRepo)
	svc := NewStatsService(repo, testCatalog(), fixedClock("2025-06-15"))

	repo.On("CountUsersByRole", ctx).Return(map[string]int{
		models.RoleCaptain: 4, models.RoleStudent: 10, models.RoleAdmin: 1,
	}, nil)
	repo.On("CountBookings", ctx, calendar.MustParseDate("2025-06-15")).Return(20, 3, 7, nil)
	repo.On("CountNotices", ctx).Return(5, nil)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.AdminStats{
		TotalUsers:       15,
		TotalCaptains:    4,
		TotalStudents:    10,
		TotalBookings:    20,
		TodayBookings:    3,
		UpcomingBookings: 7,
		TotalNotices:     5,
		Grounds:          3,
	}, stats)
}
