package service

import (
	"context"
	"io"
	"time"

	"playchrono/internal/calendar"
	"playchrono/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func fixedClock(date string) Clock {
	d := calendar.MustParseDate(date)
	now := time.Date(d.Year, d.Month, d.Day, 9, 30, 0, 0, time.UTC)
	return Clock{Now: func() time.Time { return now }, Location: time.UTC}
}

type staticCatalog []models.Ground

func (c staticCatalog) Grounds() []models.Ground { return c }

func (c staticCatalog) GroundByID(id string) (models.Ground, bool) {
	for _, g := range c {
		if g.ID == id {
			return g, true
		}
	}
	return models.Ground{}, false
}

func testCatalog() staticCatalog {
	return staticCatalog{
		{
			ID:     "main-field",
			Name:   "Main Field",
			Sports: []string{"Cricket", "Football"},
			Slots: []models.SlotDef{
				{ID: "s1", Start: "06:00", End: "07:30"},
				{ID: "s2", Start: "14:00", End: "15:30"},
				{ID: "s3", Start: "16:00", End: "17:30"},
			},
		},
		{
			ID:             "nets",
			Name:           "Cricket Nets",
			Sports:         []string{"Cricket"},
			Slots:          []models.SlotDef{{ID: "n1", Start: "07:00", End: "08:00"}},
			ClosedWeekdays: []string{"sunday"},
		},
		{
			ID:     "court",
			Name:   "Indoor Court",
			Sports: []string{"Badminton", "Basketball"},
			Slots:  []models.SlotDef{{ID: "c1", Start: "18:00", End: "19:00"}},
		},
	}
}

type mockBookingRepo struct {
	mock.Mock
}

func (m *mockBookingRepo) BookedSlots(ctx context.Context, date calendar.Date) (map[string]map[string]bool, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]map[string]bool), args.Error(1)
}

func (m *mockBookingRepo) CreateBookingWithLock(ctx context.Context, b *models.Booking, slotIDs []string) error {
	return m.Called(ctx, b, slotIDs).Error(0)
}

func (m *mockBookingRepo) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockBookingRepo) GetBookingsByDate(ctx context.Context, date calendar.Date) ([]models.Booking, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockBookingRepo) GetBookingsByCaptain(ctx context.Context, captainID string) ([]models.Booking, error) {
	args := m.Called(ctx, captainID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockBookingRepo) GetBookingsByDateRange(ctx context.Context, from, to calendar.Date) ([]models.Booking, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockBookingRepo) GetAllBookings(ctx context.Context) ([]models.Booking, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *mockBookingRepo) DeleteBooking(ctx context.Context, id string) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) CreateUser(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockUserRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepo) GetUsersByRole(ctx context.Context, role string) ([]models.User, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

type mockNoticeRepo struct {
	mock.Mock
}

func (m *mockNoticeRepo) CreateNotice(ctx context.Context, n *models.Notice) error {
	return m.Called(ctx, n).Error(0)
}

func (m *mockNoticeRepo) ListNotices(ctx context.Context) ([]models.Notice, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Notice), args.Error(1)
}

type mockStatsRepo struct {
	mock.Mock
}

func (m *mockStatsRepo) CountUsersByRole(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *mockStatsRepo) CountBookings(ctx context.Context, today calendar.Date) (int, int, int, error) {
	args := m.Called(ctx, today)
	return args.Int(0), args.Int(1), args.Int(2), args.Error(3)
}

func (m *mockStatsRepo) CountNotices(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockSessionStore struct {
	mock.Mock
}

func (m *mockSessionStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *mockSessionStore) SaveSession(ctx context.Context, s *models.Session) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockSessionStore) DeleteSession(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockSessionStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, date calendar.Date, sport string) ([]models.GroundAvailability, int64, bool, error) {
	args := m.Called(ctx, date, sport)
	var grounds []models.GroundAvailability
	if args.Get(0) != nil {
		grounds = args.Get(0).([]models.GroundAvailability)
	}
	return grounds, args.Get(1).(int64), args.Bool(2), args.Error(3)
}

func (m *mockCache) Set(ctx context.Context, date calendar.Date, sport string, gen int64, grounds []models.GroundAvailability) error {
	return m.Called(ctx, date, sport, gen, grounds).Error(0)
}

func (m *mockCache) Invalidate(ctx context.Context, date calendar.Date) error {
	return m.Called(ctx, date).Error(0)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

type mockSyncWorker struct {
	mock.Mock
}

func (m *mockSyncWorker) EnqueueTask(ctx context.Context, taskType string, booking *models.Booking) error {
	return m.Called(ctx, taskType, booking).Error(0)
}
