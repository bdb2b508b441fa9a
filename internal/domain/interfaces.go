package domain

import (
	"context"
	"time"

	"playchrono/internal/calendar"
	"playchrono/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type GroundCatalog interface {
	Grounds() []models.Ground
	GroundByID(id string) (models.Ground, bool)
}

type BookingRepository interface {
	BookedSlots(ctx context.Context, date calendar.Date) (map[string]map[string]bool, error)
	CreateBookingWithLock(ctx context.Context, booking *models.Booking, slotIDs []string) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	GetBookingsByDate(ctx context.Context, date calendar.Date) ([]models.Booking, error)
	GetBookingsByCaptain(ctx context.Context, captainID string) ([]models.Booking, error)
	GetBookingsByDateRange(ctx context.Context, from, to calendar.Date) ([]models.Booking, error)
	GetAllBookings(ctx context.Context) ([]models.Booking, error)
	DeleteBooking(ctx context.Context, id string) (*models.Booking, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	GetUsersByRole(ctx context.Context, role string) ([]models.User, error)
}

type NoticeRepository interface {
	CreateNotice(ctx context.Context, notice *models.Notice) error
	ListNotices(ctx context.Context) ([]models.Notice, error)
}

type StatsRepository interface {
	CountUsersByRole(ctx context.Context) (map[string]int, error)
	CountBookings(ctx context.Context, today calendar.Date) (total, onDay, upcoming int, err error)
	CountNotices(ctx context.Context) (int, error)
}

// SessionStore keeps login sessions and login attempt counters.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (*models.Session, error)
	SaveSession(ctx context.Context, session *models.Session) error
	DeleteSession(ctx context.Context, id string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// AvailabilityCache holds resolved listings per date and sport. Get reports
// the date's generation, and Set stores a listing only while that generation
// is still current, so a listing resolved across an Invalidate is dropped.
type AvailabilityCache interface {
	Get(ctx context.Context, date calendar.Date, sport string) (grounds []models.GroundAvailability, gen int64, hit bool, err error)
	Set(ctx context.Context, date calendar.Date, sport string, gen int64, grounds []models.GroundAvailability) error
	Invalidate(ctx context.Context, date calendar.Date) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, booking *models.Booking) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}
