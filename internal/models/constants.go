package models

const (
	StatusConfirmed = "confirmed"
)

// Display statuses derived for booking lists.
const (
	DisplayConfirmed = "CONFIRMED"
	DisplayDone      = "DONE"
)

const (
	RoleGuest   = "guest"
	RoleStudent = "student"
	RoleCaptain = "captain"
	RoleAdmin   = "admin"
)

const (
	SlotAvailable = "available"
	SlotBooked    = "booked"
)

const (
	FeedNotice  = "notice"
	FeedBooking = "booking"
)

const (
	SyncStatusPending   = "pending"
	SyncStatusRetry     = "retry"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

// DefaultSports lists the sport categories offered on campus.
var DefaultSports = []string{"Cricket", "Football", "Basketball", "Badminton"}

// DefaultPurposes lists the preset booking purposes.
var DefaultPurposes = []string{"Practice", "Friendly Match", "Tournament"}
