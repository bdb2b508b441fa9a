package models

import "time"

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	SportType    string    `json:"sport,omitempty"`
	TeamName     string    `json:"teamName,omitempty"`
	ProfileImage string    `json:"profileImage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsCaptain() bool { return u.Role == RoleCaptain }

// Session is the server-side record behind a bearer token. It exists from
// login until logout or expiry.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"uid"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	SportType string    `json:"sportType,omitempty"`
	TeamName  string    `json:"teamName,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

func (s *Session) HasRole(roles ...string) bool {
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}

// AdminStats is the dashboard summary.
type AdminStats struct {
	TotalUsers       int `json:"totalUsers"`
	TotalCaptains    int `json:"totalCaptains"`
	TotalStudents    int `json:"totalStudents"`
	TotalBookings    int `json:"totalBookings"`
	TodayBookings    int `json:"todayBookings"`
	UpcomingBookings int `json:"upcomingBookings"`
	TotalNotices     int `json:"totalNotices"`
	Grounds          int `json:"grounds"`
}
