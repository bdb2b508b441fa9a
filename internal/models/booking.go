package models

import (
	"time"

	"playchrono/internal/calendar"
)

// Booking is a confirmed claim on one or more slots of a ground for a date.
// Requester identity is captured at booking time.
type Booking struct {
	ID            string        `json:"bookingId"`
	CaptainID     string        `json:"captainId"`
	CaptainName   string        `json:"captainName"`
	TeamName      string        `json:"teamName"`
	SportType     string        `json:"sportType"`
	GroundID      string        `json:"groundId"`
	GroundName    string        `json:"groundName"`
	Date          calendar.Date `json:"date"`
	SelectedSlots []string      `json:"selectedSlots"`
	Purpose       string        `json:"purpose"`
	Status        string        `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// BookingRequest is the input of the booking writer. SelectedSlots entries
// may be slot ids or time labels.
type BookingRequest struct {
	CaptainID     string        `json:"captainId"`
	CaptainName   string        `json:"captainName"`
	TeamName      string        `json:"teamName"`
	SportType     string        `json:"sportType"`
	GroundID      string        `json:"groundId"`
	GroundName    string        `json:"groundName"`
	Date          calendar.Date `json:"date"`
	SelectedSlots []string      `json:"selectedSlots"`
	Purpose       string        `json:"purpose"`
}
