// Package bookingview derives display statuses and ordering for booking lists.
package bookingview

import (
	"sort"
	"strings"

	"playchrono/internal/calendar"
	"playchrono/internal/models"
)

// Entry is a booking with its derived display status.
type Entry struct {
	models.Booking
	DisplayStatus string `json:"displayStatus"`
}

// Classify returns DONE for bookings dated before today. Otherwise it returns
// the stored status in upper case, CONFIRMED when unset. Same-day bookings are
// never DONE.
func Classify(b models.Booking, today calendar.Date) string {
	if b.Date.Before(today) {
		return models.DisplayDone
	}
	status := strings.ToUpper(strings.TrimSpace(b.Status))
	if status == "" {
		return models.DisplayConfirmed
	}
	return status
}

// Arrange classifies bookings and orders them for display: every non-DONE
// entry precedes every DONE entry, each group by date ascending. Ties keep
// their input order.
func Arrange(bookings []models.Booking, today calendar.Date) []Entry {
	entries := make([]Entry, len(bookings))
	for i, b := range bookings {
		entries[i] = Entry{Booking: b, DisplayStatus: Classify(b, today)}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		doneI := entries[i].DisplayStatus == models.DisplayDone
		doneJ := entries[j].DisplayStatus == models.DisplayDone
		if doneI != doneJ {
			return !doneI
		}
		return entries[i].Date.Before(entries[j].Date)
	})
	return entries
}

// Partition splits arranged entries into upcoming and done.
func Partition(entries []Entry) (upcoming, done []Entry) {
	for _, e := range entries {
		if e.DisplayStatus == models.DisplayDone {
			done = append(done, e)
		} else {
			upcoming = append(upcoming, e)
		}
	}
	return upcoming, done
}
