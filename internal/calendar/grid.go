package calendar

import (
	"fmt"
	"time"
)

// DayCell is one position of a month grid. Empty cells pad the first week.
type DayCell struct {
	Empty bool `json:"empty,omitempty"`
	Day   int  `json:"day,omitempty"`
	Date  Date `json:"date"`
}

// GenerateMonthGrid lays out a month on a Monday-first week. Leading empty
// cells align the 1st with its weekday; no trailing padding is added.
func GenerateMonthGrid(year int, month time.Month) ([]DayCell, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("invalid month %d", month)
	}

	offset := LeadingBlanks(year, month)
	days := DaysIn(month, year)

	cells := make([]DayCell, 0, offset+days)
	for i := 0; i < offset; i++ {
		cells = append(cells, DayCell{Empty: true})
	}
	for day := 1; day <= days; day++ {
		cells = append(cells, DayCell{
			Day:  day,
			Date: Date{Year: year, Month: month, Day: day},
		})
	}
	return cells, nil
}

// LeadingBlanks is the number of padding cells before the 1st on a
// Monday-first week.
func LeadingBlanks(year int, month time.Month) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Weekday()
	return (int(first) + 6) % 7
}

// DaysIn returns the length of month in the Gregorian calendar.
func DaysIn(m time.Month, year int) int {
	switch m {
	case time.February:
		if IsLeap(year) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

func IsLeap(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

// Weeks splits cells into rows of seven. The last row may be shorter.
func Weeks(cells []DayCell) [][]DayCell {
	var rows [][]DayCell
	for start := 0; start < len(cells); start += 7 {
		end := start + 7
		if end > len(cells) {
			end = len(cells)
		}
		rows = append(rows, cells[start:end])
	}
	return rows
}

// Selectable reports whether a non-empty cell falls inside r.
func Selectable(cell DayCell, r Range) bool {
	return !cell.Empty && r.Contains(cell.Date)
}
