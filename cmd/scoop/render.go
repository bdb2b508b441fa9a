package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"playchrono/internal/calendar"
	"playchrono/internal/feed"
	"playchrono/internal/models"
)

func renderFeed(w io.Writer, res feed.Result) {
	if len(res.Items) == 0 {
		fmt.Fprintln(w, "Nothing on the scoop today.")
	}
	for _, item := range res.Items {
		switch item.Type {
		case models.FeedNotice:
			n := item.Notice
			fmt.Fprintf(w, "[notice] %s\n  %s\n  by %s, %s\n", n.Title, n.Message, n.CreatedBy.Name, n.CreatedAt.Format("Jan 2 15:04"))
		case models.FeedBooking:
			b := item.Booking
			fmt.Fprintf(w, "[booking] %s at %s\n  %s, %s\n", b.TeamName, b.GroundName, b.SportType, strings.Join(b.SelectedSlots, ", "))
		}
	}
	for _, src := range res.Failed {
		fmt.Fprintf(w, "! %s could not be loaded\n", src)
	}
}

// renderCalendar prints a Monday-first grid. Days inside window carry a '*'.
func renderCalendar(w io.Writer, year int, month time.Month, cells []calendar.DayCell, window calendar.Range) {
	fmt.Fprintf(w, "%s %d\n", month, year)
	fmt.Fprintln(w, " Mo  Tu  We  Th  Fr  Sa  Su")
	for _, week := range calendar.Weeks(cells) {
		var sb strings.Builder
		for _, cell := range week {
			switch {
			case cell.Empty:
				sb.WriteString("    ")
			case calendar.Selectable(cell, window):
				fmt.Fprintf(&sb, "%3d*", cell.Day)
			default:
				fmt.Fprintf(&sb, "%3d ", cell.Day)
			}
		}
		fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))
	}
}

func renderAvailability(w io.Writer, sport string, date calendar.Date, grounds []models.GroundAvailability) {
	if len(grounds) == 0 {
		fmt.Fprintf(w, "No grounds offer %s on %s.\n", sport, date)
		return
	}
	for _, g := range grounds {
		fmt.Fprintf(w, "%s (%d available)\n", g.GroundName, g.AvailableCount)
		for _, s := range g.Slots {
			mark := " "
			if s.Status == models.SlotAvailable {
				mark = "+"
			}
			fmt.Fprintf(w, "  %s %s\n", mark, s.Time)
		}
	}
}

func exportFileName(from, to calendar.Date) string {
	return fmt.Sprintf("bookings_%s_%s.xlsx", from, to)
}
