package export

import (
	"bytes"
	"errors"
	"fmt"

	"playchrono/internal/models"

	"github.com/phpdave11/gofpdf"
)

// BookingReceipt renders a one-page PDF confirmation for a booking.
func BookingReceipt(b *models.Booking) ([]byte, error) {
	if b == nil || b.ID == "" {
		return nil, errors.New("receipt: booking id is required")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Booking "+b.ID, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "PlayChrono booking receipt")
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "", 12)
	lines := [][2]string{
		{"Booking ID", b.ID},
		{"Status", safe(b.Status, models.DisplayConfirmed)},
		{"Date", b.Date.String()},
		{"Ground", safe(b.GroundName, b.GroundID)},
		{"Sport", safe(b.SportType, "-")},
		{"Team", safe(b.TeamName, "-")},
		{"Captain", safe(b.CaptainName, "-")},
		{"Purpose", safe(b.Purpose, "-")},
	}
	for _, l := range lines {
		pdf.Cell(0, 7, tr(fmt.Sprintf("%-12s: %s", l[0], l[1])))
		pdf.Ln(7)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Slots")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 12)
	for i, slot := range b.SelectedSlots {
		pdf.Cell(0, 7, tr(fmt.Sprintf("%d) %s", i+1, slot)))
		pdf.Ln(7)
	}

	if !b.CreatedAt.IsZero() {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.Cell(0, 6, "Booked at "+b.CreatedAt.Format("2006-01-02 15:04 MST"))
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

func safe(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
