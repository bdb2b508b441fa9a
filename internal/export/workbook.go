// Package export renders bookings as spreadsheets and printable receipts.
package export

import (
	"fmt"
	"sort"
	"strings"

	"playchrono/internal/calendar"
	"playchrono/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	bookingsSheet = "Bookings"
	summarySheet  = "Summary"
)

var bookingColumns = []string{
	"Date", "Ground", "Slots", "Sport", "Team", "Captain", "Purpose", "Status", "Booking ID", "Created",
}

// BookingsWorkbook builds an xlsx file listing bookings between from and to
// with a per-day slot count summary.
func BookingsWorkbook(bookings []models.Booking, from, to calendar.Date) ([]byte, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("export range: %s is after %s", from, to)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(bookingsSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := writeBookingRows(f, bookings, from, to); err != nil {
		return nil, err
	}
	if err := writeSummary(f, bookings, from, to); err != nil {
		return nil, err
	}

	_ = f.DeleteSheet("Sheet1")

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeBookingRows(f *excelize.File, bookings []models.Booking, from, to calendar.Date) error {
	_ = f.SetCellValue(bookingsSheet, "A1", fmt.Sprintf("Bookings %s - %s", from, to))
	lastCol, _ := excelize.ColumnNumberToName(len(bookingColumns))
	_ = f.MergeCell(bookingsSheet, "A1", lastCol+"1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(bookingsSheet, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, name := range bookingColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(bookingsSheet, cell, name)
		_ = f.SetCellStyle(bookingsSheet, cell, cell, headerStyle)
	}

	rows := inRange(bookings, from, to)
	for i, b := range rows {
		values := []any{
			b.Date.String(),
			b.GroundName,
			strings.Join(b.SelectedSlots, ", "),
			b.SportType,
			b.TeamName,
			b.CaptainName,
			b.Purpose,
			b.Status,
			b.ID,
			b.CreatedAt.Format("2006-01-02 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		if err := f.SetSheetRow(bookingsSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+3, err)
		}
	}

	_ = f.SetColWidth(bookingsSheet, "A", "A", 12)
	_ = f.SetColWidth(bookingsSheet, "B", "C", 28)
	_ = f.SetColWidth(bookingsSheet, "D", lastCol, 16)
	return nil
}

// writeSummary lays out grounds as rows and dates as columns with the
// number of booked slots in each cell.
func writeSummary(f *excelize.File, bookings []models.Booking, from, to calendar.Date) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	counts := make(map[string]map[calendar.Date]int)
	names := make(map[string]string)
	for _, b := range inRange(bookings, from, to) {
		if counts[b.GroundID] == nil {
			counts[b.GroundID] = make(map[calendar.Date]int)
		}
		counts[b.GroundID][b.Date] += len(b.SelectedSlots)
		names[b.GroundID] = b.GroundName
	}

	groundIDs := make([]string, 0, len(counts))
	for id := range counts {
		groundIDs = append(groundIDs, id)
	}
	sort.Slice(groundIDs, func(i, j int) bool { return names[groundIDs[i]] < names[groundIDs[j]] })

	_ = f.SetCellValue(summarySheet, "A1", "Ground")
	col := 2
	for d := from; !d.After(to); d = d.AddDays(1) {
		cell, _ := excelize.CoordinatesToCellName(col, 1)
		_ = f.SetCellValue(summarySheet, cell, d.String())
		col++
	}

	for row, id := range groundIDs {
		cell, _ := excelize.CoordinatesToCellName(1, row+2)
		_ = f.SetCellValue(summarySheet, cell, names[id])
		dayCol := 2
		for d := from; !d.After(to); d = d.AddDays(1) {
			if n := counts[id][d]; n > 0 {
				countCell, _ := excelize.CoordinatesToCellName(dayCol, row+2)
				_ = f.SetCellValue(summarySheet, countCell, n)
			}
			dayCol++
		}
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 28)
	return nil
}

func inRange(bookings []models.Booking, from, to calendar.Date) []models.Booking {
	out := make([]models.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.Date.Before(from) || b.Date.After(to) {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

