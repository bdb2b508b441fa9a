package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"playchrono/internal/calendar"
	"playchrono/internal/models"

	"github.com/google/uuid"
)

const bookingColumns = `id, captain_id, captain_name, team_name, sport_type, ground_id, ground_name,
                        date, selected_slots, purpose, status, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b     models.Booking
		slots string
	)
	err := row.Scan(&b.ID, &b.CaptainID, &b.CaptainName, &b.TeamName, &b.SportType, &b.GroundID,
		&b.GroundName, &b.Date, &slots, &b.Purpose, &b.Status, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(slots), &b.SelectedSlots); err != nil {
		return nil, fmt.Errorf("failed to decode selected slots of %s: %w", b.ID, err)
	}
	return &b, nil
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := []models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// BookedSlots returns the claimed slot ids of every ground on date.
func (db *DB) BookedSlots(ctx context.Context, date calendar.Date) (map[string]map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT ground_id, slot_id FROM booking_slots WHERE date = ?`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get booked slots: %w", err)
	}
	defer rows.Close()

	booked := make(map[string]map[string]bool)
	for rows.Next() {
		var groundID, slotID string
		if err := rows.Scan(&groundID, &slotID); err != nil {
			return nil, fmt.Errorf("failed to scan booked slot: %w", err)
		}
		if booked[groundID] == nil {
			booked[groundID] = make(map[string]bool)
		}
		booked[groundID][slotID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate booked slots: %w", err)
	}
	return booked, nil
}

// CreateBookingWithLock stores booking and claims slotIDs in one transaction.
// It fails with a *SlotsTakenError when any slot is already claimed.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking, slotIDs []string) error {
	if len(slotIDs) == 0 {
		return errors.New("no slots to claim")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 1. Check the requested slots inside the transaction
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(slotIDs)), ",")
	args := []any{booking.GroundID, booking.Date}
	for _, id := range slotIDs {
		args = append(args, id)
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT slot_id FROM booking_slots WHERE ground_id = ? AND date = ? AND slot_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to check slots in tx: %w", err)
	}
	var taken []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan taken slot: %w", err)
		}
		taken = append(taken, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate taken slots: %w", err)
	}
	if len(taken) > 0 {
		return &SlotsTakenError{GroundID: booking.GroundID, SlotIDs: orderLike(taken, slotIDs)}
	}

	// 2. Create booking
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.Status == "" {
		booking.Status = models.StatusConfirmed
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}
	slotsJSON, err := json.Marshal(booking.SelectedSlots)
	if err != nil {
		return fmt.Errorf("failed to encode selected slots: %w", err)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO bookings (`+bookingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.ID,
		booking.CaptainID,
		booking.CaptainName,
		booking.TeamName,
		booking.SportType,
		booking.GroundID,
		booking.GroundName,
		booking.Date,
		string(slotsJSON),
		booking.Purpose,
		booking.Status,
		booking.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	// 3. Claim slots; the unique key rejects a writer that raced past the check
	for _, id := range slotIDs {
		_, err := tx.ExecContext(ctx, `INSERT INTO booking_slots (booking_id, ground_id, date, slot_id) VALUES (?, ?, ?, ?)`,
			booking.ID, booking.GroundID, booking.Date, id)
		if isUniqueViolation(err) {
			return &SlotsTakenError{GroundID: booking.GroundID, SlotIDs: []string{id}}
		}
		if err != nil {
			return fmt.Errorf("failed to claim slot %s in tx: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}
	return nil
}

// orderLike sorts ids in the order they appear in ref.
func orderLike(ids, ref []string) []string {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	out := make([]string, 0, len(ids))
	for _, id := range ref {
		if set[id] {
			out = append(out, id)
		}
	}
	return out
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

func (db *DB) GetBookingsByDate(ctx context.Context, date calendar.Date) ([]models.Booking, error) {
	bookings, err := db.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE date = ? ORDER BY created_at, id`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by date: %w", err)
	}
	return bookings, nil
}

func (db *DB) GetBookingsByCaptain(ctx context.Context, captainID string) ([]models.Booking, error) {
	bookings, err := db.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE captain_id = ? ORDER BY date, created_at`, captainID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by captain: %w", err)
	}
	return bookings, nil
}

func (db *DB) GetBookingsByDateRange(ctx context.Context, from, to calendar.Date) ([]models.Booking, error) {
	bookings, err := db.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE date >= ? AND date <= ? ORDER BY date, ground_id, created_at`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by date range: %w", err)
	}
	return bookings, nil
}

// GetAllBookings lists every booking, most recent date first.
func (db *DB) GetAllBookings(ctx context.Context) ([]models.Booking, error) {
	bookings, err := db.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings ORDER BY date DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all bookings: %w", err)
	}
	return bookings, nil
}

// DeleteBooking removes a booking and releases its slots. The removed booking
// is returned.
func (db *DB) DeleteBooking(ctx context.Context, id string) (*models.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	b, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking in tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM booking_slots WHERE booking_id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to release slots: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to delete booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delete: %w", err)
	}
	return b, nil
}
