package database

import (
	"context"
	"fmt"

	"playchrono/internal/calendar"
)

func (db *DB) CountUsersByRole(ctx context.Context) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			role  string
			count int
		)
		if err := rows.Scan(&role, &count); err != nil {
			return nil, fmt.Errorf("failed to scan user count: %w", err)
		}
		counts[role] = count
	}
	return counts, rows.Err()
}

// CountBookings returns the total, the ones on today and the ones after today.
func (db *DB) CountBookings(ctx context.Context, today calendar.Date) (total, onDay, upcoming int, err error) {
	query := `SELECT COUNT(*),
                     COALESCE(SUM(CASE WHEN date = ? THEN 1 ELSE 0 END), 0),
                     COALESCE(SUM(CASE WHEN date > ? THEN 1 ELSE 0 END), 0)
              FROM bookings`
	if err = db.QueryRowContext(ctx, query, today, today).Scan(&total, &onDay, &upcoming); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return total, onDay, upcoming, nil
}

func (db *DB) CountNotices(ctx context.Context) (int, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notices`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count notices: %w", err)
	}
	return count, nil
}
