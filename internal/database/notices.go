package database

import (
	"context"
	"fmt"
	"time"

	"playchrono/internal/models"

	"github.com/google/uuid"
)

func (db *DB) CreateNotice(ctx context.Context, notice *models.Notice) error {
	if notice.ID == "" {
		notice.ID = uuid.NewString()
	}
	if notice.CreatedAt.IsZero() {
		notice.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx, `INSERT INTO notices (id, title, message, created_by_id, created_by_name, created_at)
              VALUES (?, ?, ?, ?, ?, ?)`,
		notice.ID, notice.Title, notice.Message, notice.CreatedBy.ID, notice.CreatedBy.Name, notice.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notice: %w", err)
	}
	return nil
}

// ListNotices returns notices newest first.
func (db *DB) ListNotices(ctx context.Context) ([]models.Notice, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, title, message, created_by_id, created_by_name, created_at
              FROM notices ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list notices: %w", err)
	}
	defer rows.Close()

	notices := []models.Notice{}
	for rows.Next() {
		var n models.Notice
		if err := rows.Scan(&n.ID, &n.Title, &n.Message, &n.CreatedBy.ID, &n.CreatedBy.Name, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notice: %w", err)
		}
		notices = append(notices, n)
	}
	return notices, rows.Err()
}
