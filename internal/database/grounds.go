package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"playchrono/internal/models"
)

// SyncGrounds upserts the configured grounds, deactivates the ones that are no
// longer configured and refreshes the in-memory catalog.
func (db *DB) SyncGrounds(ctx context.Context, grounds []models.Ground) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `UPDATE grounds SET is_active = 0`); err != nil {
		return fmt.Errorf("failed to reset grounds: %w", err)
	}

	query := `INSERT INTO grounds (id, name, sports, slots, closed_weekdays, sort_order, is_active, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, 1, ?)
              ON CONFLICT(id) DO UPDATE SET
                name = excluded.name,
                sports = excluded.sports,
                slots = excluded.slots,
                closed_weekdays = excluded.closed_weekdays,
                sort_order = excluded.sort_order,
                is_active = 1,
                updated_at = excluded.updated_at`
	now := time.Now()
	for i := range grounds {
		g := grounds[i]
		sports, err := json.Marshal(g.Sports)
		if err != nil {
			return fmt.Errorf("failed to encode sports of %s: %w", g.ID, err)
		}
		slots, err := json.Marshal(g.Slots)
		if err != nil {
			return fmt.Errorf("failed to encode slots of %s: %w", g.ID, err)
		}
		closed := g.ClosedWeekdays
		if closed == nil {
			closed = []string{}
		}
		closedJSON, err := json.Marshal(closed)
		if err != nil {
			return fmt.Errorf("failed to encode closed weekdays of %s: %w", g.ID, err)
		}
		if _, err := tx.ExecContext(ctx, query, g.ID, g.Name, string(sports), string(slots), string(closedJSON), i, now); err != nil {
			return fmt.Errorf("failed to upsert ground %s: %w", g.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit grounds: %w", err)
	}

	db.setGrounds(grounds)
	db.logger.Info().Int("count", len(grounds)).Msg("grounds synchronized")
	return nil
}

// LoadGrounds refreshes the catalog from the active rows of the grounds table.
func (db *DB) LoadGrounds(ctx context.Context) error {
	rows, err := db.QueryContext(ctx, `SELECT id, name, sports, slots, closed_weekdays
                                       FROM grounds WHERE is_active = 1 ORDER BY sort_order, id`)
	if err != nil {
		return fmt.Errorf("failed to load grounds: %w", err)
	}
	defer rows.Close()

	var grounds []models.Ground
	for rows.Next() {
		var (
			g                      models.Ground
			sports, slots, closedW string
		)
		if err := rows.Scan(&g.ID, &g.Name, &sports, &slots, &closedW); err != nil {
			return fmt.Errorf("failed to scan ground: %w", err)
		}
		if err := json.Unmarshal([]byte(sports), &g.Sports); err != nil {
			return fmt.Errorf("failed to decode sports of %s: %w", g.ID, err)
		}
		if err := json.Unmarshal([]byte(slots), &g.Slots); err != nil {
			return fmt.Errorf("failed to decode slots of %s: %w", g.ID, err)
		}
		if err := json.Unmarshal([]byte(closedW), &g.ClosedWeekdays); err != nil {
			return fmt.Errorf("failed to decode closed weekdays of %s: %w", g.ID, err)
		}
		grounds = append(grounds, g)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate grounds: %w", err)
	}

	db.setGrounds(grounds)
	return nil
}

func (db *DB) setGrounds(grounds []models.Ground) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.groundCache = make(map[string]models.Ground, len(grounds))
	db.groundOrder = db.groundOrder[:0]
	for _, g := range grounds {
		db.groundCache[g.ID] = g
		db.groundOrder = append(db.groundOrder, g.ID)
	}
}

// Grounds returns the catalog in configured order.
func (db *DB) Grounds() []models.Ground {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]models.Ground, 0, len(db.groundOrder))
	for _, id := range db.groundOrder {
		out = append(out, db.groundCache[id])
	}
	return out
}

func (db *DB) GroundByID(id string) (models.Ground, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	g, ok := db.groundCache[id]
	return g, ok
}
