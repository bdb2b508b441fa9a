package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrSlotTaken  = errors.New("slot already booked")
	ErrEmailTaken = errors.New("email already registered")
)

// SlotsTakenError lists the slot ids that were already claimed.
type SlotsTakenError struct {
	GroundID string
	SlotIDs  []string
}

func (e *SlotsTakenError) Error() string {
	return fmt.Sprintf("ground %s: slots already booked: %s", e.GroundID, strings.Join(e.SlotIDs, ", "))
}

func (e *SlotsTakenError) Is(target error) bool {
	return target == ErrSlotTaken
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
