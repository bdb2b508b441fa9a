package models

import (
	"fmt"
	"strings"
	"time"
)

// SlotDef is a configured bookable time range of a ground.
type SlotDef struct {
	ID    string `yaml:"id" json:"id"`
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// Label is the display form, e.g. "14:00 - 15:30".
func (s SlotDef) Label() string {
	return fmt.Sprintf("%s - %s", s.Start, s.End)
}

// Ground is a configured facility. Slots are kept ordered by start time.
type Ground struct {
	ID             string    `yaml:"id" json:"id"`
	Name           string    `yaml:"name" json:"name"`
	Sports         []string  `yaml:"sports" json:"sports"`
	Slots          []SlotDef `yaml:"slots" json:"slots"`
	ClosedWeekdays []string  `yaml:"closed_weekdays" json:"closedWeekdays,omitempty"`
}

// Serves reports whether the ground offers sport, case-insensitively.
func (g *Ground) Serves(sport string) bool {
	for _, s := range g.Sports {
		if strings.EqualFold(s, sport) {
			return true
		}
	}
	return false
}

// SlotsOn returns the slots offered on a weekday; none when the ground is closed.
func (g *Ground) SlotsOn(day time.Weekday) []SlotDef {
	for _, closed := range g.ClosedWeekdays {
		if strings.EqualFold(closed, day.String()) {
			return nil
		}
	}
	return g.Slots
}

// FindSlot matches a slot by id or by its display label.
func (g *Ground) FindSlot(ref string) (SlotDef, bool) {
	ref = strings.TrimSpace(ref)
	norm := normalizeLabel(ref)
	for _, s := range g.Slots {
		if s.ID == ref || normalizeLabel(s.Label()) == norm {
			return s, true
		}
	}
	return SlotDef{}, false
}

// normalizeLabel tolerates missing spaces and typographic dashes around the separator.
func normalizeLabel(s string) string {
	s = strings.ReplaceAll(s, "\u2013", "-")
	s = strings.ReplaceAll(s, "\u2014", "-")
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "-", " - ")), " ")
}

// Slot is one entry of an availability listing.
type Slot struct {
	ID     string `json:"id"`
	Time   string `json:"time"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Status string `json:"status"`
}

// GroundAvailability is a ground with its slots for one date.
// AvailableCount always equals the number of available slots.
type GroundAvailability struct {
	GroundID       string `json:"groundId"`
	GroundName     string `json:"groundName"`
	Slots          []Slot `json:"slots"`
	AvailableCount int    `json:"availableCount"`
}

// CountAvailable recomputes the number of available slots.
func (g *GroundAvailability) CountAvailable() int {
	n := 0
	for _, s := range g.Slots {
		if s.Status == SlotAvailable {
			n++
		}
	}
	return n
}

// Validate checks the listing invariants: unique slot ids, known statuses
// and a consistent available count.
func (g *GroundAvailability) Validate() error {
	if g.GroundID == "" {
		return fmt.Errorf("groundId is required")
	}
	seen := make(map[string]struct{}, len(g.Slots))
	for _, s := range g.Slots {
		if s.ID == "" {
			return fmt.Errorf("ground %s: slot id is required", g.GroundID)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("ground %s: duplicate slot id %s", g.GroundID, s.ID)
		}
		seen[s.ID] = struct{}{}
		if s.Status != SlotAvailable && s.Status != SlotBooked {
			return fmt.Errorf("ground %s: slot %s has unknown status %q", g.GroundID, s.ID, s.Status)
		}
	}
	if got := g.CountAvailable(); got != g.AvailableCount {
		return fmt.Errorf("ground %s: availableCount %d does not match %d available slots", g.GroundID, g.AvailableCount, got)
	}
	return nil
}
