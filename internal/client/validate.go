package client

import (
	"fmt"

	"playchrono/internal/domain"
	"playchrono/internal/models"
)

func validateAvailability(grounds []models.GroundAvailability) error {
	seen := make(map[string]struct{}, len(grounds))
	for i := range grounds {
		g := &grounds[i]
		if err := g.Validate(); err != nil {
			return domain.ValidationError{Field: "grounds", Msg: "invalid response: " + err.Error(), Err: err}
		}
		if _, dup := seen[g.GroundID]; dup {
			return invalidResponse("grounds", fmt.Sprintf("ground %s listed twice", g.GroundID))
		}
		seen[g.GroundID] = struct{}{}
	}
	return nil
}

// validateBooking checks the fields every booking must carry. Dates are
// already strict from decoding.
func validateBooking(b *models.Booking) error {
	switch {
	case b.ID == "":
		return invalidResponse("booking", "bookingId is missing")
	case b.GroundID == "":
		return invalidResponse("booking", fmt.Sprintf("booking %s: groundId is missing", b.ID))
	case b.Date.IsZero():
		return invalidResponse("booking", fmt.Sprintf("booking %s: date is missing", b.ID))
	case len(b.SelectedSlots) == 0:
		return invalidResponse("booking", fmt.Sprintf("booking %s: no slots", b.ID))
	}
	return nil
}
