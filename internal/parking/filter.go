package parking

import "strings"

// Filter returns the slots matching a case-insensitive substring query
// against the slot ID, the occupying booking's plate, or its renter
// name. An empty query matches every slot; a free slot can only match
// on its ID.
func (l *Lot) Filter(query string) []*Slot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if query == "" {
		return l.slots
	}

	query = strings.ToLower(query)
	projection := l.projection()

	var matched []*Slot
	for _, slot := range l.slots {
		if matchesSlot(slot, projection[slot.ID], query) {
			matched = append(matched, slot)
		}
	}
	return matched
}

func matchesSlot(slot *Slot, booking *Booking, loweredQuery string) bool {
	if strings.Contains(strings.ToLower(slot.ID), loweredQuery) {
		return true
	}
	if booking == nil {
		return false
	}
	return strings.Contains(strings.ToLower(booking.Plate), loweredQuery) ||
		strings.Contains(strings.ToLower(booking.Name), loweredQuery)
}
