package parking

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	ErrSlotNotFound    = errors.New("slot not found")
	ErrSlotOccupied    = errors.New("slot already has an active booking")
	ErrBookingNotFound = errors.New("booking not found")
)

// Lot owns the slot grid and the list of active bookings. It does no
// I/O of its own: persistence is an explicit step the caller takes
// after a successful mutation, and the clock is injectable so the
// 1-second display tick never mutates domain state.
//
// The lot is shared by the shell, the HTTP handlers, and the overtime
// sweeper, so every surface goes through the lot's own lock.
type Lot struct {
	mu       sync.RWMutex
	slots    []*Slot
	bookings []*Booking
	now      func() time.Time
}

func NewLot(slots []*Slot) *Lot {
	return &Lot{
		slots: slots,
		now:   time.Now,
	}
}

// Restore replaces the booking list with bookings loaded from storage.
// Loaded data is taken as-is; duplicate-slot entries from an old
// payload resolve last-write-wins in the projection.
func (l *Lot) Restore(bookings []*Booking) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.bookings = bookings
}

func (l *Lot) Slots() []*Slot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.slots
}

func (l *Lot) Slot(slotID string) (*Slot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.findSlot(slotID)
}

// Book creates a booking for the slot starting now. A slot with an
// active booking is rejected rather than silently double-booked.
func (l *Lot) Book(slotID, name, plate string, durationHours int) (*Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.findSlot(slotID); err != nil {
		return nil, err
	}

	if l.projection()[slotID] != nil {
		return nil, fmt.Errorf("%w: %s", ErrSlotOccupied, slotID)
	}

	booking := NewBooking(slotID, name, plate, durationHours, l.now())

	// Two bookings inside the same millisecond would collide on the
	// time-derived ID; nudge forward until the ID is unique.
	for l.hasBookingID(booking.ID) {
		booking.StartTime = booking.StartTime.Add(time.Millisecond)
		booking.ID = BookingID(booking.StartTime)
	}

	l.bookings = append(l.bookings, booking)
	return booking, nil
}

// End removes the booking and frees its slot.
func (l *Lot) End(bookingID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, booking := range l.bookings {
		if booking.ID == bookingID {
			l.bookings = append(l.bookings[:i], l.bookings[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrBookingNotFound, bookingID)
}

// Reinstate puts back a booking that End removed, for callers that
// must undo a removal when the follow-up persistence step fails.
func (l *Lot) Reinstate(booking *Booking) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.bookings = append(l.bookings, booking)
}

func (l *Lot) Booking(bookingID string) (*Booking, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, booking := range l.bookings {
		if booking.ID == bookingID {
			return booking, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrBookingNotFound, bookingID)
}

// Bookings returns the active bookings ordered by slot ID.
func (l *Lot) Bookings() []*Booking {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.sortedBookings()
}

// Projection derives the slot-ID to active-booking lookup from the
// booking list. Later entries win if storage ever delivered two
// bookings for one slot.
func (l *Lot) Projection() map[string]*Booking {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.projection()
}

func (l *Lot) Occupied(slotID string) bool {
	return l.Projection()[slotID] != nil
}

// OvertimeBookings lists bookings that have run past their end time.
func (l *Lot) OvertimeBookings() []*Booking {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := l.now()

	var overtime []*Booking
	for _, booking := range l.sortedBookings() {
		if booking.Overtime(now) {
			overtime = append(overtime, booking)
		}
	}
	return overtime
}

func (l *Lot) Now() time.Time {
	return l.now()
}

// Callers of the helpers below hold l.mu.

func (l *Lot) findSlot(slotID string) (*Slot, error) {
	for _, slot := range l.slots {
		if slot.ID == slotID {
			return slot, nil
		}
	}
	return nil, ErrSlotNotFound
}

func (l *Lot) projection() map[string]*Booking {
	projection := make(map[string]*Booking, len(l.bookings))
	for _, booking := range l.bookings {
		projection[booking.SlotID] = booking
	}
	return projection
}

func (l *Lot) sortedBookings() []*Booking {
	bookings := make([]*Booking, len(l.bookings))
	copy(bookings, l.bookings)

	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].SlotID < bookings[j].SlotID
	})

	return bookings
}

func (l *Lot) hasBookingID(id string) bool {
	for _, booking := range l.bookings {
		if booking.ID == id {
			return true
		}
	}
	return false
}
