package parking

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestLot(rows, cols int) *Lot {
	lot := NewLot(NewGridSeeded(rows, cols, 1))
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	lot.now = func() time.Time { return now }
	return lot
}

func TestLotBook(t *testing.T) {
	lot := newTestLot(2, 3)

	booking, err := lot.Book("A1", "Alice", "AB-123", 2)
	if err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}

	projection := lot.Projection()
	occupant := projection["A1"]
	if occupant == nil {
		t.Fatal("Expected A1 to be occupied after booking")
	}
	if occupant.Name != "Alice" || occupant.Plate != "AB-123" {
		t.Errorf("Projection has wrong occupant: %q %q", occupant.Name, occupant.Plate)
	}
	if occupant.ID != booking.ID {
		t.Errorf("Expected projection to hold booking %s, got %s", booking.ID, occupant.ID)
	}
}

func TestLotBookUnknownSlot(t *testing.T) {
	lot := newTestLot(2, 3)

	_, err := lot.Book("Z9", "Alice", "AB-123", 1)
	if !errors.Is(err, ErrSlotNotFound) {
		t.Errorf("Expected ErrSlotNotFound, got %v", err)
	}
}

func TestLotBookOccupiedSlotRejected(t *testing.T) {
	lot := newTestLot(2, 3)

	if _, err := lot.Book("B2", "Alice", "AB-123", 1); err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}

	_, err := lot.Book("B2", "Bob", "CD-456", 1)
	if !errors.Is(err, ErrSlotOccupied) {
		t.Errorf("Expected ErrSlotOccupied, got %v", err)
	}

	if len(lot.Bookings()) != 1 {
		t.Errorf("Expected 1 booking after rejected duplicate, got %d", len(lot.Bookings()))
	}
}

func TestLotBookIDCollision(t *testing.T) {
	// A pinned clock makes every booking start in the same millisecond.
	lot := newTestLot(2, 3)

	first, err := lot.Book("A1", "Alice", "AB-123", 1)
	if err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}

	second, err := lot.Book("A2", "Bob", "CD-456", 1)
	if err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}

	if first.ID == second.ID {
		t.Errorf("Expected distinct booking IDs, both are %s", first.ID)
	}
}

func TestLotEnd(t *testing.T) {
	lot := newTestLot(2, 3)

	booking, err := lot.Book("A1", "Alice", "AB-123", 1)
	if err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}

	if err := lot.End(booking.ID); err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}

	if lot.Projection()["A1"] != nil {
		t.Error("Expected A1 to be free after ending its booking")
	}

	if len(lot.Bookings()) != 0 {
		t.Errorf("Expected 0 bookings, got %d", len(lot.Bookings()))
	}

	if err := lot.End(booking.ID); !errors.Is(err, ErrBookingNotFound) {
		t.Errorf("Expected ErrBookingNotFound on second end, got %v", err)
	}
}

func TestLotBookingsSortedBySlot(t *testing.T) {
	lot := newTestLot(2, 3)

	lot.Book("B1", "Bob", "CD-456", 1)
	lot.Book("A2", "Alice", "AB-123", 1)
	lot.Book("A1", "Carol", "EF-789", 1)

	bookings := lot.Bookings()
	expected := []string{"A1", "A2", "B1"}
	for i, slotID := range expected {
		if bookings[i].SlotID != slotID {
			t.Errorf("Expected slot %s at position %d, got %s", slotID, i, bookings[i].SlotID)
		}
	}
}

func TestLotProjectionLastWriteWins(t *testing.T) {
	// Duplicate-slot bookings can only arrive from an old storage
	// payload; the projection resolves them to the later entry.
	lot := newTestLot(2, 3)

	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	first := NewBooking("A1", "Alice", "AB-123", 1, start)
	second := NewBooking("A1", "Bob", "CD-456", 1, start.Add(time.Minute))
	lot.Restore([]*Booking{first, second})

	occupant := lot.Projection()["A1"]
	if occupant == nil {
		t.Fatal("Expected A1 to be occupied")
	}
	if occupant.ID != second.ID {
		t.Errorf("Expected later booking %s to win, got %s", second.ID, occupant.ID)
	}
}

func TestLotOvertimeBookings(t *testing.T) {
	lot := newTestLot(2, 3)

	lot.Book("A1", "Alice", "AB-123", 1)
	lot.Book("A2", "Bob", "CD-456", 3)

	// Advance the clock past the first booking's end only.
	base := lot.now()
	lot.now = func() time.Time { return base.Add(2 * time.Hour) }

	overtime := lot.OvertimeBookings()
	if len(overtime) != 1 {
		t.Fatalf("Expected 1 overtime booking, got %d", len(overtime))
	}
	if overtime[0].SlotID != "A1" {
		t.Errorf("Expected overtime booking on A1, got %s", overtime[0].SlotID)
	}
}

func TestLotConcurrentAccess(t *testing.T) {
	// The lot is shared by the shell, the HTTP handlers, and the
	// overtime sweeper; mutations and sweeps run on separate
	// goroutines. Run under -race to catch unsynchronized access.
	lot := newTestLot(4, 6)

	done := make(chan struct{})
	sweeperDone := make(chan struct{})
	var wg sync.WaitGroup

	go func() {
		defer close(sweeperDone)
		for {
			select {
			case <-done:
				return
			default:
			}
			lot.OvertimeBookings()
			lot.Projection()
			lot.Filter("ab")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			slotID := SlotID(i%4, i%6)
			booking, err := lot.Book(slotID, "Alice", "AB-123", 1)
			if err != nil {
				continue
			}
			if err := lot.End(booking.ID); err != nil {
				t.Errorf("Unexpected error: %s", err.Error())
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			lot.Bookings()
		}
	}()

	wg.Wait()
	close(done)
	<-sweeperDone

	if len(lot.Bookings()) != 0 {
		t.Errorf("Expected 0 bookings after balanced book/end, got %d", len(lot.Bookings()))
	}
}

func TestLotRestoreRoundTrip(t *testing.T) {
	lot := newTestLot(2, 3)
	lot.Book("A1", "Alice", "AB-123", 2)
	lot.Book("B3", "Bob", "CD-456", 1)

	restored := NewLot(lot.Slots())
	restored.Restore(lot.Bookings())

	if len(restored.Bookings()) != 2 {
		t.Fatalf("Expected 2 restored bookings, got %d", len(restored.Bookings()))
	}
	if restored.Projection()["A1"] == nil || restored.Projection()["B3"] == nil {
		t.Error("Expected restored lot to show A1 and B3 occupied")
	}
}
