package parking

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RenderGrid draws the slots as rows of fixed-width boxes. Free slots
// show only their ID; occupied slots add the plate. Slots may be a
// filtered subset, so rows can be ragged.
func RenderGrid(slots []*Slot, projection map[string]*Booking) string {
	if len(slots) == 0 {
		return "No slots match\n"
	}

	byRow := make(map[int][]*Slot)
	var rows []int
	for _, slot := range slots {
		if _, seen := byRow[slot.Row]; !seen {
			rows = append(rows, slot.Row)
		}
		byRow[slot.Row] = append(byRow[slot.Row], slot)
	}
	sort.Ints(rows)

	var b strings.Builder
	for _, row := range rows {
		rowSlots := byRow[row]
		sort.Slice(rowSlots, func(i, j int) bool {
			return rowSlots[i].Col < rowSlots[j].Col
		})

		for _, slot := range rowSlots {
			label := slot.ID
			if booking := projection[slot.ID]; booking != nil {
				label = fmt.Sprintf("%s %s", slot.ID, booking.Plate)
			}
			// Truncate on rune boundaries; plates are not always ASCII.
			if runes := []rune(label); len(runes) > slot.Width {
				label = string(runes[:slot.Width])
			}
			fmt.Fprintf(&b, "[%-*s]", slot.Width, label)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderBookings draws every active booking with its live countdown.
// The booking list is never filtered by the grid search.
func RenderBookings(bookings []*Booking, now time.Time) string {
	if len(bookings) == 0 {
		return "No active bookings\n"
	}

	var b strings.Builder
	b.WriteString("Booking\t\tSlot\tName\tPlate\tTime\n")
	for _, booking := range bookings {
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s\t%s\n",
			booking.ID,
			booking.SlotID,
			booking.Name,
			booking.Plate,
			booking.Countdown(now),
		)
	}
	return b.String()
}

// RenderBookingDetail draws the detail panel for a single booking.
func RenderBookingDetail(booking *Booking, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Booking:  %s\n", booking.ID)
	fmt.Fprintf(&b, "Slot:     %s\n", booking.SlotID)
	fmt.Fprintf(&b, "Name:     %s\n", booking.Name)
	fmt.Fprintf(&b, "Plate:    %s\n", booking.Plate)
	fmt.Fprintf(&b, "Start:    %s\n", booking.StartTime.Format(time.RFC3339))
	fmt.Fprintf(&b, "Duration: %dh\n", booking.DurationHours)
	fmt.Fprintf(&b, "Time:     %s\n", booking.Countdown(now))
	return b.String()
}
