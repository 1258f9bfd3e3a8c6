package parking

import (
	"fmt"
	"time"
)

type Booking struct {
	ID            string    `json:"id"`
	SlotID        string    `json:"slot_id"`
	Name          string    `json:"name"`
	Plate         string    `json:"plate"`
	StartTime     time.Time `json:"start_time"`
	DurationHours int       `json:"duration_hours"`
}

func NewBooking(slotID, name, plate string, durationHours int, start time.Time) *Booking {
	return &Booking{
		ID:            BookingID(start),
		SlotID:        slotID,
		Name:          name,
		Plate:         plate,
		StartTime:     start,
		DurationHours: durationHours,
	}
}

// BookingID derives the identifier from the start timestamp.
func BookingID(start time.Time) string {
	return fmt.Sprintf("bk-%d", start.UnixMilli())
}

func (b *Booking) EndTime() time.Time {
	return b.StartTime.Add(time.Duration(b.DurationHours) * time.Hour)
}

// Remaining is negative once the booking has run into overtime.
func (b *Booking) Remaining(now time.Time) time.Duration {
	return b.EndTime().Sub(now)
}

func (b *Booking) Overtime(now time.Time) bool {
	return b.Remaining(now) < 0
}

// Countdown renders the live timer shown next to a booking, e.g.
// "1h 1m 1s left" or "0h 0m 5s over".
func (b *Booking) Countdown(now time.Time) string {
	remaining := b.Remaining(now)
	if remaining < 0 {
		return FormatDuration(remaining) + " over"
	}
	return FormatDuration(remaining) + " left"
}

// FormatDuration renders the magnitude of d as "XhYmZs" with spaces.
// The sign is dropped; overtime is conveyed by the caller.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	total := int64(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}
