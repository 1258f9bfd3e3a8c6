package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"parking-grid/internal/parking"
	"parking-grid/internal/storage"
)

func getServiceName() string {
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		return name
	}
	return "parking-grid"
}

// Handler needs no lock of its own: the lot synchronizes all access,
// shared with the shell and the overtime sweeper.
type Handler struct {
	lot      *parking.InstrumentedLot
	store    *storage.Store
	validate *validator.Validate
}

func NewHandler(lot *parking.InstrumentedLot, store *storage.Store) *Handler {
	return &Handler{
		lot:      lot,
		store:    store,
		validate: validator.New(),
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": getServiceName(),
		"meta":    extractMeta(r.Context()),
	})
}

// GetLot returns the grid with per-slot occupancy, optionally filtered
// by the q query parameter.
func (h *Handler) GetLot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query().Get("q")

	slots := h.lot.Filter(ctx, query)
	projection := h.lot.Projection(ctx)

	statuses := make([]SlotStatus, 0, len(slots))
	occupied := 0
	for _, slot := range slots {
		status := SlotStatus{
			ID:     slot.ID,
			Row:    slot.Row,
			Col:    slot.Col,
			Width:  slot.Width,
			Height: slot.Height,
			Size:   string(slot.Size),
		}
		if booking := projection[slot.ID]; booking != nil {
			status.Occupied = true
			status.Plate = booking.Plate
			status.Name = booking.Name
			occupied++
		}
		statuses = append(statuses, status)
	}

	response := LotResponse{
		Total:    len(slots),
		Occupied: occupied,
		Free:     len(slots) - occupied,
		Slots:    statuses,
	}

	WriteSuccess(ctx, w, "Lot retrieved successfully", response)
}

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	now := h.lot.Now()
	bookings := h.lot.Bookings()

	responses := make([]BookingResponse, 0, len(bookings))
	for _, booking := range bookings {
		responses = append(responses, bookingResponse(booking, now))
	}

	WriteSuccess(ctx, w, "Bookings retrieved successfully", responses)
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := h.lot.Book(ctx, req.SlotID, req.Name, req.Plate, req.DurationHours)
	if err != nil {
		switch {
		case errors.Is(err, parking.ErrSlotNotFound):
			WriteError(ctx, w, http.StatusNotFound, err.Error())
		case errors.Is(err, parking.ErrSlotOccupied):
			WriteError(ctx, w, http.StatusConflict, err.Error())
		default:
			WriteError(ctx, w, http.StatusBadRequest, err.Error())
		}
		return
	}

	if err := h.store.SaveBookings(h.lot.Bookings()); err != nil {
		// Keep memory and storage in step: undo the create.
		h.lot.End(ctx, booking.ID)
		WriteError(ctx, w, http.StatusInternalServerError, "Failed to persist booking")
		return
	}

	WriteSuccess(ctx, w, "Booking created successfully", bookingResponse(booking, h.lot.Now()))
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	bookingID := chi.URLParam(r, "id")

	booking, err := h.lot.Booking(bookingID)
	if err != nil {
		WriteError(ctx, w, http.StatusNotFound, "Booking not found")
		return
	}

	WriteSuccess(ctx, w, "Booking found", bookingResponse(booking, h.lot.Now()))
}

// DeleteBooking ends a booking. The explicit DELETE request stands in
// for the confirmation step the interactive surfaces require.
func (h *Handler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	bookingID := chi.URLParam(r, "id")

	booking, err := h.lot.Booking(bookingID)
	if err != nil {
		WriteError(ctx, w, http.StatusNotFound, "Booking not found")
		return
	}

	if err := h.lot.End(ctx, booking.ID); err != nil {
		WriteError(ctx, w, http.StatusNotFound, "Booking not found")
		return
	}

	if err := h.store.SaveBookings(h.lot.Bookings()); err != nil {
		// Keep memory and storage in step: undo the removal.
		h.lot.Reinstate(ctx, booking)
		WriteError(ctx, w, http.StatusInternalServerError, "Failed to persist bookings")
		return
	}

	WriteSuccess(ctx, w, "Booking ended successfully", map[string]any{
		"booking_id": bookingID,
	})
}

func bookingResponse(booking *parking.Booking, now time.Time) BookingResponse {
	return BookingResponse{
		ID:            booking.ID,
		SlotID:        booking.SlotID,
		Name:          booking.Name,
		Plate:         booking.Plate,
		StartTime:     booking.StartTime.Format(time.RFC3339),
		DurationHours: booking.DurationHours,
		Countdown:     booking.Countdown(now),
		Overtime:      booking.Overtime(now),
	}
}
