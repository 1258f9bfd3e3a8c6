package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-grid/internal/parking"
	"parking-grid/internal/server"
	"parking-grid/internal/storage"
)

func newTestRouter(t *testing.T) (http.Handler, *storage.Store) {
	t.Helper()

	telemetry, err := parking.NewTelemetryProvider()
	require.NoError(t, err)

	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	lot := parking.NewLot(parking.NewGridSeeded(2, 3, 1))
	instrumented, err := parking.NewInstrumentedLot(lot, telemetry)
	require.NoError(t, err)

	return server.NewRouter(server.NewHandler(instrumented, store)), store
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) server.Response {
	t.Helper()
	var resp server.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateBooking(t *testing.T) {
	router, store := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/lot/bookings", server.CreateBookingRequest{
		SlotID:        "A1",
		Name:          "Alice",
		Plate:         "AB-123",
		DurationHours: 2,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)

	// The mutation must be mirrored to storage.
	persisted, err := store.LoadBookings()
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, "A1", persisted[0].SlotID)
}

func TestCreateBookingValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/lot/bookings", server.CreateBookingRequest{
		SlotID:        "A1",
		DurationHours: 2,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/lot/bookings", server.CreateBookingRequest{
		SlotID:        "A1",
		Name:          "Alice",
		Plate:         "AB-123",
		DurationHours: 0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBookingConflicts(t *testing.T) {
	router, _ := newTestRouter(t)

	req := server.CreateBookingRequest{
		SlotID:        "B2",
		Name:          "Alice",
		Plate:         "AB-123",
		DurationHours: 1,
	}

	rec := doJSON(t, router, http.MethodPost, "/api/lot/bookings", req)
	require.Equal(t, http.StatusOK, rec.Code)

	req.Name = "Bob"
	req.Plate = "CD-456"
	rec = doJSON(t, router, http.MethodPost, "/api/lot/bookings", req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	req.SlotID = "Z9"
	rec = doJSON(t, router, http.MethodPost, "/api/lot/bookings", req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetLotWithSearch(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/lot/bookings", server.CreateBookingRequest{
		SlotID:        "B2",
		Name:          "Alice",
		Plate:         "XYZ-AB1",
		DurationHours: 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/lot?q=ab", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)

	var lotResp server.LotResponse
	require.NoError(t, json.Unmarshal(data, &lotResp))

	require.Len(t, lotResp.Slots, 1)
	assert.Equal(t, "B2", lotResp.Slots[0].ID)
	assert.True(t, lotResp.Slots[0].Occupied)
	assert.Equal(t, "XYZ-AB1", lotResp.Slots[0].Plate)
}

func TestCreateBookingRolledBackWhenPersistFails(t *testing.T) {
	router, store := newTestRouter(t)

	// A closed store fails every save.
	require.NoError(t, store.Close())

	rec := doJSON(t, router, http.MethodPost, "/api/lot/bookings", server.CreateBookingRequest{
		SlotID:        "A1",
		Name:          "Alice",
		Plate:         "AB-123",
		DurationHours: 1,
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// The in-memory lot must not diverge from storage.
	rec = doJSON(t, router, http.MethodGet, "/api/lot/bookings", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)

	var bookings []server.BookingResponse
	require.NoError(t, json.Unmarshal(data, &bookings))
	assert.Empty(t, bookings)
}

func TestDeleteBookingReinstatedWhenPersistFails(t *testing.T) {
	router, store := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/lot/bookings", server.CreateBookingRequest{
		SlotID:        "A1",
		Name:          "Alice",
		Plate:         "AB-123",
		DurationHours: 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)

	var booking server.BookingResponse
	require.NoError(t, json.Unmarshal(data, &booking))

	require.NoError(t, store.Close())

	rec = doJSON(t, router, http.MethodDelete, "/api/lot/bookings/"+booking.ID, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// The removal was undone, the booking is still active.
	rec = doJSON(t, router, http.MethodGet, "/api/lot/bookings/"+booking.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteBooking(t *testing.T) {
	router, store := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/lot/bookings", server.CreateBookingRequest{
		SlotID:        "A1",
		Name:          "Alice",
		Plate:         "AB-123",
		DurationHours: 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)

	var booking server.BookingResponse
	require.NoError(t, json.Unmarshal(data, &booking))

	rec = doJSON(t, router, http.MethodDelete, "/api/lot/bookings/"+booking.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/lot/bookings/"+booking.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	persisted, err := store.LoadBookings()
	require.NoError(t, err)
	assert.Empty(t, persisted)
}
