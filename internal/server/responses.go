package server

import (
	"context"
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/trace"
)

type Meta struct {
	TraceID   string `json:"trace_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type CreateBookingRequest struct {
	SlotID        string `json:"slot_id" validate:"required"`
	Name          string `json:"name" validate:"required"`
	Plate         string `json:"plate" validate:"required"`
	DurationHours int    `json:"duration_hours" validate:"required,gte=1"`
}

type BookingResponse struct {
	ID            string `json:"id"`
	SlotID        string `json:"slot_id"`
	Name          string `json:"name"`
	Plate         string `json:"plate"`
	StartTime     string `json:"start_time"`
	DurationHours int    `json:"duration_hours"`
	Countdown     string `json:"countdown"`
	Overtime      bool   `json:"overtime"`
}

type SlotStatus struct {
	ID       string `json:"id"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Size     string `json:"size"`
	Occupied bool   `json:"occupied"`
	Plate    string `json:"plate,omitempty"`
	Name     string `json:"name,omitempty"`
}

type LotResponse struct {
	Total    int          `json:"total"`
	Occupied int          `json:"occupied"`
	Free     int          `json:"free"`
	Slots    []SlotStatus `json:"slots"`
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func extractMeta(ctx context.Context) *Meta {
	meta := &Meta{}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		meta.TraceID = span.SpanContext().TraceID().String()
	}

	if reqID, ok := ctx.Value(RequestIDKey).(string); ok {
		meta.RequestID = reqID
	}

	return meta
}

func WriteSuccess(ctx context.Context, w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    extractMeta(ctx),
	})
}

func WriteError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Response{
		Success: false,
		Error:   message,
		Meta:    extractMeta(ctx),
	})
}
