package parking

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type InstrumentedLot struct {
	*Lot
	telemetry *TelemetryProvider

	// Metrics
	bookingOperations metric.Int64Counter
	endingOperations  metric.Int64Counter
	occupancyGauge    metric.Int64UpDownCounter
	operationDuration metric.Float64Histogram
	totalSlotsGauge   metric.Int64UpDownCounter
}

func NewInstrumentedLot(lot *Lot, telemetry *TelemetryProvider) (*InstrumentedLot, error) {
	meter := telemetry.Meter()

	bookingOperations, err := meter.Int64Counter("booking_operations_total",
		metric.WithDescription("Total number of booking-create operations"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	endingOperations, err := meter.Int64Counter("ending_operations_total",
		metric.WithDescription("Total number of booking-end operations"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	occupancyGauge, err := meter.Int64UpDownCounter("parking_grid_occupancy",
		metric.WithDescription("Current number of occupied slots"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	operationDuration, err := meter.Float64Histogram("operation_duration_seconds",
		metric.WithDescription("Duration of lot operations"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	totalSlotsGauge, err := meter.Int64UpDownCounter("parking_grid_total_slots",
		metric.WithDescription("Total number of slots in the grid"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	il := &InstrumentedLot{
		Lot:               lot,
		telemetry:         telemetry,
		bookingOperations: bookingOperations,
		endingOperations:  endingOperations,
		occupancyGauge:    occupancyGauge,
		operationDuration: operationDuration,
		totalSlotsGauge:   totalSlotsGauge,
	}

	// Account for state restored from storage.
	totalSlotsGauge.Add(context.Background(), int64(len(lot.Slots())))
	occupancyGauge.Add(context.Background(), int64(len(lot.Bookings())))

	return il, nil
}

func (il *InstrumentedLot) Book(ctx context.Context, slotID, name, plate string, durationHours int) (*Booking, error) {
	tracer := il.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "lot.book",
		trace.WithAttributes(
			attribute.String("slot.id", slotID),
			attribute.String("booking.plate", plate),
			attribute.Int("booking.duration_hours", durationHours),
		))
	defer span.End()

	start := time.Now()

	span.AddEvent("checking_slot")

	booking, err := il.Lot.Book(slotID, name, plate, durationHours)

	duration := time.Since(start).Seconds()

	labels := []attribute.KeyValue{
		attribute.String("operation", "book"),
		attribute.String("slot_id", slotID),
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		labels = append(labels, attribute.String("status", "failed"))
		il.bookingOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	} else {
		labels = append(labels, attribute.String("status", "success"))
		span.SetAttributes(attribute.String("booking.id", booking.ID))
		span.AddEvent("booking_created", trace.WithAttributes(
			attribute.String("booking_id", booking.ID),
		))

		il.bookingOperations.Add(ctx, 1, metric.WithAttributes(labels...))
		il.occupancyGauge.Add(ctx, 1)
	}

	il.operationDuration.Record(ctx, duration, metric.WithAttributes(labels...))

	return booking, err
}

func (il *InstrumentedLot) End(ctx context.Context, bookingID string) error {
	tracer := il.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "lot.end",
		trace.WithAttributes(
			attribute.String("booking.id", bookingID),
		))
	defer span.End()

	start := time.Now()

	// Booking fields are gone after End succeeds; capture them first.
	booking, _ := il.Lot.Booking(bookingID)

	span.AddEvent("releasing_slot")

	err := il.Lot.End(bookingID)

	duration := time.Since(start).Seconds()

	labels := []attribute.KeyValue{
		attribute.String("operation", "end"),
		attribute.String("booking_id", bookingID),
	}

	if booking != nil {
		labels = append(labels, attribute.String("slot_id", booking.SlotID))
		span.SetAttributes(
			attribute.String("slot.id", booking.SlotID),
			attribute.String("booking.plate", booking.Plate),
		)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		labels = append(labels, attribute.String("status", "failed"))
	} else {
		labels = append(labels, attribute.String("status", "success"))
		span.AddEvent("slot_released")
		il.occupancyGauge.Add(ctx, -1)
	}

	il.endingOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	il.operationDuration.Record(ctx, duration, metric.WithAttributes(labels...))

	return err
}

// Reinstate undoes an End whose follow-up persistence step failed.
func (il *InstrumentedLot) Reinstate(ctx context.Context, booking *Booking) {
	tracer := il.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "lot.reinstate",
		trace.WithAttributes(
			attribute.String("booking.id", booking.ID),
			attribute.String("slot.id", booking.SlotID),
		))
	defer span.End()

	il.Lot.Reinstate(booking)

	span.AddEvent("booking_reinstated")
	il.occupancyGauge.Add(ctx, 1)
}

func (il *InstrumentedLot) Projection(ctx context.Context) map[string]*Booking {
	tracer := il.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "lot.projection")
	defer span.End()

	start := time.Now()

	span.AddEvent("deriving_projection")

	projection := il.Lot.Projection()

	duration := time.Since(start).Seconds()

	span.SetAttributes(
		attribute.Int("occupied_slots_count", len(projection)),
		attribute.Int("total_slots", len(il.Slots())),
	)

	labels := []attribute.KeyValue{
		attribute.String("operation", "projection"),
		attribute.String("status", "success"),
	}

	il.operationDuration.Record(ctx, duration, metric.WithAttributes(labels...))

	return projection
}

func (il *InstrumentedLot) Filter(ctx context.Context, query string) []*Slot {
	tracer := il.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "lot.filter",
		trace.WithAttributes(
			attribute.String("filter.query", query),
		))
	defer span.End()

	start := time.Now()

	span.AddEvent("filtering_slots")

	matched := il.Lot.Filter(query)

	duration := time.Since(start).Seconds()

	span.SetAttributes(attribute.Int("matched_slots_count", len(matched)))

	labels := []attribute.KeyValue{
		attribute.String("operation", "filter"),
		attribute.String("status", "success"),
	}

	il.operationDuration.Record(ctx, duration, metric.WithAttributes(labels...))

	return matched
}
