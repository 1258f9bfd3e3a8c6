package parking

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Persister mirrors the booking list to storage after a successful
// mutation. The shell never persists on the display tick.
type Persister interface {
	SaveBookings(bookings []*Booking) error
}

type Shell struct {
	lot       *InstrumentedLot
	scanner   *bufio.Scanner
	telemetry *TelemetryProvider
	persister Persister

	// Booking ID awaiting confirm/cancel, empty when no end is pending.
	pendingEnd string
}

func NewShell(lot *InstrumentedLot, persister Persister, telemetry *TelemetryProvider, input io.Reader) *Shell {
	return &Shell{
		lot:       lot,
		scanner:   bufio.NewScanner(input),
		telemetry: telemetry,
		persister: persister,
	}
}

func (s *Shell) Run(ctx context.Context) {
	tracer := s.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "shell.run")
	defer span.End()

	span.AddEvent("shell_started")

	for {
		if ctx.Err() != nil {
			break
		}
		if !s.scanner.Scan() {
			break
		}

		input := strings.TrimSpace(s.scanner.Text())
		if input == "" {
			continue
		}

		cmdCtx, cmdSpan := tracer.Start(ctx, "shell.process_command",
			trace.WithAttributes(attribute.String("command.input", input)))

		done := s.processCommand(cmdCtx, input)
		cmdSpan.End()

		if done {
			break
		}
	}

	span.AddEvent("shell_ended")
}

func (s *Shell) processCommand(ctx context.Context, input string) bool {
	tracer := s.telemetry.Tracer()
	_, span := tracer.Start(ctx, "shell.parse_command")
	defer span.End()

	parts := strings.Fields(input)
	if len(parts) == 0 {
		return false
	}

	command := parts[0]
	span.SetAttributes(attribute.String("command.name", command))

	switch command {
	case "grid":
		s.handleGrid(ctx, parts)
	case "list":
		s.handleList(ctx)
	case "book":
		s.handleBook(ctx, parts)
	case "detail":
		s.handleDetail(ctx, parts)
	case "end":
		s.handleEnd(ctx, parts)
	case "confirm":
		s.handleConfirm(ctx)
	case "cancel":
		s.handleCancel(ctx)
	case "watch":
		s.handleWatch(ctx)
	case "help":
		s.printHelp()
	case "exit", "quit":
		return true
	default:
		span.AddEvent("unknown_command", trace.WithAttributes(
			attribute.String("unknown_command", command),
		))
		fmt.Printf("Unknown command: %s\n", command)
	}
	return false
}

func (s *Shell) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  grid [query]                     show the slot grid, optionally filtered")
	fmt.Println("  list                             show active bookings with countdowns")
	fmt.Println("  book <slot> <name> <plate> <hours>")
	fmt.Println("  detail <booking>                 show booking detail")
	fmt.Println("  end <booking>                    request ending a booking (then confirm/cancel)")
	fmt.Println("  watch                            live view, press Enter to stop")
	fmt.Println("  exit")
}

func (s *Shell) handleGrid(ctx context.Context, parts []string) {
	tracer := s.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "shell.grid_command")
	defer span.End()

	query := ""
	if len(parts) > 1 {
		query = strings.Join(parts[1:], " ")
	}
	span.SetAttributes(attribute.String("filter.query", query))

	slots := s.lot.Filter(ctx, query)
	projection := s.lot.Projection(ctx)

	span.AddEvent("grid_rendered", trace.WithAttributes(
		attribute.Int("matched_slots", len(slots)),
	))
	fmt.Print(RenderGrid(slots, projection))
}

func (s *Shell) handleList(ctx context.Context) {
	tracer := s.telemetry.Tracer()
	_, span := tracer.Start(ctx, "shell.list_command")
	defer span.End()

	bookings := s.lot.Bookings()
	span.SetAttributes(attribute.Int("active_bookings", len(bookings)))

	fmt.Print(RenderBookings(bookings, s.lot.Now()))
}

func (s *Shell) handleBook(ctx context.Context, parts []string) {
	tracer := s.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "shell.book_command")
	defer span.End()

	if len(parts) != 5 {
		span.AddEvent("invalid_arguments")
		fmt.Println("Usage: book <slot> <name> <plate> <hours>")
		return
	}

	slotID := strings.ToUpper(parts[1])
	name := parts[2]
	plate := parts[3]

	hours, err := strconv.Atoi(parts[4])
	if err != nil || hours <= 0 {
		span.RecordError(fmt.Errorf("invalid duration: %s", parts[4]))
		span.AddEvent("invalid_duration")
		fmt.Println("Invalid duration")
		return
	}

	span.SetAttributes(
		attribute.String("slot.id", slotID),
		attribute.String("booking.plate", plate),
		attribute.Int("booking.duration_hours", hours),
	)

	booking, err := s.lot.Book(ctx, slotID, name, plate, hours)
	if err != nil {
		span.AddEvent("booking_failed")
		fmt.Printf("Error: %s\n", err.Error())
		return
	}

	s.persist()

	span.AddEvent("booking_created", trace.WithAttributes(
		attribute.String("booking_id", booking.ID),
	))
	fmt.Printf("Booked slot %s: %s (%s) for %dh, booking %s\n",
		booking.SlotID, booking.Name, booking.Plate, booking.DurationHours, booking.ID)
}

func (s *Shell) handleDetail(ctx context.Context, parts []string) {
	tracer := s.telemetry.Tracer()
	_, span := tracer.Start(ctx, "shell.detail_command")
	defer span.End()

	if len(parts) != 2 {
		span.AddEvent("invalid_arguments")
		fmt.Println("Usage: detail <booking>")
		return
	}

	booking, err := s.lot.Booking(parts[1])
	if err != nil {
		span.AddEvent("booking_not_found")
		fmt.Println("Not found")
		return
	}

	span.SetAttributes(attribute.String("booking.id", booking.ID))
	fmt.Print(RenderBookingDetail(booking, s.lot.Now()))
}

func (s *Shell) handleEnd(ctx context.Context, parts []string) {
	tracer := s.telemetry.Tracer()
	_, span := tracer.Start(ctx, "shell.end_command")
	defer span.End()

	if len(parts) != 2 {
		span.AddEvent("invalid_arguments")
		fmt.Println("Usage: end <booking>")
		return
	}

	booking, err := s.lot.Booking(parts[1])
	if err != nil {
		span.AddEvent("booking_not_found")
		fmt.Println("Not found")
		return
	}

	s.pendingEnd = booking.ID
	span.AddEvent("end_pending", trace.WithAttributes(
		attribute.String("booking_id", booking.ID),
	))
	fmt.Printf("End booking %s for slot %s (%s)? Type confirm or cancel\n",
		booking.ID, booking.SlotID, booking.Plate)
}

func (s *Shell) handleConfirm(ctx context.Context) {
	tracer := s.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "shell.confirm_command")
	defer span.End()

	if s.pendingEnd == "" {
		span.AddEvent("nothing_pending")
		fmt.Println("Nothing to confirm")
		return
	}

	bookingID := s.pendingEnd
	s.pendingEnd = ""
	span.SetAttributes(attribute.String("booking.id", bookingID))

	if err := s.lot.End(ctx, bookingID); err != nil {
		span.AddEvent("end_failed")
		fmt.Printf("Error: %s\n", err.Error())
		return
	}

	s.persist()

	span.AddEvent("end_confirmed")
	fmt.Printf("Booking %s ended\n", bookingID)
}

func (s *Shell) handleCancel(ctx context.Context) {
	tracer := s.telemetry.Tracer()
	_, span := tracer.Start(ctx, "shell.cancel_command")
	defer span.End()

	if s.pendingEnd == "" {
		span.AddEvent("nothing_pending")
		fmt.Println("Nothing to cancel")
		return
	}

	span.SetAttributes(attribute.String("booking.id", s.pendingEnd))
	s.pendingEnd = ""
	span.AddEvent("end_cancelled")
	fmt.Println("Cancelled")
}

// handleWatch re-renders the grid and booking list every second so the
// countdowns stay live. The tick only redraws; it never touches state.
func (s *Shell) handleWatch(ctx context.Context) {
	tracer := s.telemetry.Tracer()
	watchCtx, span := tracer.Start(ctx, "shell.watch_command")
	defer span.End()

	span.AddEvent("watch_started")

	stop := make(chan struct{})
	go func() {
		s.scanner.Scan()
		close(stop)
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		slots := s.lot.Filter(watchCtx, "")
		projection := s.lot.Projection(watchCtx)

		fmt.Print(RenderGrid(slots, projection))
		fmt.Print(RenderBookings(s.lot.Bookings(), s.lot.Now()))
		fmt.Println("(press Enter to stop)")

		select {
		case <-watchCtx.Done():
			span.AddEvent("watch_cancelled")
			return
		case <-stop:
			span.AddEvent("watch_stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Shell) persist() {
	if s.persister == nil {
		return
	}
	if err := s.persister.SaveBookings(s.lot.Bookings()); err != nil {
		fmt.Printf("Warning: failed to persist bookings: %s\n", err.Error())
	}
}
