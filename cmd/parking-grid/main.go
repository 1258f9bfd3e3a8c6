package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"parking-grid/internal/parking"
	"parking-grid/internal/server"
	"parking-grid/internal/storage"
)

var (
	mode = flag.String("mode", "cli", "Mode to run: cli, server, or both")
	port = flag.String("port", "", "Port for HTTP server (overrides PORT)")
)

func main() {
	flag.Parse()
	godotenv.Load()

	httpPort := *port
	if httpPort == "" {
		httpPort = envOr("PORT", "8080")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryProvider, err := parking.NewTelemetryProvider()
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}

	store, err := storage.Open(envOr("DATA_DIR", "./data"))
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	lot, err := loadLot(store)
	if err != nil {
		log.Fatalf("Failed to load lot state: %v", err)
	}

	instrumentedLot, err := parking.NewInstrumentedLot(lot, telemetryProvider)
	if err != nil {
		log.Fatalf("Failed to instrument lot: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sweeper := startOvertimeSweeper(lot)
	defer sweeper.Stop()

	switch *mode {
	case "cli":
		runCLI(ctx, cancel, instrumentedLot, store, telemetryProvider, sigChan)
	case "server":
		runServer(ctx, cancel, instrumentedLot, store, telemetryProvider, sigChan, httpPort)
	case "both":
		runBoth(ctx, cancel, instrumentedLot, store, telemetryProvider, sigChan, httpPort)
	default:
		log.Fatalf("Invalid mode: %s. Must be cli, server, or both", *mode)
	}
}

// loadLot restores the slot layout and bookings from storage. The grid
// is generated on the first run only and persisted immediately; later
// runs always reuse the stored layout.
func loadLot(store *storage.Store) (*parking.Lot, error) {
	slots, err := store.LoadSlots()
	if err != nil {
		return nil, err
	}

	if len(slots) == 0 {
		rows := envInt("GRID_ROWS", 5)
		cols := envInt("GRID_COLS", 8)
		slots = parking.NewGrid(rows, cols)
		if err := store.SaveSlots(slots); err != nil {
			return nil, err
		}
		log.Printf("Generated a %dx%d slot grid", rows, cols)
	}

	bookings, err := store.LoadBookings()
	if err != nil {
		return nil, err
	}

	lot := parking.NewLot(slots)
	lot.Restore(bookings)

	log.Printf("Loaded %d slots, %d active bookings", len(slots), len(bookings))
	return lot, nil
}

// startOvertimeSweeper logs bookings past their end time once a
// minute. Observation only: bookings end by user action.
func startOvertimeSweeper(lot *parking.Lot) *cron.Cron {
	c := cron.New()
	c.AddFunc("* * * * *", func() {
		for _, booking := range lot.OvertimeBookings() {
			log.Printf("Overtime: booking %s on slot %s (%s) is %s over",
				booking.ID, booking.SlotID, booking.Plate,
				parking.FormatDuration(booking.Remaining(lot.Now())))
		}
	})
	c.Start()
	return c
}

func runCLI(ctx context.Context, cancel context.CancelFunc, lot *parking.InstrumentedLot, store *storage.Store, telemetryProvider *parking.TelemetryProvider, sigChan chan os.Signal) {
	go func() {
		<-sigChan
		log.Println("Shutting down...")
		cancel()
	}()

	shell := parking.NewShell(lot, store, telemetryProvider, os.Stdin)
	shell.Run(ctx)

	shutdownTelemetry(telemetryProvider)
}

func runServer(ctx context.Context, cancel context.CancelFunc, lot *parking.InstrumentedLot, store *storage.Store, telemetryProvider *parking.TelemetryProvider, sigChan chan os.Signal, port string) {
	srv := server.NewServer(port, server.NewHandler(lot, store))

	go func() {
		<-sigChan
		log.Println("Received shutdown signal...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}

		cancel()
	}()

	log.Printf("Starting server mode on port %s", port)
	if err := srv.Start(); err != nil && err != context.Canceled {
		log.Printf("Server error: %v", err)
	}

	shutdownTelemetry(telemetryProvider)
}

func runBoth(ctx context.Context, cancel context.CancelFunc, lot *parking.InstrumentedLot, store *storage.Store, telemetryProvider *parking.TelemetryProvider, sigChan chan os.Signal, port string) {
	srv := server.NewServer(port, server.NewHandler(lot, store))

	serverDone := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on port %s", port)
		serverDone <- srv.Start()
	}()

	cliDone := make(chan bool, 1)
	go func() {
		shell := parking.NewShell(lot, store, telemetryProvider, os.Stdin)
		shell.Run(ctx)
		cliDone <- true
	}()

	go func() {
		<-sigChan
		log.Println("Received shutdown signal...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}

		cancel()
	}()

	select {
	case err := <-serverDone:
		if err != nil && err != context.Canceled {
			log.Printf("Server error: %v", err)
		}
	case <-cliDone:
		log.Println("CLI exited")
	case <-ctx.Done():
		log.Println("Context cancelled")
	}

	shutdownTelemetry(telemetryProvider)
}

func shutdownTelemetry(telemetryProvider *parking.TelemetryProvider) {
	log.Println("Shutting down telemetry...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := telemetryProvider.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down telemetry: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
