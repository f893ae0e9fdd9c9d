package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/pharmacy-assistant/internal/app/bootstrap"
	appconfig "github.com/wolfman30/pharmacy-assistant/internal/config"
	"github.com/wolfman30/pharmacy-assistant/pkg/logging"
)

// seed-calendar fills the configured calendar with demo appointments so the
// assistant has realistic busy and free slots to work with.
func main() {
	days := flag.Int("days", 5, "number of calendar days to seed, starting today")
	flag.Parse()

	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// The cache is skipped here; the seeder writes straight to the calendar.
	gateway, err := bootstrap.BuildCalendar(ctx, cfg, nil, logger)
	if err != nil {
		logger.Error("failed to build calendar", "error", err)
		os.Exit(1)
	}

	s := &seeder{gateway: gateway, location: cfg.Location(), logger: logger}
	created, skipped := s.Run(ctx, time.Now(), *days)
	fmt.Printf("Demo calendar ready: created %d events, skipped %d existing\n", created, skipped)
}
