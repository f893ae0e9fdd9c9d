package auditlog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/pharmacy-assistant/pkg/logging"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	defaultTab     = "Bookings"
	defaultTimeout = 15 * time.Second
)

// SheetsConfig configures the Google Sheets sink.
type SheetsConfig struct {
	SpreadsheetID string
	Tab           string
	Timeout       time.Duration
}

// SheetsSink appends one row per entry to a Google Sheet.
type SheetsSink struct {
	svc           *sheets.Service
	spreadsheetID string
	tab           string
	timeout       time.Duration
	logger        *logging.Logger
}

// NewSheetsSink builds a sink authenticated with service-account credentials JSON.
func NewSheetsSink(ctx context.Context, cfg SheetsConfig, credentialsJSON []byte, logger *logging.Logger) (*SheetsSink, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("auditlog: spreadsheet id is required")
	}
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("auditlog: failed to create sheets client: %w", err)
	}
	return NewSheetsSinkWithService(svc, cfg, logger), nil
}

// NewSheetsSinkWithService wraps an existing Sheets client.
func NewSheetsSinkWithService(svc *sheets.Service, cfg SheetsConfig, logger *logging.Logger) *SheetsSink {
	if logger == nil {
		logger = logging.Default()
	}
	tab := strings.TrimSpace(cfg.Tab)
	if tab == "" {
		tab = defaultTab
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &SheetsSink{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		tab:           tab,
		timeout:       timeout,
		logger:        logger,
	}
}

// Append writes entry as a raw row at the end of the configured tab.
func (s *SheetsSink) Append(ctx context.Context, entry Entry) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	values := &sheets.ValueRange{Values: [][]any{entry.Row()}}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, s.tab+"!A:Z", values).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("auditlog: append row failed: %w", err)
	}
	s.logger.Debug("audit row appended", "kind", entry.Kind, "event_id", entry.EventID)
	return nil
}
