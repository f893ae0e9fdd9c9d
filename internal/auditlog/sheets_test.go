package auditlog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/pharmacy-assistant/pkg/logging"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func newSheetsForTest(t *testing.T, handler http.HandlerFunc) *SheetsSink {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return NewSheetsSinkWithService(svc, SheetsConfig{SpreadsheetID: "sheet-1"}, logging.New("error"))
}

func TestSheetsSink_AppendWritesRawRow(t *testing.T) {
	var (
		gotPath  string
		gotQuery string
		gotBody  sheets.ValueRange
	)
	sink := newSheetsForTest(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
	})

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	err := sink.Append(context.Background(), Entry{
		Timestamp:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Kind:            KindBook,
		EventID:         "evt1",
		Start:           start,
		End:             start.Add(20 * time.Minute),
		PatientName:     "Ana",
		PatientPhone:    "555-0100",
		AppointmentType: "flu_shot",
	})
	require.NoError(t, err)

	assert.True(t, strings.Contains(gotPath, "/spreadsheets/sheet-1/values/"), gotPath)
	assert.Contains(t, gotPath, "Bookings!A:Z:append")
	assert.Contains(t, gotQuery, "valueInputOption=RAW")
	require.Len(t, gotBody.Values, 1)
	row := gotBody.Values[0]
	require.Len(t, row, 10)
	assert.Equal(t, "2026-03-01T12:00:00Z", row[0])
	assert.Equal(t, "book", row[1])
	assert.Equal(t, "evt1", row[2])
	assert.Equal(t, "2026-03-02T09:20:00Z", row[4])
	assert.Equal(t, "flu_shot", row[8])
}

func TestSheetsSink_AppendSurfacesUpstreamError(t *testing.T) {
	sink := newSheetsForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"forbidden"}}`))
	})

	err := sink.Append(context.Background(), Entry{Kind: KindCancel})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auditlog: append row failed")
}

func TestEntryRow_EmptyTimesRenderBlank(t *testing.T) {
	row := Entry{Timestamp: time.Unix(0, 0), Kind: KindCancel}.Row()
	assert.Equal(t, "", row[3])
	assert.Equal(t, "", row[4])
	assert.Equal(t, "cancel", row[1])
}

func TestLogSink_NeverFails(t *testing.T) {
	sink := NewLogSink(logging.New("error"))
	assert.NoError(t, sink.Append(context.Background(), Entry{Kind: KindBook}))
}
