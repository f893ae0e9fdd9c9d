package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/pharmacy-assistant/internal/chat"
	"github.com/wolfman30/pharmacy-assistant/pkg/logging"
)

func TestBuildCompleterWithoutKeysDisablesChat(t *testing.T) {
	cfg := testConfig()
	completer, err := BuildCompleter(context.Background(), cfg, logging.Default())
	require.NoError(t, err)
	assert.Nil(t, completer)

	cfg.ChatProvider = "gemini"
	completer, err = BuildCompleter(context.Background(), cfg, logging.Default())
	require.NoError(t, err)
	assert.Nil(t, completer)
}

func TestBuildCompleterRetell(t *testing.T) {
	cfg := testConfig()
	cfg.RetellAPIKey = "key_123"
	cfg.RetellBaseURL = "https://retell.example/v2"

	completer, err := BuildCompleter(context.Background(), cfg, logging.Default())
	require.NoError(t, err)
	assert.IsType(t, &chat.RetellClient{}, completer)
}

func TestBuildServesRoutes(t *testing.T) {
	app, err := Build(context.Background(), testConfig(), logging.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	rec := httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	body := `{"action":"check_availability","data":{"appointmentType":"flu_shot"}}`
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tools", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "slots")

	// No completion provider: the chat surface answers with its apology.
	rec = httptest.NewRecorder()
	body = `{"messages":[{"role":"user","content":"hi"}]}`
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	app.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "pharmacy_tools_calls_total")
}
