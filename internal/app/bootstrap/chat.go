package bootstrap

import (
	"context"
	"fmt"

	"github.com/wolfman30/pharmacy-assistant/internal/chat"
	appconfig "github.com/wolfman30/pharmacy-assistant/internal/config"
	"github.com/wolfman30/pharmacy-assistant/pkg/logging"
)

// BuildCompleter wires the configured chat-completion provider. It returns
// nil, nil when the provider has no API key so /chat can report itself
// unavailable while /tools keeps working.
func BuildCompleter(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (chat.Completer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	switch cfg.ChatProvider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			logger.Warn("chat provider gemini selected but GEMINI_API_KEY is empty; chat disabled")
			return nil, nil
		}
		client, err := chat.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		logger.Info("chat provider enabled", "provider", "gemini", "model", cfg.GeminiModelID)
		return client, nil
	default:
		if cfg.RetellAPIKey == "" {
			logger.Warn("RETELL_API_KEY is empty; chat disabled")
			return nil, nil
		}
		client, err := chat.NewRetellClient(cfg.RetellAPIKey, chat.WithBaseURL(cfg.RetellBaseURL), chat.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("bootstrap: retell client: %w", err)
		}
		logger.Info("chat provider enabled", "provider", "retell", "model", cfg.ChatModel)
		return client, nil
	}
}

// unavailableCompleter fails every completion; the chat handler turns the
// failure into its apologetic 500 response.
type unavailableCompleter struct{}

func (unavailableCompleter) Complete(context.Context, chat.CompletionRequest) (*chat.CompletionResponse, error) {
	return nil, fmt.Errorf("chat: no completion provider configured")
}
