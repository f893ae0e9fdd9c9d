package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/pharmacy-assistant/internal/app/bootstrap"
	"github.com/wolfman30/pharmacy-assistant/internal/chat"
	appconfig "github.com/wolfman30/pharmacy-assistant/internal/config"
	"github.com/wolfman30/pharmacy-assistant/pkg/logging"
)

// llmtest sends one scheduling turn to the configured completion provider
// and prints the reply and any tool calls it requested.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New("error")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	completer, err := bootstrap.BuildCompleter(ctx, cfg, logger)
	if err != nil {
		fmt.Printf("failed to create %s client: %v\n", cfg.ChatProvider, err)
		os.Exit(1)
	}
	if completer == nil {
		fmt.Printf("skipping: no API key configured for %s\n", cfg.ChatProvider)
		return
	}

	req := chat.CompletionRequest{
		Model: cfg.ChatModel,
		Tools: chat.PharmacyTools(),
		Messages: []chat.Message{
			{Role: chat.RoleSystem, Content: chat.SystemPrompt()},
			{Role: chat.RoleUser, Content: "Hi, can I get a flu shot tomorrow morning?"},
		},
	}

	start := time.Now()
	resp, err := completer.Complete(ctx, req)
	if err != nil {
		fmt.Printf("%s error: %v\n", cfg.ChatProvider, err)
		os.Exit(1)
	}
	fmt.Printf("%s responded in %v\n", cfg.ChatProvider, time.Since(start).Round(time.Millisecond))
	if len(resp.Choices) == 0 {
		fmt.Println("no choices returned")
		return
	}
	msg := resp.Choices[0].Message
	if msg.Content != "" {
		fmt.Printf("reply: %s\n", msg.Content)
	}
	for _, tc := range msg.ToolCalls {
		fmt.Printf("tool call %s: %s(%s)\n", tc.ID, tc.Function.Name, tc.Function.Arguments)
	}
	if resp.Usage != nil {
		fmt.Printf("tokens: prompt=%d completion=%d\n", resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
}
