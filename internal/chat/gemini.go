package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model id is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiClient implements Completer on Google's Gemini API with function calling.
type GeminiClient struct {
	client  *genai.Client
	modelID string
}

// NewGeminiClient creates a Gemini-backed Completer.
func NewGeminiClient(ctx context.Context, apiKey, modelID string) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("chat: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("chat: failed to create gemini client: %w", err)
	}
	return &GeminiClient{client: client, modelID: modelID}, nil
}

// Complete sends the conversation to Gemini. System messages become the
// system instruction; tool results are sent back as function responses.
func (c *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := c.client.GenerativeModel(c.modelID)
	if len(req.Tools) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: functionDeclarations(req.Tools)}}
	}

	system, contents := geminiContents(req.Messages)
	if system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}
	if len(contents) == 0 {
		return nil, errors.New("chat: gemini requires at least one message")
	}

	cs := model.StartChat()
	cs.History = contents[:len(contents)-1]
	last := contents[len(contents)-1]

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, fmt.Errorf("chat: gemini completion failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("chat: gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	msg := Message{Role: RoleAssistant}
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text.WriteString(string(p))
		case genai.FunctionCall:
			call, err := toolCallFromGemini(p)
			if err != nil {
				return nil, err
			}
			msg.ToolCalls = append(msg.ToolCalls, call)
		}
	}
	msg.Content = strings.TrimSpace(text.String())

	out := &CompletionResponse{
		ID:      "gemini-" + uuid.NewString(),
		Object:  "chat.completion",
		Model:   c.modelID,
		Choices: []Choice{{Message: msg, FinishReason: strings.ToLower(candidate.FinishReason.String())}},
	}
	if resp.UsageMetadata != nil {
		out.Usage = &Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

// Close releases resources held by the Gemini client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func toolCallFromGemini(fc genai.FunctionCall) (ToolCall, error) {
	args, err := json.Marshal(fc.Args)
	if err != nil {
		return ToolCall{}, fmt.Errorf("chat: encode gemini function args: %w", err)
	}
	return ToolCall{
		ID:       "call_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Type:     "function",
		Function: FunctionCall{Name: fc.Name, Arguments: string(args)},
	}, nil
}

// geminiContents converts chat messages to Gemini contents, merging
// consecutive turns of the same role.
func geminiContents(messages []Message) (string, []*genai.Content) {
	var system []string
	var contents []*genai.Content
	toolNames := make(map[string]string)

	appendParts := func(role string, parts ...genai.Part) {
		if len(parts) == 0 {
			return
		}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, parts...)
			return
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			if s := strings.TrimSpace(msg.Content); s != "" {
				system = append(system, s)
			}
		case RoleAssistant:
			var parts []genai.Part
			if s := strings.TrimSpace(msg.Content); s != "" {
				parts = append(parts, genai.Text(s))
			}
			for _, tc := range msg.ToolCalls {
				toolNames[tc.ID] = tc.Function.Name
				var args map[string]any
				_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
				parts = append(parts, genai.FunctionCall{Name: tc.Function.Name, Args: args})
			}
			appendParts("model", parts...)
		case RoleTool:
			var response map[string]any
			if err := json.Unmarshal([]byte(msg.Content), &response); err != nil {
				response = map[string]any{"content": msg.Content}
			}
			appendParts("user", genai.FunctionResponse{Name: toolNames[msg.ToolCallID], Response: response})
		default:
			if s := strings.TrimSpace(msg.Content); s != "" {
				appendParts("user", genai.Text(s))
			}
		}
	}
	return strings.Join(system, "\n\n"), contents
}

func functionDeclarations(tools []Tool) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		params := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: make(map[string]*genai.Schema, len(t.Parameters.Properties)),
			Required:   t.Parameters.Required,
		}
		for name, p := range t.Parameters.Properties {
			params.Properties[name] = &genai.Schema{
				Type:        geminiType(p.Type),
				Description: p.Description,
				Enum:        p.Enum,
				Format:      p.Format,
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
		})
	}
	return decls
}

func geminiType(t string) genai.Type {
	switch t {
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}
