package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/pharmacy-assistant/internal/appointments"
	"github.com/wolfman30/pharmacy-assistant/internal/observability/metrics"
	"github.com/wolfman30/pharmacy-assistant/internal/tools"
	"github.com/wolfman30/pharmacy-assistant/pkg/logging"
)

const (
	maxRequestBytes = 1 << 20

	fallbackReply    = "How can I help you with your pharmacy appointment today?"
	fallbackFollowUp = "I've processed your request. How else can I help you today?"
	apologyReply     = "I apologize, but I'm experiencing some technical difficulties. Please try again in a moment or contact our support team directly."
)

// Request is the body of POST /chat.
type Request struct {
	Messages []Message             `json:"messages"`
	Metadata map[string]any        `json:"metadata,omitempty"`
	Caller   *appointments.Patient `json:"caller,omitempty"`
}

// Response is the body of a successful POST /chat.
type Response struct {
	ID      string  `json:"id"`
	Message Message `json:"message"`
	Usage   *Usage  `json:"usage,omitempty"`
}

// HandlerConfig tunes the chat handler.
type HandlerConfig struct {
	Model    string
	Location *time.Location
	Now      func() time.Time
}

// Handler serves the conversational surface.
type Handler struct {
	completer Completer
	ops       tools.Operations
	metrics   *metrics.AppointmentMetrics
	logger    *logging.Logger
	cfg       HandlerConfig
	tools     []Tool
	prompt    string
}

// NewHandler creates a chat handler.
func NewHandler(completer Completer, ops tools.Operations, m *metrics.AppointmentMetrics, logger *logging.Logger, cfg HandlerConfig) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Handler{
		completer: completer,
		ops:       ops,
		metrics:   m,
		logger:    logger,
		cfg:       cfg,
		tools:     PharmacyTools(),
		prompt:    SystemPrompt(),
	}
}

// Routes returns the /chat routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Chat)
	r.Get("/health", h.Health)
	return r
}

// Health reports liveness of the chat surface.
// GET /chat/health
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   "pharmacy-chat",
		"timestamp": h.cfg.Now().UTC().Format(time.RFC3339),
	})
}

// Chat runs one assistant turn, executing any tool calls the model requests.
// POST /chat
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid payload", "message": err.Error()})
		return
	}

	caller := callerFrom(req)
	messages := append([]Message{{Role: RoleSystem, Content: h.prompt}}, req.Messages...)
	metadata := make(map[string]any, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata["caller"] = caller

	resp, err := h.complete(r.Context(), CompletionRequest{Messages: messages, Model: h.cfg.Model, Tools: h.tools, Metadata: metadata})
	if err != nil {
		h.unavailable(w, "chat completion failed", err)
		return
	}
	if len(resp.Choices) == 0 {
		h.unavailable(w, "chat completion returned no choices", errors.New("no choices"))
		return
	}

	choice := resp.Choices[0]
	if len(choice.Message.ToolCalls) == 0 {
		writeJSON(w, http.StatusOK, Response{
			ID:      resp.ID,
			Message: Message{Role: RoleAssistant, Content: orDefault(choice.Message.Content, fallbackReply)},
			Usage:   resp.Usage,
		})
		return
	}

	assistant := choice.Message
	assistant.Role = RoleAssistant
	messages = append(messages, assistant)
	for _, tc := range choice.Message.ToolCalls {
		messages = append(messages, Message{
			Role:       RoleTool,
			ToolCallID: tc.ID,
			Content:    h.executeTool(r.Context(), tc, caller),
		})
	}

	followUp, err := h.complete(r.Context(), CompletionRequest{Messages: messages, Model: h.cfg.Model, Tools: h.tools})
	if err != nil {
		h.unavailable(w, "follow-up completion failed", err)
		return
	}
	content := ""
	if len(followUp.Choices) > 0 {
		content = followUp.Choices[0].Message.Content
	}
	writeJSON(w, http.StatusOK, Response{
		ID:      followUp.ID,
		Message: Message{Role: RoleAssistant, Content: orDefault(content, fallbackFollowUp)},
		Usage:   followUp.Usage,
	})
}

func (h *Handler) complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	started := time.Now()
	resp, err := h.completer.Complete(ctx, req)
	status := "success"
	if err != nil {
		status = "error"
	}
	h.metrics.ObserveCompletion(status, time.Since(started).Seconds())
	return resp, err
}

// executeTool runs one tool call and renders its outcome as the JSON content
// of a tool message. Failures become apologetic messages for the model.
func (h *Handler) executeTool(ctx context.Context, tc ToolCall, caller appointments.Patient) string {
	logger := h.logger.With("tool", tc.Function.Name, "tool_call_id", tc.ID)

	call, err := tools.Decode(tc.Function.Name, json.RawMessage(tc.Function.Arguments), caller)
	if err != nil {
		logger.Warn("tool call rejected", "error", err)
		h.metrics.ObserveToolCall(toolLabel(tc.Function.Name), "chat", "rejected")
		return encodeToolResult(h.failureResult(err))
	}

	res, err := call.Dispatch(ctx, h.ops)
	if err != nil {
		logger.Warn("tool call failed", "error", err)
		h.metrics.ObserveToolCall(string(call.Action()), "chat", string(appointments.Classify(err)))
		return encodeToolResult(h.failureResult(err))
	}
	h.metrics.ObserveToolCall(string(call.Action()), "chat", "success")
	return encodeToolResult(h.successResult(res))
}

func (h *Handler) successResult(res *tools.Result) map[string]any {
	switch res.Action {
	case tools.ActionCheckAvailability:
		return map[string]any{
			"success": true,
			"slots":   res.Availability.Slots,
			"total":   res.Availability.Total,
			"message": res.Availability.Message,
		}
	case tools.ActionBook:
		what := "pharmacy"
		if t, ok := appointments.LookupType(res.Appointment.AppointmentType); ok {
			what = t.Label
		}
		msg := fmt.Sprintf("Great! I've successfully booked your %s appointment for %s.", what, h.formatTime(res.Appointment.Start))
		if res.Appointment.Patient.Email != "" {
			msg += " You'll receive a confirmation email shortly."
		}
		return map[string]any{"success": true, "event": res.Appointment, "message": msg}
	case tools.ActionReschedule:
		return map[string]any{
			"success": true,
			"event":   res.Appointment,
			"message": fmt.Sprintf("Perfect! I've rescheduled your appointment to %s.", h.formatTime(res.Appointment.Start)),
		}
	case tools.ActionCancel:
		return map[string]any{
			"success": true,
			"event":   res.Appointment,
			"message": "I've successfully cancelled your appointment. If you need to reschedule, please let me know and I'll be happy to help you find a new time.",
		}
	case tools.ActionLookup:
		if !res.Found {
			return map[string]any{"success": false, "message": notFoundMessage}
		}
		return map[string]any{
			"success": true,
			"event":   res.Appointment,
			"message": fmt.Sprintf("I found your appointment scheduled for %s. How can I help you with this appointment?", h.formatTime(res.Appointment.Start)),
		}
	}
	return map[string]any{"success": false, "message": unclearMessage}
}

const (
	notFoundMessage = "I couldn't find any appointments matching that information. Could you please double-check your details?"
	unclearMessage  = "I'm not sure how to help with that request. Could you please clarify what you'd like to do?"
)

func (h *Handler) failureResult(err error) map[string]any {
	var msg string
	switch {
	case errors.Is(err, tools.ErrUnknownAction):
		msg = unclearMessage
	case errors.Is(err, appointments.ErrMissingIdentification):
		msg = "Please provide the patient's name and a phone number or email address so I can book the appointment."
	case errors.Is(err, appointments.ErrNotFound):
		msg = notFoundMessage
	case errors.Is(err, tools.ErrInvalidArguments), errors.Is(err, appointments.ErrInvalidInput), errors.Is(err, appointments.ErrUpstream):
		msg = fmt.Sprintf("I encountered an issue: %s. Please try again or contact our support team.", err.Error())
	default:
		msg = "I encountered an unexpected issue. Please try again or contact our support team."
	}
	return map[string]any{"success": false, "message": msg}
}

func (h *Handler) formatTime(t time.Time) string {
	return t.In(h.cfg.Location).Format("Monday, January 2 at 3:04 PM MST")
}

func (h *Handler) unavailable(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"error":   "Chat service temporarily unavailable",
		"message": apologyReply,
	})
}

// callerFrom prefers the top-level caller and falls back to metadata.caller.
func callerFrom(req Request) appointments.Patient {
	if req.Caller != nil {
		return *req.Caller
	}
	var caller appointments.Patient
	if raw, ok := req.Metadata["caller"]; ok {
		if b, err := json.Marshal(raw); err == nil {
			_ = json.Unmarshal(b, &caller)
		}
	}
	return caller
}

func toolLabel(name string) string {
	if a, err := tools.ParseAction(name); err == nil {
		return string(a)
	}
	return "unknown"
}

func encodeToolResult(v map[string]any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{"success":false,"message":"I encountered an unexpected issue. Please try again or contact our support team."}`
	}
	return string(b)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
