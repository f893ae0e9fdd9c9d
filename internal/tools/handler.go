package tools

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/wolfman30/pharmacy-assistant/internal/appointments"
	"github.com/wolfman30/pharmacy-assistant/internal/observability/metrics"
	"github.com/wolfman30/pharmacy-assistant/pkg/logging"
)

const maxRequestBytes = 1 << 20

// Request is the body of POST /tools.
type Request struct {
	Action         string                `json:"action"`
	Data           json.RawMessage       `json:"data,omitempty"`
	ConversationID string                `json:"conversationId,omitempty"`
	Caller         *appointments.Patient `json:"caller,omitempty"`
}

// Handler serves the direct tool-invocation surface.
type Handler struct {
	ops     Operations
	metrics *metrics.AppointmentMetrics
	logger  *logging.Logger
}

// NewHandler creates a /tools handler.
func NewHandler(ops Operations, m *metrics.AppointmentMetrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{ops: ops, metrics: m, logger: logger}
}

// ServeHTTP handles POST /tools.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		h.reply(w, "unknown", http.StatusBadRequest, map[string]any{"error": "Invalid payload", "message": err.Error()})
		return
	}

	var caller appointments.Patient
	if req.Caller != nil {
		caller = *req.Caller
	}

	call, err := Decode(req.Action, req.Data, caller)
	if err != nil {
		h.fail(w, actionLabel(req.Action), err)
		return
	}

	logger := h.logger.With("action", call.Action(), "conversation_id", req.ConversationID)
	res, err := call.Dispatch(r.Context(), h.ops)
	if err != nil {
		logger.Warn("tool call failed", "error", err)
		h.fail(w, string(call.Action()), err)
		return
	}
	logger.Info("tool call completed", "found", res.Found)
	h.reply(w, string(call.Action()), http.StatusOK, ResponseBody(res))
}

// ResponseBody renders a Result in the /tools wire shape.
func ResponseBody(res *Result) any {
	switch res.Action {
	case ActionCheckAvailability:
		return res.Availability
	case ActionLookup:
		return map[string]any{"event": res.Appointment}
	default:
		return map[string]any{"success": true, "event": res.Appointment}
	}
}

// StatusFor maps an error from Decode or Dispatch to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownAction), errors.Is(err, ErrInvalidArguments):
		return http.StatusBadRequest
	}
	switch appointments.Classify(err) {
	case appointments.OutcomeInvalidInput, appointments.OutcomeMissingIdentification:
		return http.StatusBadRequest
	case appointments.OutcomeNotFound:
		return http.StatusNotFound
	case appointments.OutcomeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	status := StatusFor(err)
	body := map[string]any{"message": err.Error()}

	var argErr *ArgumentError
	switch {
	case errors.As(err, &argErr):
		body["error"] = "Invalid payload"
		if len(argErr.Fields) > 0 {
			body["details"] = argErr.Fields
		}
	case errors.Is(err, ErrUnknownAction):
		body["error"] = "Unsupported action"
	case errors.Is(err, appointments.ErrMissingIdentification):
		body["error"] = "Missing caller identification (name + phone/email)"
	case status == http.StatusBadRequest:
		body["error"] = "Invalid request"
	case status == http.StatusNotFound:
		body["error"] = "Appointment not found"
	case status == http.StatusBadGateway:
		body["error"] = "Upstream failure"
	default:
		h.logger.Error("tool call internal error", "action", action, "error", err)
		body = map[string]any{"error": "Internal error"}
	}
	h.reply(w, action, status, body)
}

func (h *Handler) reply(w http.ResponseWriter, action string, status int, payload any) {
	h.metrics.ObserveToolCall(action, "tools", strconv.Itoa(status))
	writeJSON(w, status, payload)
}

// actionLabel keeps metric labels inside the closed action set.
func actionLabel(name string) string {
	if a, err := ParseAction(name); err == nil {
		return string(a)
	}
	return "unknown"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
