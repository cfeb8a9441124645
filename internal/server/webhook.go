package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shonenark/ark-gateway/internal/domain"
	"github.com/shonenark/ark-gateway/internal/n8n"
	"github.com/shonenark/ark-gateway/internal/signature"
)

// MaxWebhookBody is the largest webhook body accepted.
const MaxWebhookBody = 1 << 20

var workflowPathPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// Forwarder delivers an accepted webhook to n8n.
type Forwarder interface {
	Forward(ctx context.Context, path string, payload any) (*n8n.ForwardResult, error)
}

// WebhookHandler receives signed events and relays them to n8n.
type WebhookHandler struct {
	validator      *signature.Validator
	forwarder      Forwarder
	requiredFields []string
	logger         *slog.Logger
}

// NewWebhookHandler creates the handler. requiredFields are top-level keys
// every payload must carry.
func NewWebhookHandler(v *signature.Validator, f Forwarder, requiredFields []string, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{validator: v, forwarder: f, requiredFields: requiredFields, logger: logger}
}

// WebhookAck is the success response.
type WebhookAck struct {
	Received  bool   `json:"received"`
	Forwarded bool   `json:"forwarded"`
	Workflow  string `json:"workflow"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workflow := chi.URLParam(r, "workflow")
	AddLogField(ctx, "workflow", workflow)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, r, domain.ErrInvalidRequest("payload too large").WithStatusCode(http.StatusRequestEntityTooLarge))
			return
		}
		WriteError(w, r, domain.ErrInvalidRequest("could not read request body"))
		return
	}

	// The signature covers the raw bytes, so it is checked before parsing.
	if res := h.validator.Validate(string(body), r.Header); !res.Valid {
		AddLogField(ctx, "signature_error", res.Error)
		WriteError(w, r, domain.ErrUnauthorized("invalid signature"))
		return
	}

	// Path shape is only revealed to signed callers.
	if !workflowPathPattern.MatchString(workflow) {
		WriteError(w, r, domain.ErrNotFound("unknown webhook"))
		return
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		WriteError(w, r, domain.ErrInvalidRequest("body must be a JSON object"))
		return
	}

	if missing := missingFields(payload, h.requiredFields); len(missing) > 0 {
		apiErr := domain.ErrInvalidRequest("missing required fields")
		apiErr.Missing = missing
		WriteError(w, r, apiErr)
		return
	}

	res, err := h.forwarder.Forward(ctx, workflow, json.RawMessage(body))
	if err != nil {
		AddError(ctx, err)
		h.logger.Error("webhook forward failed",
			slog.String("workflow", workflow),
			slog.String("request_id", GetRequestID(ctx)),
			slog.String("error", err.Error()),
		)
		apiErr := domain.ErrServer("failed to forward webhook")
		if n8n.IsNotConfigured(err) {
			apiErr.WithHint("set N8N_WEBHOOK_URL")
		} else {
			apiErr.WithHint("check that the n8n workflow exists and is active")
		}
		WriteError(w, r, apiErr)
		return
	}
	AddLogField(ctx, "attempts", strconv.Itoa(res.Attempts))

	writeJSON(w, http.StatusOK, WebhookAck{
		Received:  true,
		Forwarded: true,
		Workflow:  workflow,
		RequestID: GetRequestID(ctx),
	})
}

func missingFields(payload map[string]json.RawMessage, required []string) []string {
	var missing []string
	for _, f := range required {
		v, ok := payload[f]
		if !ok || string(v) == "null" {
			missing = append(missing, f)
		}
	}
	return missing
}
