package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nearmiss1193-afk/outreach/internal/domain"
	"github.com/nearmiss1193-afk/outreach/internal/metrics"
	"github.com/nearmiss1193-afk/outreach/internal/ports"
)

type Handler struct {
	ledger   ports.TouchLedger
	leads    ports.LeadRepository
	registry *metrics.Registry
	logger   *slog.Logger
}

func NewHandler(ledger ports.TouchLedger, leads ports.LeadRepository, registry *metrics.Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{ledger: ledger, leads: leads, registry: registry, logger: logger}
}

type callbackRequest struct {
	Event         string `json:"event"`
	ExternalRef   string `json:"external_ref"`
	CorrelationID string `json:"correlation_id"`
}

var validChannels = map[string]domain.Channel{
	string(domain.ChannelEmail): domain.ChannelEmail,
	string(domain.ChannelSMS):   domain.ChannelSMS,
	string(domain.ChannelVoice): domain.ChannelVoice,
}

// deliveryCallback folds an asynchronous provider event into the ledger.
// Delivered events are acknowledged without a write: the touch was already
// recorded as sent, and delivered adds nothing the cadence consults.
func (h *Handler) deliveryCallback(w http.ResponseWriter, r *http.Request) {
	channelParam := chi.URLParam(r, "channel")
	if _, ok := validChannels[channelParam]; !ok {
		writeError(w, http.StatusBadRequest, "UNKNOWN_CHANNEL", "channel must be email, sms or voice")
		return
	}

	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid json body")
		return
	}
	if req.ExternalRef == "" && req.CorrelationID == "" {
		writeError(w, http.StatusBadRequest, "MISSING_REFERENCE", "external_ref or correlation_id is required")
		return
	}

	var status domain.TouchStatus
	switch req.Event {
	case "delivered":
		writeSuccess(w, http.StatusAccepted, map[string]any{"status": "accepted"})
		return
	case "opened":
		status = domain.TouchOpened
	case "replied":
		status = domain.TouchReplied
	case "failed", "bounced":
		status = domain.TouchFailed
	default:
		writeError(w, http.StatusBadRequest, "UNKNOWN_EVENT", "event must be delivered, opened, replied, failed or bounced")
		return
	}

	ref := ports.TouchRef{ExternalRef: req.ExternalRef, CorrelationID: req.CorrelationID}
	touch, err := h.ledger.UpdateTouchStatus(r.Context(), ref, status)
	if errors.Is(err, domain.ErrTouchNotFound) {
		h.registry.ObserveCallback(false)
		h.logger.Warn("callback for unknown touch",
			"event", req.Event,
			"external_ref", req.ExternalRef,
			"correlation_id", req.CorrelationID,
			"request_id", requestIDFromContext(r.Context()),
		)
		writeError(w, http.StatusNotFound, "TOUCH_NOT_FOUND", "no touch matches the given reference")
		return
	}
	if err != nil {
		h.logger.Error("callback update failed", "event", req.Event, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "could not apply callback")
		return
	}

	if status == domain.TouchReplied {
		h.markResponded(r, touch)
	}

	h.registry.ObserveCallback(true)
	h.logger.Info("callback applied",
		"event", req.Event,
		"lead_id", touch.LeadID,
		"channel", touch.Channel,
		"step", touch.Step,
	)
	writeSuccess(w, http.StatusOK, map[string]any{
		"touch_id": touch.ID,
		"status":   string(touch.Status),
	})
}

// markResponded pulls a replying lead out of the cadence. The CAS only moves
// leads still in outreach_sent; anything further along stays put.
func (h *Handler) markResponded(r *http.Request, touch domain.Touch) {
	err := h.leads.UpdateStatus(r.Context(), touch.LeadID, domain.StatusOutreachSent, domain.StatusResponded)
	if err != nil && !errors.Is(err, domain.ErrStaleStatus) {
		h.logger.Error("responded transition failed", "lead_id", touch.LeadID, "error", err)
	}
}
