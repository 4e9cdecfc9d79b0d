package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/mtarnawa/hanashi/internal/billing"
	"github.com/mtarnawa/hanashi/internal/billing/stripe"
)

const maxWebhookBody = 65536

type WebhookHandler struct {
	stripeClient *stripe.Client
	processor    *billing.Processor
	logger       *slog.Logger
}

func NewWebhookHandler(sc *stripe.Client, processor *billing.Processor, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{stripeClient: sc, processor: processor, logger: logger}
}

// HandleStripeWebhook verifies the signature and applies the event. A 200
// tells the provider to stop redelivering; anything that must be retried
// returns a 500.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	event, err := h.stripeClient.ConstructWebhookEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	result, err := h.processor.Apply(event.ID, string(event.Type), event.Data.Raw)
	if err != nil {
		h.logger.Error("apply billing event", "event_id", event.ID, "event_type", event.Type, "error", err)
		http.Error(w, "event processing failed", http.StatusInternalServerError)
		return
	}

	h.logger.Info("billing event", "event_id", event.ID, "event_type", event.Type,
		"duplicate", result.Duplicate, "applied", result.Applied)
	w.WriteHeader(http.StatusOK)
}
