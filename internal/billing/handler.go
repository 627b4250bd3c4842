package billing

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// Handler serves the payment-event intake endpoint. The payment gateway in
// front of it has already verified the provider signature.
type Handler struct {
	processor *Processor
	logger    *slog.Logger
}

func NewHandler(processor *Processor, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{processor: processor, logger: logger}
}

// HandleEvent handles POST /v1/billing/events. Duplicate deliveries return
// 200 like first deliveries: the payment provider only needs to know the
// event landed.
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var event PaymentEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	if err := h.processor.Process(r.Context(), event); err != nil {
		if errors.Is(err, ErrInvalidEvent) {
			http.Error(w, `{"error":"invalid payment event"}`, http.StatusBadRequest)
			return
		}
		h.logger.Error("payment event processing failed",
			"event_id", event.ExternalEventID, "error", err)
		// Non-2xx makes the provider redeliver; the idempotent credit makes
		// redelivery safe.
		http.Error(w, `{"error":"event processing failed"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "processed"})
}
