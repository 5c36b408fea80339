package api

import (
	"io"
	"net/http"

	"github.com/arcana-app/arcana/internal/app/billing"
)

// maxWebhookBody caps provider payloads.
const maxWebhookBody = 1 << 20

// handleStripeWebhook applies a payment provider event. It answers 200 for
// applied, ignored, rejected, and duplicate events so the provider stops
// redelivering; only a malformed envelope (400) or a storage failure (500)
// asks for a retry.
// POST /webhooks/stripe
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	ev, err := billing.ParseEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := s.billing.Handle(r.Context(), ev)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"received":  true,
		"duplicate": out.Duplicate,
		"effect":    out.Effect,
	})
}
