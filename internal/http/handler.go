package http

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/models"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/settlement"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/store"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/sumup"
	"github.com/safari123-code/tikzok-auto-recharge-backend/internal/whatsapp"

	"github.com/go-chi/chi/v5"
)

const maxWebhookBody = 1 << 20

type ConversationEngine interface {
	HandleIncoming(ctx context.Context, from, text, messageID string) error
}

type OrderReader interface {
	Get(ctx context.Context, publicID string) (*models.Order, error)
}

type Handler struct {
	Engine     ConversationEngine
	Reconciler *settlement.Reconciler
	Orders     OrderReader

	VerifyToken string
	AppSecret   string
	Production  bool
}

// WhatsAppVerify answers Meta's webhook subscription handshake.
func (h *Handler) WhatsAppVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == h.VerifyToken {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(q.Get("hub.challenge")))
		return
	}
	writeError(w, http.StatusForbidden, "verification failed")
}

// WhatsAppInbound feeds one user message through the conversation engine.
// Handler errors are logged, not returned: the channel retries on non-2xx
// and a retried message would replay a state transition.
func (h *Handler) WhatsAppInbound(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if h.Production {
		sig := r.Header.Get("X-Hub-Signature-256")
		if sig == "" || !whatsapp.VerifySignature(h.AppSecret, body, sig) {
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}

	incoming := whatsapp.ParseIncoming(body)
	if incoming == nil {
		// Status updates and non-text payloads are expected traffic.
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	if err := h.Engine.HandleIncoming(r.Context(), incoming.From, incoming.Text, incoming.MessageID); err != nil {
		log.Printf("whatsapp inbound failed: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// SumUpWebhook acknowledges every delivery with 200. The provider disables
// endpoints that keep failing, so the contract is "received", never
// "settled"; reconciliation failures surface in logs only.
func (h *Handler) SumUpWebhook(w http.ResponseWriter, r *http.Request) {
	defer writeJSON(w, http.StatusOK, map[string]bool{"ok": true})

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Printf("sumup webhook unreadable body: %v", err)
		return
	}

	sig, err := sumup.ParseEvent(body)
	if err != nil {
		log.Printf("sumup webhook ignored: %v", err)
		return
	}

	if err := h.Reconciler.Reconcile(r.Context(), sig); err != nil {
		log.Printf("sumup webhook reconcile failed: %v", err)
	}
}

type orderResponse struct {
	PublicID    string `json:"publicId"`
	Status      string `json:"status"`
	Operator    string `json:"operator"`
	CountryCode string `json:"countryCode"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Fee         string `json:"fee"`
	Total       string `json:"total"`
	PhoneMasked string `json:"phoneMasked"`
	PaidAt      string `json:"paidAt,omitempty"`
	CompletedAt string `json:"completedAt,omitempty"`
}

// GetOrder exposes a status projection with no PII beyond the masked phone.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	publicID := chi.URLParam(r, "publicId")
	if publicID == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.Orders.Get(r.Context(), publicID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "get order failed")
		return
	}

	resp := orderResponse{
		PublicID:    order.PublicID,
		Status:      string(order.Status),
		Operator:    order.OperatorName,
		CountryCode: order.CountryCode,
		Amount:      order.Amount.StringFixed(2),
		Currency:    order.Currency,
		Fee:         order.Fee.StringFixed(2),
		Total:       order.Total.StringFixed(2),
		PhoneMasked: order.PhoneMasked,
	}
	if order.PaidAt != nil {
		resp.PaidAt = order.PaidAt.Format(time.RFC3339)
	}
	if order.CompletedAt != nil {
		resp.CompletedAt = order.CompletedAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}
