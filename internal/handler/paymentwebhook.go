package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/enum"
	"github.com/pedefacil/api/internal/mercadopago"
	"github.com/pedefacil/api/internal/status"
)

// PaymentVerifier fetches the authoritative payment state from the gateway.
// Satisfied by *mercadopago.Client.
type PaymentVerifier interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
}

// PaymentOrderStore defines the DB methods needed to settle payments.
type PaymentOrderStore interface {
	MarkOrderPaid(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (database.Order, error)
}

// PaymentWebhookHandler consumes Mercado Pago payment notifications. The
// notification body is treated as a hint only: the payment is re-fetched from
// the gateway before any order changes state.
type PaymentWebhookHandler struct {
	store    PaymentOrderStore
	verifier PaymentVerifier
}

func NewPaymentWebhookHandler(store PaymentOrderStore, verifier PaymentVerifier) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{store: store, verifier: verifier}
}

// paymentID tolerates both JSON string and JSON number encodings; the gateway
// has sent both over time.
type paymentID string

func (p *paymentID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if string(b) == "null" {
		return nil
	}
	*p = paymentID(b)
	return nil
}

type paymentWebhookRequest struct {
	Action string    `json:"action"`
	Type   string    `json:"type"`
	ID     paymentID `json:"id"`
	Data   struct {
		ID paymentID `json:"id"`
	} `json:"data"`
}

func (r *paymentWebhookRequest) action() string {
	if r.Action != "" {
		return r.Action
	}
	return r.Type
}

func (r *paymentWebhookRequest) paymentID() string {
	if r.Data.ID != "" {
		return string(r.Data.ID)
	}
	return string(r.ID)
}

// Receive handles POST /webhooks/payments.
//
// Non-actionable notifications are acknowledged with 200 so the gateway stops
// retrying; 500 is reserved for failures where a retry can actually succeed
// (gateway unreachable, database down).
func (h *PaymentWebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req paymentWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.action() != enum.PaymentActionUpdated {
		writeJSON(w, http.StatusOK, map[string]string{"ignored": "not a payment update"})
		return
	}

	pid := req.paymentID()
	if pid == "" {
		writeJSON(w, http.StatusOK, map[string]string{"ignored": "no payment id"})
		return
	}

	payment, err := h.verifier.GetPayment(r.Context(), pid)
	if err != nil {
		if errors.Is(err, mercadopago.ErrNoCredential) {
			log.Printf("ERROR: payment webhook: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "payment verification unavailable"})
			return
		}
		log.Printf("ERROR: payment webhook: verify payment %s: %v", pid, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "payment verification failed"})
		return
	}

	if payment.Status != enum.PaymentStatusApproved {
		writeJSON(w, http.StatusOK, map[string]string{"ignored": "payment not approved"})
		return
	}

	orderID, err := uuid.Parse(payment.ExternalReference)
	if err != nil {
		log.Printf("WARN: payment webhook: payment %s carries no usable order reference (%q)", pid, payment.ExternalReference)
		writeJSON(w, http.StatusOK, map[string]string{"ignored": "no order reference"})
		return
	}

	order, err := h.store.MarkOrderPaid(r.Context(), database.MarkOrderPaidParams{
		ID:        orderID,
		PaymentID: pid,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.ackAlreadySettled(w, r, orderID, pid)
			return
		}
		log.Printf("ERROR: payment webhook: mark order %s paid: %v", orderID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	log.Printf("order %s marked paid (payment %s)", order.ID, pid)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "order_id": order.ID})
}

// ackAlreadySettled distinguishes a redelivered notification (the order
// already left pending_payment) from a reference to an order that does not
// exist. Both are acknowledged; only the latter is suspicious enough to log.
func (h *PaymentWebhookHandler) ackAlreadySettled(w http.ResponseWriter, r *http.Request, orderID uuid.UUID, pid string) {
	order, err := h.store.GetOrderByID(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Printf("WARN: payment webhook: payment %s references unknown order %s", pid, orderID)
			writeJSON(w, http.StatusOK, map[string]string{"ignored": "unknown order"})
			return
		}
		log.Printf("ERROR: payment webhook: get order %s: %v", orderID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if order.Status == status.PendingPayment {
		// Should not happen: the CAS said no rows but the order is still
		// pending. Let the gateway retry.
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "order_id": order.ID, "message": "already processed"})
}
