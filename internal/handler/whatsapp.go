package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/enum"
	"github.com/pedefacil/api/internal/service"
)

// orderIntentKeywords is the vocabulary that marks a message as an order
// request. Substring match, case-insensitive.
var orderIntentKeywords = []string{"pedido", "lanche"}

// WhatsAppTenantStore resolves messaging instances to tenants.
type WhatsAppTenantStore interface {
	GetTenantByInstanceName(ctx context.Context, instanceName string) (database.Tenant, error)
}

// WhatsAppOrderCreator creates orders from inbound messages.
// Satisfied by *service.OrderService.
type WhatsAppOrderCreator interface {
	CreateWhatsAppOrder(ctx context.Context, req service.CreateWhatsAppOrderRequest) (*service.CreateOrderResult, error)
}

// WhatsAppHandler consumes Evolution API webhook events. Everything that is
// not an actionable order-intent message is acknowledged with 200 and no side
// effect: failing the webhook only provokes retries of events that will never
// become processable.
type WhatsAppHandler struct {
	tenants WhatsAppTenantStore
	orders  WhatsAppOrderCreator
}

func NewWhatsAppHandler(tenants WhatsAppTenantStore, orders WhatsAppOrderCreator) *WhatsAppHandler {
	return &WhatsAppHandler{tenants: tenants, orders: orders}
}

// --- Request types (Evolution API webhook shape) ---

type whatsAppWebhookRequest struct {
	Instance string            `json:"instance"`
	Event    string            `json:"event"`
	Data     whatsAppEventData `json:"data"`
}

type whatsAppEventData struct {
	Key struct {
		RemoteJid string `json:"remoteJid"`
		FromMe    bool   `json:"fromMe"`
	} `json:"key"`
	Message  *whatsAppMessage `json:"message"`
	PushName string           `json:"pushName"`
}

// whatsAppMessage covers the two text shapes the gateway emits.
type whatsAppMessage struct {
	Conversation        string `json:"conversation"`
	ExtendedTextMessage *struct {
		Text string `json:"text"`
	} `json:"extendedTextMessage"`
}

func (m *whatsAppMessage) text() string {
	if m == nil {
		return ""
	}
	if m.Conversation != "" {
		return m.Conversation
	}
	if m.ExtendedTextMessage != nil {
		return m.ExtendedTextMessage.Text
	}
	return ""
}

// --- Handler ---

// Receive handles POST /webhooks/whatsapp.
func (h *WhatsAppHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req whatsAppWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Unparseable bodies are noise too; retrying them cannot help.
		writeJSON(w, http.StatusOK, map[string]string{"ignored": "unparseable body"})
		return
	}

	if !isMessageUpsert(req.Event) {
		writeJSON(w, http.StatusOK, map[string]string{"ignored": "not a message event"})
		return
	}
	if req.Data.Key.FromMe {
		writeJSON(w, http.StatusOK, map[string]string{"ignored": "self-sent message"})
		return
	}
	if req.Instance == "" {
		writeJSON(w, http.StatusOK, map[string]string{"ignored": "no instance identifier"})
		return
	}

	tenant, err := h.tenants.GetTenantByInstanceName(r.Context(), req.Instance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Printf("WARN: whatsapp webhook: no tenant for instance %q", req.Instance)
			writeJSON(w, http.StatusOK, map[string]string{"ignored": "unknown instance"})
			return
		}
		log.Printf("ERROR: whatsapp webhook: resolve tenant: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	text := req.Data.Message.text()
	if text == "" {
		writeJSON(w, http.StatusOK, map[string]string{"ignored": "no text content"})
		return
	}

	if !hasOrderIntent(text) {
		writeJSON(w, http.StatusOK, map[string]string{"ignored": "no order intent"})
		return
	}

	phone := phoneFromJid(req.Data.Key.RemoteJid)

	result, err := h.orders.CreateWhatsAppOrder(r.Context(), service.CreateWhatsAppOrderRequest{
		TenantID:      tenant.ID,
		CustomerPhone: phone,
		CustomerName:  req.Data.PushName,
		MessageText:   text,
	})
	if err != nil {
		if errors.Is(err, service.ErrOpenOrderExists) {
			writeJSON(w, http.StatusOK, map[string]string{"message": "open order exists"})
			return
		}
		log.Printf("ERROR: whatsapp webhook: create order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	log.Printf("whatsapp order %s created for tenant %s", result.Order.ID, tenant.ID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "order_id": result.Order.ID})
}

// --- Helpers ---

// isMessageUpsert accepts both event spellings the gateway has used.
func isMessageUpsert(event string) bool {
	return event == enum.EventMessagesUpsert || event == enum.EventMessagesUpsertAlt
}

func hasOrderIntent(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range orderIntentKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// phoneFromJid strips the server suffix from a WhatsApp JID
// ("5511999@s.whatsapp.net" → "5511999").
func phoneFromJid(jid string) string {
	phone, _, _ := strings.Cut(jid, "@")
	return phone
}
