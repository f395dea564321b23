package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pedefacil/api/internal/database"
	"github.com/pedefacil/api/internal/enum"
	"github.com/pedefacil/api/internal/evolution"
)

// defaultAdminPin is the fallback before a tenant sets its own. Verify
// responses flag it so the UI can force a change.
const defaultAdminPin = "1234"

// TenantStore defines the database methods needed by tenant handlers.
type TenantStore interface {
	GetTenant(ctx context.Context, id uuid.UUID) (database.Tenant, error)
	UpdateTenantSettings(ctx context.Context, arg database.UpdateTenantSettingsParams) (database.Tenant, error)
	UpdateTenantInstance(ctx context.Context, arg database.UpdateTenantInstanceParams) (database.Tenant, error)
	UpdateTenantPin(ctx context.Context, arg database.UpdateTenantPinParams) (database.Tenant, error)
}

// InstanceProvisioner drives the WhatsApp gateway.
// Satisfied by *evolution.Client.
type InstanceProvisioner interface {
	CreateInstance(ctx context.Context, req evolution.CreateInstanceRequest) error
	Connect(ctx context.Context, instanceName string) (*evolution.ConnectResponse, error)
	ConnectionState(ctx context.Context, instanceName string) (*evolution.ConnectionStateResponse, error)
}

// TenantHandler handles tenant settings, admin PIN and messaging instance
// provisioning.
type TenantHandler struct {
	store       TenantStore
	provisioner InstanceProvisioner
}

func NewTenantHandler(store TenantStore, provisioner InstanceProvisioner) *TenantHandler {
	return &TenantHandler{store: store, provisioner: provisioner}
}

func (h *TenantHandler) RegisterRoutes(r chi.Router) {
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.UpdateSettings)
	r.Post("/pin/verify", h.VerifyPin)
	r.Put("/pin", h.UpdatePin)
	r.Post("/instance", h.ProvisionInstance)
	r.Get("/instance/qr", h.InstanceQR)
	r.Get("/instance/state", h.InstanceState)
}

// --- Request / Response types ---

type tenantSettingsRequest struct {
	Name       string `json:"name"`
	PixKey     string `json:"pix_key"`
	PixKeyType string `json:"pix_key_type"`
}

type tenantSettingsJSON struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	PixKey       *string   `json:"pix_key"`
	PixKeyType   *string   `json:"pix_key_type"`
	InstanceName *string   `json:"instance_name"`
}

type pinRequest struct {
	Pin string `json:"pin"`
}

func tenantSettingsResponse(t database.Tenant) tenantSettingsJSON {
	out := tenantSettingsJSON{ID: t.ID, Name: t.Name}
	if t.PixKey.Valid {
		out.PixKey = &t.PixKey.String
	}
	if t.PixKeyType.Valid {
		out.PixKeyType = &t.PixKeyType.String
	}
	if t.EvolutionInstanceName.Valid {
		out.InstanceName = &t.EvolutionInstanceName.String
	}
	return out
}

// --- Handlers ---

func (h *TenantHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantIDFromRequest(r)

	tenant, err := h.store.GetTenant(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not found"})
			return
		}
		log.Printf("ERROR: get tenant: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, tenantSettingsResponse(tenant))
}

func (h *TenantHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantIDFromRequest(r)

	var req tenantSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.PixKeyType != "" && !enum.IsValidPixKeyType(req.PixKeyType) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid pix_key_type"})
		return
	}

	tenant, err := h.store.UpdateTenantSettings(r.Context(), database.UpdateTenantSettingsParams{
		ID:         tenantID,
		Name:       req.Name,
		PixKey:     textOrNull(req.PixKey),
		PixKeyType: textOrNull(req.PixKeyType),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not found"})
			return
		}
		log.Printf("ERROR: update tenant settings: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, tenantSettingsResponse(tenant))
}

// VerifyPin checks the admin PIN guarding the settings screens. Tenants that
// never set one get the default, and the response says so.
func (h *TenantHandler) VerifyPin(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantIDFromRequest(r)

	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	tenant, err := h.store.GetTenant(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not found"})
			return
		}
		log.Printf("ERROR: get tenant: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	pin := defaultAdminPin
	usingDefault := true
	if tenant.AdminPin.Valid && tenant.AdminPin.String != "" {
		pin = tenant.AdminPin.String
		usingDefault = false
	}

	if req.Pin != pin {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "incorrect PIN"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "default_pin": usingDefault})
}

func (h *TenantHandler) UpdatePin(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantIDFromRequest(r)

	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if len(req.Pin) < 4 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "PIN must be at least 4 digits"})
		return
	}

	if _, err := h.store.UpdateTenantPin(r.Context(), database.UpdateTenantPinParams{
		ID:       tenantID,
		AdminPin: req.Pin,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not found"})
			return
		}
		log.Printf("ERROR: update tenant pin: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "PIN updated"})
}

// ProvisionInstance registers a messaging instance for the tenant and returns
// the pairing QR code. The instance name is derived from the tenant id so
// inbound webhooks can be resolved back. A tenant that already has an
// instance keeps it: creating again would overwrite the stored credential and
// orphan a possibly paired session, so re-provisioning only re-requests the QR.
func (h *TenantHandler) ProvisionInstance(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantIDFromRequest(r)

	tenant, err := h.store.GetTenant(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not found"})
			return
		}
		log.Printf("ERROR: get tenant: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	instanceName := instanceNameFor(tenantID)
	created := false

	if tenant.EvolutionInstanceName.Valid {
		instanceName = tenant.EvolutionInstanceName.String
	} else {
		// The instance token doubles as the per-tenant gateway credential;
		// it equals the instance name so webhook payloads are self-describing.
		if err := h.provisioner.CreateInstance(r.Context(), evolution.CreateInstanceRequest{
			InstanceName: instanceName,
			Token:        instanceName,
			QRCode:       true,
			Integration:  "WHATSAPP-BAILEYS",
		}); err != nil {
			log.Printf("ERROR: provision instance: %v", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "messaging gateway unavailable"})
			return
		}

		if _, err := h.store.UpdateTenantInstance(r.Context(), database.UpdateTenantInstanceParams{
			ID:                    tenantID,
			EvolutionInstanceName: instanceName,
			EvolutionAPIKey:       instanceName,
		}); err != nil {
			log.Printf("ERROR: save tenant instance: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		created = true
	}

	conn, err := h.provisioner.Connect(r.Context(), instanceName)
	if err != nil {
		log.Printf("ERROR: connect instance: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "messaging gateway unavailable"})
		return
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, map[string]string{
		"instance_name": instanceName,
		"qr_code":       conn.QR(),
	})
}

// InstanceQR re-requests the pairing QR for an already provisioned instance.
func (h *TenantHandler) InstanceQR(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenantWithInstance(w, r)
	if !ok {
		return
	}

	conn, err := h.provisioner.Connect(r.Context(), tenant.EvolutionInstanceName.String)
	if err != nil {
		log.Printf("ERROR: connect instance: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "messaging gateway unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"qr_code": conn.QR()})
}

func (h *TenantHandler) InstanceState(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenantWithInstance(w, r)
	if !ok {
		return
	}

	state, err := h.provisioner.ConnectionState(r.Context(), tenant.EvolutionInstanceName.String)
	if err != nil {
		log.Printf("ERROR: instance state: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "messaging gateway unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"state": state.Instance.State})
}

func (h *TenantHandler) tenantWithInstance(w http.ResponseWriter, r *http.Request) (database.Tenant, bool) {
	tenantID := tenantIDFromRequest(r)

	tenant, err := h.store.GetTenant(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "tenant not found"})
			return database.Tenant{}, false
		}
		log.Printf("ERROR: get tenant: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return database.Tenant{}, false
	}

	if !tenant.EvolutionInstanceName.Valid {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no messaging instance provisioned"})
		return database.Tenant{}, false
	}

	return tenant, true
}

func instanceNameFor(tenantID uuid.UUID) string {
	return "tenant_" + strings.ReplaceAll(tenantID.String(), "-", "")
}
