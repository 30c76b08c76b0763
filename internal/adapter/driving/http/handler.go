// Package httphandler is the HTTP driving adapter that serves the REST API.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/integrationhub/internal/application"
	"github.com/ericfisherdev/integrationhub/internal/domain/model"
	"github.com/ericfisherdev/integrationhub/internal/domain/port/driven"
	"github.com/ericfisherdev/integrationhub/internal/security"
)

// Pagination bounds for list endpoints.
const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// Pinger reports storage reachability for the readiness endpoint.
// *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler serves the REST API.
type Handler struct {
	clientSvc    *application.ClientService
	relaySvc     *application.RelayService
	integrations driven.IntegrationStore
	pinger       Pinger
	environment  string
	logger       *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	clientSvc *application.ClientService,
	relaySvc *application.RelayService,
	integrations driven.IntegrationStore,
	pinger Pinger,
	environment string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		clientSvc:    clientSvc,
		relaySvc:     relaySvc,
		integrations: integrations,
		pinger:       pinger,
		environment:  environment,
		logger:       logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with request ID, logging, and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /health/ready", h.Ready)
	mux.HandleFunc("GET /status", h.Status)

	mux.HandleFunc("GET /api/v1/clients", h.ListClients)
	mux.HandleFunc("POST /api/v1/clients", h.CreateClient)
	mux.HandleFunc("GET /api/v1/clients/{id}", h.GetClient)
	mux.HandleFunc("PUT /api/v1/clients/{id}", h.UpdateClient)
	mux.HandleFunc("DELETE /api/v1/clients/{id}", h.DeleteClient)
	mux.HandleFunc("GET /api/v1/clients/{id}/credentials", h.GetCredentials)
	mux.HandleFunc("POST /api/v1/clients/{id}/sync", h.Sync)

	mux.HandleFunc("GET /api/v1/integrations", h.ListIntegrations)
	mux.HandleFunc("GET /api/v1/integrations/{id}", h.GetIntegration)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)
	wrapped = requestIDMiddleware(wrapped)

	return wrapped
}

// Health returns a simple liveness response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready reports whether the service can reach its storage.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.pinger.PingContext(r.Context()); err != nil {
		h.logger.Error("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unavailable",
			Time:   time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ready",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// Status summarizes the running service with record counts.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	_, totalClients, err := h.clientSvc.List(r.Context(), driven.ClientFilter{Limit: 1})
	if err != nil {
		h.logger.Error("failed to count clients", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	totalIntegrations, err := h.integrations.Count(r.Context(), driven.IntegrationFilter{})
	if err != nil {
		h.logger.Error("failed to count integrations", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Service:           "integrationhub",
		Environment:       h.environment,
		Time:              time.Now().UTC().Format(time.RFC3339),
		TotalClients:      totalClients,
		TotalIntegrations: totalIntegrations,
	})
}

// ListClients returns a paginated page of clients, optionally filtered by
// is_active.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := driven.ClientFilter{Offset: offset, Limit: limit}
	if raw := r.URL.Query().Get("is_active"); raw != "" {
		isActive, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid is_active: expected true or false")
			return
		}
		filter.IsActive = &isActive
	}

	clients, total, err := h.clientSvc.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list clients", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	items := make([]ClientResponse, 0, len(clients))
	for _, client := range clients {
		items = append(items, toClientResponse(client))
	}

	writeJSON(w, http.StatusOK, ClientListResponse{
		Items:  items,
		Total:  total,
		Offset: offset,
		Limit:  limit,
	})
}

// CreateClient registers a new client and returns it with its issued API key.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	client, err := h.clientSvc.Create(r.Context(), application.CreateClientInput{
		Name:               req.Name,
		Description:        req.Description,
		ExternalAPIURL:     req.ExternalAPIURL,
		ExternalAPITimeout: req.ExternalAPITimeout,
		IsActive:           req.IsActive,
		Credentials:        req.Credentials,
	})
	if err != nil {
		if errors.Is(err, application.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to create client", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, toClientResponse(*client))
}

// GetClient returns a single client by ID.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	client, err := h.clientSvc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, application.ErrClientNotFound) {
			writeError(w, http.StatusNotFound, "client not found")
			return
		}
		h.logger.Error("failed to get client", "client_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toClientResponse(*client))
}

// UpdateClient applies a partial update to a client.
func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req UpdateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	client, err := h.clientSvc.Update(r.Context(), id, application.UpdateClientInput{
		Name:               req.Name,
		Description:        req.Description,
		ExternalAPIURL:     req.ExternalAPIURL,
		ExternalAPITimeout: req.ExternalAPITimeout,
		IsActive:           req.IsActive,
		Credentials:        req.Credentials,
	})
	if err != nil {
		switch {
		case errors.Is(err, application.ErrClientNotFound):
			writeError(w, http.StatusNotFound, "client not found")
		case errors.Is(err, application.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("failed to update client", "client_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, toClientResponse(*client))
}

// DeleteClient removes a client and its integration history.
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.clientSvc.Delete(r.Context(), id); err != nil {
		if errors.Is(err, application.ErrClientNotFound) {
			writeError(w, http.StatusNotFound, "client not found")
			return
		}
		h.logger.Error("failed to delete client", "client_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetCredentials returns a client's decrypted credentials.
func (h *Handler) GetCredentials(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	credentials, err := h.clientSvc.Credentials(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, application.ErrClientNotFound):
			writeError(w, http.StatusNotFound, "client not found")
		case errors.Is(err, application.ErrNoCredentials):
			writeError(w, http.StatusNotFound, "client has no stored credentials")
		case errors.Is(err, security.ErrEncryption):
			h.logger.Error("failed to decrypt credentials", "client_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to decrypt credentials")
		default:
			h.logger.Error("failed to get credentials", "client_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, CredentialsResponse{ClientID: id, Credentials: credentials})
}

// Sync relays a call to the client's external API and returns the resulting
// integration record. Relay failures still return 201 with a failed record;
// only validation failures map to error statuses.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	integration, err := h.relaySvc.Sync(r.Context(), id, application.SyncInput{
		Endpoint: req.Endpoint,
		Method:   req.Method,
		Params:   req.Params,
	})
	if err != nil {
		switch {
		case errors.Is(err, application.ErrClientNotFound):
			writeError(w, http.StatusNotFound, "client not found")
		case errors.Is(err, application.ErrClientInactive):
			writeError(w, http.StatusConflict, "client is inactive")
		default:
			h.logger.Error("sync failed", "client_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, toIntegrationResponse(*integration))
}

// ListIntegrations returns a paginated page of integration records, newest
// first, optionally filtered by client_id and status.
func (h *Handler) ListIntegrations(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := driven.IntegrationFilter{Offset: offset, Limit: limit}
	if raw := r.URL.Query().Get("client_id"); raw != "" {
		clientID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid client_id")
			return
		}
		filter.ClientID = &clientID
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := model.IntegrationStatus(raw)
		if !status.IsValid() {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		filter.Status = &status
	}

	integrations, err := h.integrations.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list integrations", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	total, err := h.integrations.Count(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to count integrations", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	items := make([]IntegrationResponse, 0, len(integrations))
	for _, integration := range integrations {
		items = append(items, toIntegrationResponse(integration))
	}

	writeJSON(w, http.StatusOK, IntegrationListResponse{
		Items:  items,
		Total:  total,
		Offset: offset,
		Limit:  limit,
	})
}

// GetIntegration returns a single integration record by ID.
func (h *Handler) GetIntegration(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	integration, err := h.integrations.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get integration", "integration_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if integration == nil {
		writeError(w, http.StatusNotFound, "integration not found")
		return
	}

	writeJSON(w, http.StatusOK, toIntegrationResponse(*integration))
}

// parseID extracts the {id} path value. Writes a 400 and returns false on
// malformed input.
func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// parsePagination reads offset and limit query parameters with defaults.
func parsePagination(r *http.Request) (offset, limit int, err error) {
	offset = 0
	limit = defaultPageLimit

	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("invalid offset")
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if limit > maxPageLimit {
			limit = maxPageLimit
		}
	}

	return offset, limit, nil
}
