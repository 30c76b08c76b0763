package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/integrationhub/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// ClientResponse is the JSON representation of a client. Stored credentials
// are never serialized; only their presence is exposed.
type ClientResponse struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	APIKey             string `json:"api_key"`
	HasCredentials     bool   `json:"has_credentials"`
	ExternalAPIURL     string `json:"external_api_url"`
	ExternalAPITimeout int    `json:"external_api_timeout"`
	IsActive           bool   `json:"is_active"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

// ClientListResponse is a paginated page of clients.
type ClientListResponse struct {
	Items  []ClientResponse `json:"items"`
	Total  int              `json:"total"`
	Offset int              `json:"offset"`
	Limit  int              `json:"limit"`
}

// IntegrationResponse is the JSON representation of an integration record.
// ResponseData carries the normalized envelope as structured JSON, not as a
// double-encoded string.
type IntegrationResponse struct {
	ID               int64           `json:"id"`
	ClientID         int64           `json:"client_id"`
	Status           string          `json:"status"`
	ExternalEndpoint string          `json:"external_endpoint"`
	RequestMethod    string          `json:"request_method"`
	ResponseData     json.RawMessage `json:"response_data,omitempty"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	ErrorCode        string          `json:"error_code,omitempty"`
	StartedAt        *string         `json:"started_at"`
	CompletedAt      *string         `json:"completed_at"`
	CreatedAt        string          `json:"created_at"`
}

// IntegrationListResponse is a paginated page of integration records.
type IntegrationListResponse struct {
	Items  []IntegrationResponse `json:"items"`
	Total  int                   `json:"total"`
	Offset int                   `json:"offset"`
	Limit  int                   `json:"limit"`
}

// CredentialsResponse carries a client's decrypted credentials.
type CredentialsResponse struct {
	ClientID    int64          `json:"client_id"`
	Credentials map[string]any `json:"credentials"`
}

// HealthResponse is the JSON representation of the health check endpoints.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// StatusResponse summarizes the running service.
type StatusResponse struct {
	Service           string `json:"service"`
	Environment       string `json:"environment"`
	Time              string `json:"time"`
	TotalClients      int    `json:"total_clients"`
	TotalIntegrations int    `json:"total_integrations"`
}

// CreateClientRequest is the JSON body for the create client endpoint.
type CreateClientRequest struct {
	Name               string         `json:"name"`
	Description        string         `json:"description"`
	ExternalAPIURL     string         `json:"external_api_url"`
	ExternalAPITimeout int            `json:"external_api_timeout"`
	IsActive           *bool          `json:"is_active"`
	Credentials        map[string]any `json:"credentials"`
}

// UpdateClientRequest is the JSON body for the update client endpoint.
// Absent fields are left unchanged.
type UpdateClientRequest struct {
	Name               *string        `json:"name"`
	Description        *string        `json:"description"`
	ExternalAPIURL     *string        `json:"external_api_url"`
	ExternalAPITimeout *int           `json:"external_api_timeout"`
	IsActive           *bool          `json:"is_active"`
	Credentials        map[string]any `json:"credentials"`
}

// SyncRequest is the JSON body for the sync endpoint.
type SyncRequest struct {
	Endpoint string            `json:"endpoint"`
	Method   string            `json:"method"`
	Params   map[string]string `json:"params"`
}

// toClientResponse converts a domain Client to its JSON representation.
func toClientResponse(client model.Client) ClientResponse {
	return ClientResponse{
		ID:                 client.ID,
		Name:               client.Name,
		Description:        client.Description,
		APIKey:             client.APIKey,
		HasCredentials:     client.HasCredentials(),
		ExternalAPIURL:     client.ExternalAPIURL,
		ExternalAPITimeout: client.ExternalAPITimeout,
		IsActive:           client.IsActive,
		CreatedAt:          client.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          client.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// toIntegrationResponse converts a domain Integration to its JSON representation.
func toIntegrationResponse(integration model.Integration) IntegrationResponse {
	resp := IntegrationResponse{
		ID:               integration.ID,
		ClientID:         integration.ClientID,
		Status:           string(integration.Status),
		ExternalEndpoint: integration.ExternalEndpoint,
		RequestMethod:    integration.RequestMethod,
		ErrorMessage:     integration.ErrorMessage,
		ErrorCode:        integration.ErrorCode,
		StartedAt:        formatOptionalTime(integration.StartedAt),
		CompletedAt:      formatOptionalTime(integration.CompletedAt),
		CreatedAt:        integration.CreatedAt.UTC().Format(time.RFC3339),
	}

	if integration.ResponseData != "" {
		if json.Valid([]byte(integration.ResponseData)) {
			resp.ResponseData = json.RawMessage(integration.ResponseData)
		} else {
			// Stored data should always be JSON; fall back to a quoted string
			// rather than emitting an invalid document.
			quoted, _ := json.Marshal(integration.ResponseData)
			resp.ResponseData = quoted
		}
	}

	return resp
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
