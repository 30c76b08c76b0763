package httphandler_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/ericfisherdev/integrationhub/internal/adapter/driving/http"
	"github.com/ericfisherdev/integrationhub/internal/application"
	"github.com/ericfisherdev/integrationhub/internal/domain/model"
	"github.com/ericfisherdev/integrationhub/internal/domain/port/driven"
	"github.com/ericfisherdev/integrationhub/internal/security"
)

// --- Mock implementations ---

type mockClientStore struct {
	clients map[int64]*model.Client
	nextID  int64
}

func newMockClientStore() *mockClientStore {
	return &mockClientStore{clients: make(map[int64]*model.Client)}
}

func (m *mockClientStore) Insert(_ context.Context, client *model.Client) error {
	m.nextID++
	client.ID = m.nextID
	client.CreatedAt = time.Now().UTC()
	client.UpdatedAt = client.CreatedAt
	stored := *client
	m.clients[client.ID] = &stored
	return nil
}

func (m *mockClientStore) GetByID(_ context.Context, id int64) (*model.Client, error) {
	client, ok := m.clients[id]
	if !ok {
		return nil, nil
	}
	copied := *client
	return &copied, nil
}

func (m *mockClientStore) GetByAPIKey(_ context.Context, apiKey string) (*model.Client, error) {
	for _, client := range m.clients {
		if client.APIKey == apiKey {
			copied := *client
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockClientStore) List(_ context.Context, filter driven.ClientFilter) ([]model.Client, error) {
	var out []model.Client
	for _, client := range m.clients {
		if filter.IsActive != nil && client.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, *client)
	}
	return out, nil
}

func (m *mockClientStore) Count(_ context.Context, isActive *bool) (int, error) {
	count := 0
	for _, client := range m.clients {
		if isActive != nil && client.IsActive != *isActive {
			continue
		}
		count++
	}
	return count, nil
}

func (m *mockClientStore) Update(_ context.Context, client *model.Client) error {
	if _, ok := m.clients[client.ID]; !ok {
		return errors.New("no such client")
	}
	stored := *client
	m.clients[client.ID] = &stored
	return nil
}

func (m *mockClientStore) Delete(_ context.Context, id int64) (bool, error) {
	if _, ok := m.clients[id]; !ok {
		return false, nil
	}
	delete(m.clients, id)
	return true, nil
}

type mockIntegrationStore struct {
	integrations map[int64]*model.Integration
	nextID       int64
}

func newMockIntegrationStore() *mockIntegrationStore {
	return &mockIntegrationStore{integrations: make(map[int64]*model.Integration)}
}

func (m *mockIntegrationStore) Insert(_ context.Context, integration *model.Integration) error {
	m.nextID++
	integration.ID = m.nextID
	integration.CreatedAt = time.Now().UTC()
	stored := *integration
	m.integrations[integration.ID] = &stored
	return nil
}

func (m *mockIntegrationStore) Update(_ context.Context, integration *model.Integration) error {
	if _, ok := m.integrations[integration.ID]; !ok {
		return errors.New("no such integration")
	}
	stored := *integration
	m.integrations[integration.ID] = &stored
	return nil
}

func (m *mockIntegrationStore) GetByID(_ context.Context, id int64) (*model.Integration, error) {
	integration, ok := m.integrations[id]
	if !ok {
		return nil, nil
	}
	copied := *integration
	return &copied, nil
}

func (m *mockIntegrationStore) List(_ context.Context, filter driven.IntegrationFilter) ([]model.Integration, error) {
	var out []model.Integration
	for _, integration := range m.integrations {
		if filter.ClientID != nil && integration.ClientID != *filter.ClientID {
			continue
		}
		if filter.Status != nil && integration.Status != *filter.Status {
			continue
		}
		out = append(out, *integration)
	}
	return out, nil
}

func (m *mockIntegrationStore) Count(_ context.Context, filter driven.IntegrationFilter) (int, error) {
	items, _ := m.List(context.Background(), filter)
	return len(items), nil
}

type mockExternalAPI struct {
	envelope *model.Envelope
	err      error
}

func (m *mockExternalAPI) Call(_ context.Context, _, _ string, _ driven.CallOptions) (*model.Envelope, error) {
	return m.envelope, m.err
}

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(_ context.Context) error { return m.err }

// --- Test fixture ---

type fixture struct {
	handler      http.Handler
	clients      *mockClientStore
	integrations *mockIntegrationStore
	external     *mockExternalAPI
	pinger       *mockPinger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cipher, err := security.NewEphemeralCipher()
	require.NoError(t, err)

	logger := slog.New(slog.DiscardHandler)
	clients := newMockClientStore()
	integrations := newMockIntegrationStore()
	external := &mockExternalAPI{
		envelope: &model.Envelope{
			Data: []any{map[string]any{"id": float64(1)}},
			Metadata: model.EnvelopeMetadata{
				SourceURL:   "https://api.test/posts",
				Method:      "GET",
				RecordCount: 1,
				DataType:    "list",
			},
		},
	}
	pinger := &mockPinger{}

	clientSvc := application.NewClientService(clients, cipher, security.DefaultAPIKeyLength)
	relaySvc := application.NewRelayService(clients, integrations, external, cipher)

	h := httphandler.NewHandler(clientSvc, relaySvc, integrations, pinger, "test", logger)

	return &fixture{
		handler:      httphandler.NewServeMux(h, logger),
		clients:      clients,
		integrations: integrations,
		external:     external,
		pinger:       pinger,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) createClient(t *testing.T, body string) int64 {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/v1/clients", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return int64(resp["id"].(float64))
}

// --- Tests ---

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestReady(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	f.pinger.err = errors.New("db down")
	rec = f.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"unavailable"`)
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	f.createClient(t, `{"name":"Acme"}`)

	rec := f.do(t, http.MethodGet, "/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "integrationhub", resp.Service)
	assert.Equal(t, 1, resp.TotalClients)
	assert.Equal(t, 0, resp.TotalIntegrations)
}

func TestRequestIDEcho(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "given-id")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, "given-id", rec.Header().Get("X-Request-ID"))
}

func TestCreateClient(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/clients",
		`{"name":"Acme","description":"d","external_api_url":"https://api.test","credentials":{"api_key":"secret"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp httphandler.ClientResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Acme", resp.Name)
	assert.True(t, resp.HasCredentials)
	assert.True(t, strings.HasPrefix(resp.APIKey, "ih_"))
	assert.True(t, resp.IsActive)

	// Raw credentials never appear in the response.
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestCreateClientValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/clients", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/clients", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetClient(t *testing.T) {
	f := newFixture(t)
	id := f.createClient(t, `{"name":"Acme"}`)

	rec := f.do(t, http.MethodGet, "/api/v1/clients/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.ClientResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.ID)

	rec = f.do(t, http.MethodGet, "/api/v1/clients/999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/clients/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListClients(t *testing.T) {
	f := newFixture(t)
	f.createClient(t, `{"name":"One"}`)
	id := f.createClient(t, `{"name":"Two"}`)

	// Deactivate the second client.
	rec := f.do(t, http.MethodPut, "/api/v1/clients/2", `{"is_active":false}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/clients", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.ClientListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Len(t, resp.Items, 2)

	rec = f.do(t, http.MethodGet, "/api/v1/clients?is_active=false", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, id, resp.Items[0].ID)

	rec = f.do(t, http.MethodGet, "/api/v1/clients?is_active=banana", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/clients?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateClient(t *testing.T) {
	f := newFixture(t)
	f.createClient(t, `{"name":"Before"}`)

	rec := f.do(t, http.MethodPut, "/api/v1/clients/1", `{"name":"After","external_api_timeout":60}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.ClientResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "After", resp.Name)
	assert.Equal(t, 60, resp.ExternalAPITimeout)

	rec = f.do(t, http.MethodPut, "/api/v1/clients/999", `{"name":"X"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteClient(t *testing.T) {
	f := newFixture(t)
	f.createClient(t, `{"name":"Doomed"}`)

	rec := f.do(t, http.MethodDelete, "/api/v1/clients/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/v1/clients/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCredentials(t *testing.T) {
	f := newFixture(t)
	f.createClient(t, `{"name":"Acme","credentials":{"api_token":"tok"}}`)
	f.createClient(t, `{"name":"Bare"}`)

	rec := f.do(t, http.MethodGet, "/api/v1/clients/1/credentials", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.CredentialsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "tok", resp.Credentials["api_token"])

	rec = f.do(t, http.MethodGet, "/api/v1/clients/2/credentials", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/clients/999/credentials", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSync(t *testing.T) {
	f := newFixture(t)
	f.createClient(t, `{"name":"Acme","external_api_url":"https://api.test"}`)

	rec := f.do(t, http.MethodPost, "/api/v1/clients/1/sync", `{"endpoint":"/posts"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp httphandler.IntegrationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "/posts", resp.ExternalEndpoint)
	assert.NotNil(t, resp.StartedAt)
	assert.NotNil(t, resp.CompletedAt)

	// Response data is structured JSON, not a double-encoded string.
	var envelope model.Envelope
	require.NoError(t, json.Unmarshal(resp.ResponseData, &envelope))
	assert.Equal(t, 1, envelope.Metadata.RecordCount)
}

func TestSyncDefaultsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.createClient(t, `{"name":"Acme"}`)

	// An empty body is a valid sync request; the defaults fill it in.
	rec := f.do(t, http.MethodPost, "/api/v1/clients/1/sync", `{}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp httphandler.IntegrationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "/posts", resp.ExternalEndpoint)
	assert.Equal(t, "GET", resp.RequestMethod)
}

func TestSyncValidation(t *testing.T) {
	f := newFixture(t)
	f.createClient(t, `{"name":"Acme"}`)

	rec := f.do(t, http.MethodPost, "/api/v1/clients/999/sync", `{"endpoint":"/posts"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Inactive client is a validation failure, not a recorded relay failure.
	put := f.do(t, http.MethodPut, "/api/v1/clients/1", `{"is_active":false}`)
	require.Equal(t, http.StatusOK, put.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/clients/1/sync", `{"endpoint":"/posts"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, f.integrations.integrations)
}

func TestSyncRelayFailureStillCreated(t *testing.T) {
	f := newFixture(t)
	f.createClient(t, `{"name":"Acme"}`)
	f.external.envelope = nil
	f.external.err = &driven.ExternalAPIError{Message: "API call failed with status 500: boom"}

	rec := f.do(t, http.MethodPost, "/api/v1/clients/1/sync", `{"endpoint":"/posts"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp httphandler.IntegrationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "failed", resp.Status)
	assert.Equal(t, "EXTERNAL_API_ERROR", resp.ErrorCode)
	assert.Contains(t, resp.ErrorMessage, "status 500")
}

func TestListIntegrations(t *testing.T) {
	f := newFixture(t)
	f.createClient(t, `{"name":"Acme"}`)
	f.createClient(t, `{"name":"Other"}`)

	rec := f.do(t, http.MethodPost, "/api/v1/clients/1/sync", `{"endpoint":"/posts"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/v1/clients/2/sync", `{"endpoint":"/users"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/integrations", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp httphandler.IntegrationListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)

	rec = f.do(t, http.MethodGet, "/api/v1/integrations?client_id=1", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)

	rec = f.do(t, http.MethodGet, "/api/v1/integrations?status=success", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)

	rec = f.do(t, http.MethodGet, "/api/v1/integrations?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/integrations?client_id=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetIntegration(t *testing.T) {
	f := newFixture(t)
	f.createClient(t, `{"name":"Acme"}`)

	rec := f.do(t, http.MethodPost, "/api/v1/clients/1/sync", `{"endpoint":"/posts"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/integrations/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/integrations/999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
