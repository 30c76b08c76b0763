package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/integrationhub/internal/domain/model"
	"github.com/ericfisherdev/integrationhub/internal/domain/port/driven"
	"github.com/ericfisherdev/integrationhub/internal/security"
)

// SyncInput describes one relay request against a client's external API.
// Endpoint and Method are optional; omitted values fall back to the defaults.
type SyncInput struct {
	Endpoint string
	Method   string
	Params   map[string]string
}

// defaultSyncEndpoint is relayed when a sync request omits the endpoint,
// matching the configured default base URL's canonical resource.
const defaultSyncEndpoint = "/posts"

// RelayService orchestrates relay attempts: it validates the client, records
// an integration row, calls the external API with the client's decrypted
// credentials, and drives the row through its lifecycle.
type RelayService struct {
	clients      driven.ClientStore
	integrations driven.IntegrationStore
	external     driven.ExternalAPI
	cipher       *security.Cipher
	logger       *slog.Logger
}

// NewRelayService creates a new RelayService.
func NewRelayService(
	clients driven.ClientStore,
	integrations driven.IntegrationStore,
	external driven.ExternalAPI,
	cipher *security.Cipher,
) *RelayService {
	return &RelayService{
		clients:      clients,
		integrations: integrations,
		external:     external,
		cipher:       cipher,
		logger:       slog.Default(),
	}
}

// Sync performs one relay attempt for the given client and returns the
// resulting integration record. Validation failures (unknown or inactive
// client) return an error without creating a record. Once a record exists,
// relay failures are captured on the record itself and Sync returns the
// failed record with a nil error.
func (s *RelayService) Sync(ctx context.Context, clientID int64, input SyncInput) (*model.Integration, error) {
	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	if client == nil {
		return nil, ErrClientNotFound
	}
	if !client.IsActive {
		return nil, ErrClientInactive
	}

	endpoint := strings.TrimSpace(input.Endpoint)
	if endpoint == "" {
		endpoint = defaultSyncEndpoint
	}
	method := strings.ToUpper(strings.TrimSpace(input.Method))
	if method == "" {
		method = "GET"
	}

	integration := &model.Integration{
		ClientID:         client.ID,
		Status:           model.IntegrationStatusPending,
		ExternalEndpoint: endpoint,
		RequestMethod:    method,
	}
	if err := s.integrations.Insert(ctx, integration); err != nil {
		return nil, fmt.Errorf("record integration: %w", err)
	}

	started := time.Now().UTC()
	integration.Status = model.IntegrationStatusInProgress
	integration.StartedAt = &started
	if err := s.integrations.Update(ctx, integration); err != nil {
		return nil, fmt.Errorf("mark integration in progress: %w", err)
	}

	s.logger.Info("relay started",
		"integration_id", integration.ID,
		"client_id", client.ID,
		"endpoint", endpoint,
		"method", method,
	)

	envelope, callErr := s.relay(ctx, client, endpoint, method, input.Params)

	completed := time.Now().UTC()
	integration.CompletedAt = &completed

	switch {
	case callErr == nil:
		payload, err := json.Marshal(envelope)
		if err != nil {
			// The envelope is built from decoded JSON, so this should not
			// happen; treat it as an unexpected relay failure.
			integration.Status = model.IntegrationStatusFailed
			integration.ErrorMessage = fmt.Sprintf("serialize response: %v", err)
			integration.ErrorCode = model.ErrorCodeUnexpected
		} else {
			integration.Status = model.IntegrationStatusSuccess
			integration.ResponseData = string(payload)
		}

	case isExternalAPIError(callErr):
		integration.Status = model.IntegrationStatusFailed
		integration.ErrorMessage = callErr.Error()
		integration.ErrorCode = model.ErrorCodeExternalAPI

	default:
		integration.Status = model.IntegrationStatusFailed
		integration.ErrorMessage = callErr.Error()
		integration.ErrorCode = model.ErrorCodeUnexpected
	}

	if err := s.integrations.Update(ctx, integration); err != nil {
		return nil, fmt.Errorf("finalize integration %d: %w", integration.ID, err)
	}

	if integration.Status == model.IntegrationStatusSuccess {
		s.logger.Info("relay succeeded", "integration_id", integration.ID, "client_id", client.ID)
	} else {
		s.logger.Warn("relay failed",
			"integration_id", integration.ID,
			"client_id", client.ID,
			"error_code", integration.ErrorCode,
			"error", integration.ErrorMessage,
		)
	}

	return integration, nil
}

// relay decrypts the client's credentials and performs the external call.
// A panic in the call path is converted to an error so the integration row
// still reaches a terminal state.
func (s *RelayService) relay(
	ctx context.Context,
	client *model.Client,
	endpoint, method string,
	params map[string]string,
) (envelope *model.Envelope, err error) {
	defer func() {
		if r := recover(); r != nil {
			envelope = nil
			err = fmt.Errorf("panic during relay: %v", r)
		}
	}()

	var credentials map[string]any
	if client.HasCredentials() {
		credentials, err = s.cipher.Decrypt(client.EncryptedCredentials)
		if err != nil {
			// A stale or foreign token must not block the relay; proceed
			// unauthenticated and let the external API decide.
			s.logger.Warn("failed to decrypt client credentials, calling without them",
				"client_id", client.ID, "error", err)
			credentials = nil
		}
	}

	return s.external.Call(ctx, endpoint, method, driven.CallOptions{
		BaseURL:        client.ExternalAPIURL,
		TimeoutSeconds: client.ExternalAPITimeout,
		Params:         params,
		Credentials:    credentials,
	})
}

func isExternalAPIError(err error) bool {
	var apiErr *driven.ExternalAPIError
	return errors.As(err, &apiErr)
}
