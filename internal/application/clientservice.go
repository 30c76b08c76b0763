// Package application contains the use-case services that orchestrate the
// domain ports. Services hold no transport or storage concerns of their own.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/integrationhub/internal/domain/model"
	"github.com/ericfisherdev/integrationhub/internal/domain/port/driven"
	"github.com/ericfisherdev/integrationhub/internal/security"
)

// Sentinel errors surfaced to the driving adapters.
var (
	ErrClientNotFound = errors.New("client not found")
	ErrClientInactive = errors.New("client is inactive")
	ErrNoCredentials  = errors.New("client has no stored credentials")
	ErrInvalidInput   = errors.New("invalid input")
)

// APIKeyPrefix is prepended to every generated client API key.
const APIKeyPrefix = "ih"

// DefaultExternalAPITimeout is applied when a client does not specify one,
// and MaxExternalAPITimeout bounds what a client may request. Both in seconds.
const (
	DefaultExternalAPITimeout = 30
	MaxExternalAPITimeout     = 300
)

// maxNameLength bounds client names.
const maxNameLength = 255

// CreateClientInput carries the fields accepted when registering a client.
type CreateClientInput struct {
	Name               string
	Description        string
	ExternalAPIURL     string
	ExternalAPITimeout int
	// IsActive defaults to true when nil.
	IsActive    *bool
	Credentials map[string]any
}

// UpdateClientInput carries a partial update. Nil fields are left unchanged.
// Credentials, when non-nil, replace the stored credentials wholesale; an
// empty map clears them.
type UpdateClientInput struct {
	Name               *string
	Description        *string
	ExternalAPIURL     *string
	ExternalAPITimeout *int
	IsActive           *bool
	Credentials        map[string]any
}

// ClientService manages client registration, credentials, and lookups.
type ClientService struct {
	clients      driven.ClientStore
	cipher       *security.Cipher
	apiKeyLength int
	logger       *slog.Logger
}

// NewClientService creates a new ClientService.
func NewClientService(clients driven.ClientStore, cipher *security.Cipher, apiKeyLength int) *ClientService {
	if apiKeyLength <= 0 {
		apiKeyLength = security.DefaultAPIKeyLength
	}
	return &ClientService{
		clients:      clients,
		cipher:       cipher,
		apiKeyLength: apiKeyLength,
		logger:       slog.Default(),
	}
}

// Create registers a new client, issues its API key, and encrypts any
// provided credentials before they touch storage.
func (s *ClientService) Create(ctx context.Context, input CreateClientInput) (*model.Client, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(name) > maxNameLength {
		return nil, fmt.Errorf("%w: name cannot exceed %d characters", ErrInvalidInput, maxNameLength)
	}

	timeout := input.ExternalAPITimeout
	if timeout <= 0 {
		timeout = DefaultExternalAPITimeout
	}
	if timeout > MaxExternalAPITimeout {
		return nil, fmt.Errorf("%w: external_api_timeout cannot exceed %d seconds", ErrInvalidInput, MaxExternalAPITimeout)
	}

	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}

	apiKey, err := security.GenerateAPIKey(APIKeyPrefix, s.apiKeyLength)
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}

	client := &model.Client{
		Name:               name,
		Description:        input.Description,
		APIKey:             apiKey,
		ExternalAPIURL:     input.ExternalAPIURL,
		ExternalAPITimeout: timeout,
		IsActive:           isActive,
	}

	if len(input.Credentials) > 0 {
		token, err := s.cipher.Encrypt(input.Credentials)
		if err != nil {
			return nil, fmt.Errorf("encrypt credentials: %w", err)
		}
		client.EncryptedCredentials = token
	}

	if err := s.clients.Insert(ctx, client); err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	s.logger.Info("client created", "client_id", client.ID, "name", client.Name)
	return client, nil
}

// Get retrieves a client by ID.
func (s *ClientService) Get(ctx context.Context, id int64) (*model.Client, error) {
	client, err := s.clients.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	if client == nil {
		return nil, ErrClientNotFound
	}
	return client, nil
}

// GetByAPIKey retrieves a client by its API key.
func (s *ClientService) GetByAPIKey(ctx context.Context, apiKey string) (*model.Client, error) {
	client, err := s.clients.GetByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("get client by api key: %w", err)
	}
	if client == nil {
		return nil, ErrClientNotFound
	}
	return client, nil
}

// List returns clients matching the filter along with the unpaginated total.
func (s *ClientService) List(ctx context.Context, filter driven.ClientFilter) ([]model.Client, int, error) {
	clients, err := s.clients.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list clients: %w", err)
	}

	total, err := s.clients.Count(ctx, filter.IsActive)
	if err != nil {
		return nil, 0, fmt.Errorf("count clients: %w", err)
	}

	return clients, total, nil
}

// Update applies a partial update to a client. The API key is never changed.
func (s *ClientService) Update(ctx context.Context, id int64, input UpdateClientInput) (*model.Client, error) {
	client, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
		}
		if len(name) > maxNameLength {
			return nil, fmt.Errorf("%w: name cannot exceed %d characters", ErrInvalidInput, maxNameLength)
		}
		client.Name = name
	}
	if input.Description != nil {
		client.Description = *input.Description
	}
	if input.ExternalAPIURL != nil {
		client.ExternalAPIURL = *input.ExternalAPIURL
	}
	if input.ExternalAPITimeout != nil {
		if *input.ExternalAPITimeout <= 0 || *input.ExternalAPITimeout > MaxExternalAPITimeout {
			return nil, fmt.Errorf("%w: external_api_timeout must be between 1 and %d seconds", ErrInvalidInput, MaxExternalAPITimeout)
		}
		client.ExternalAPITimeout = *input.ExternalAPITimeout
	}
	if input.IsActive != nil {
		client.IsActive = *input.IsActive
	}
	if input.Credentials != nil {
		if len(input.Credentials) == 0 {
			client.EncryptedCredentials = ""
		} else {
			token, err := s.cipher.Encrypt(input.Credentials)
			if err != nil {
				return nil, fmt.Errorf("encrypt credentials: %w", err)
			}
			client.EncryptedCredentials = token
		}
	}

	if err := s.clients.Update(ctx, client); err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}

	s.logger.Info("client updated", "client_id", client.ID)
	return client, nil
}

// Delete removes a client and, via cascade, its integration history.
func (s *ClientService) Delete(ctx context.Context, id int64) error {
	deleted, err := s.clients.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	if !deleted {
		return ErrClientNotFound
	}

	s.logger.Info("client deleted", "client_id", id)
	return nil
}

// Credentials decrypts and returns a client's stored credentials. Decryption
// failures (wrong key, tampered token) surface as security.ErrEncryption.
func (s *ClientService) Credentials(ctx context.Context, id int64) (map[string]any, error) {
	client, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !client.HasCredentials() {
		return nil, ErrNoCredentials
	}

	credentials, err := s.cipher.Decrypt(client.EncryptedCredentials)
	if err != nil {
		return nil, fmt.Errorf("decrypt credentials for client %d: %w", id, err)
	}

	return credentials, nil
}
