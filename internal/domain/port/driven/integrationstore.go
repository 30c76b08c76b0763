package driven

import (
	"context"

	"github.com/ericfisherdev/integrationhub/internal/domain/model"
)

// IntegrationFilter narrows List and Count results. Nil fields match everything.
type IntegrationFilter struct {
	ClientID *int64
	Status   *model.IntegrationStatus
	Offset   int
	Limit    int
}

// IntegrationStore defines the driven port for integration persistence.
type IntegrationStore interface {
	// Insert stores a new integration and populates its ID and CreatedAt.
	Insert(ctx context.Context, integration *model.Integration) error

	// Update persists the integration's status, response, error, and
	// timestamp fields in place.
	Update(ctx context.Context, integration *model.Integration) error

	// GetByID retrieves an integration by ID. Returns nil, nil if absent.
	GetByID(ctx context.Context, id int64) (*model.Integration, error)

	// List returns integrations matching the filter, newest first.
	List(ctx context.Context, filter IntegrationFilter) ([]model.Integration, error)

	// Count returns the number of integrations matching the filter,
	// ignoring its Offset and Limit.
	Count(ctx context.Context, filter IntegrationFilter) (int, error)
}
