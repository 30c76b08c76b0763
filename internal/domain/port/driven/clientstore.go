package driven

import (
	"context"

	"github.com/ericfisherdev/integrationhub/internal/domain/model"
)

// ClientFilter narrows List and Count results. A nil IsActive matches both
// active and inactive clients.
type ClientFilter struct {
	IsActive *bool
	Offset   int
	Limit    int
}

// ClientStore defines the driven port for client persistence.
type ClientStore interface {
	// Insert stores a new client and populates its ID, CreatedAt, and
	// UpdatedAt fields.
	Insert(ctx context.Context, client *model.Client) error

	// GetByID retrieves a client by ID. Returns nil, nil if absent.
	GetByID(ctx context.Context, id int64) (*model.Client, error)

	// GetByAPIKey retrieves a client by its API key. Returns nil, nil if absent.
	GetByAPIKey(ctx context.Context, apiKey string) (*model.Client, error)

	// List returns clients matching the filter, ordered by creation time.
	List(ctx context.Context, filter ClientFilter) ([]model.Client, error)

	// Count returns the number of clients matching the active filter.
	Count(ctx context.Context, isActive *bool) (int, error)

	// Update persists all mutable fields of the client and refreshes UpdatedAt.
	Update(ctx context.Context, client *model.Client) error

	// Delete removes a client and, via cascade, its integrations.
	// Returns false if no client with that ID existed.
	Delete(ctx context.Context, id int64) (bool, error)
}
