package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/integrationhub/internal/domain/model"
	"github.com/ericfisherdev/integrationhub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ClientStore = (*ClientRepo)(nil)

// ClientRepo is the SQLite implementation of the ClientStore port interface.
type ClientRepo struct {
	db *DB
}

// NewClientRepo creates a new ClientRepo backed by the given DB.
func NewClientRepo(db *DB) *ClientRepo {
	return &ClientRepo{db: db}
}

const clientColumns = `id, name, description, api_key, encrypted_credentials,
	external_api_url, external_api_timeout, is_active, created_at, updated_at`

// Insert stores a new client and populates its ID, CreatedAt, and UpdatedAt.
func (r *ClientRepo) Insert(ctx context.Context, client *model.Client) error {
	const query = `INSERT INTO clients
		(name, description, api_key, encrypted_credentials, external_api_url, external_api_timeout, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC()

	result, err := r.db.Writer.ExecContext(ctx, query,
		client.Name,
		client.Description,
		client.APIKey,
		client.EncryptedCredentials,
		client.ExternalAPIURL,
		client.ExternalAPITimeout,
		client.IsActive,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("insert client %q: %w", client.Name, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert client %q: last insert id: %w", client.Name, err)
	}

	client.ID = id
	client.CreatedAt = now
	client.UpdatedAt = now
	return nil
}

// GetByID retrieves a client by ID. Returns nil, nil if the client does not exist.
func (r *ClientRepo) GetByID(ctx context.Context, id int64) (*model.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = ?`

	client, err := scanClient(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get client %d: %w", id, err)
	}

	return client, nil
}

// GetByAPIKey retrieves a client by its API key. Returns nil, nil if absent.
func (r *ClientRepo) GetByAPIKey(ctx context.Context, apiKey string) (*model.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE api_key = ?`

	client, err := scanClient(r.db.Reader.QueryRowContext(ctx, query, apiKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get client by api key: %w", err)
	}

	return client, nil
}

// List returns clients matching the filter, oldest first.
func (r *ClientRepo) List(ctx context.Context, filter driven.ClientFilter) ([]model.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients`
	args := []any{}

	if filter.IsActive != nil {
		query += ` WHERE is_active = ?`
		args = append(args, *filter.IsActive)
	}

	query += ` ORDER BY created_at, id`

	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, *client)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}

	return clients, nil
}

// Count returns the number of clients matching the active filter.
func (r *ClientRepo) Count(ctx context.Context, isActive *bool) (int, error) {
	query := `SELECT COUNT(*) FROM clients`
	args := []any{}

	if isActive != nil {
		query += ` WHERE is_active = ?`
		args = append(args, *isActive)
	}

	var count int
	if err := r.db.Reader.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count clients: %w", err)
	}

	return count, nil
}

// Update persists all mutable fields of the client and refreshes UpdatedAt.
// The api_key column is immutable and deliberately excluded.
func (r *ClientRepo) Update(ctx context.Context, client *model.Client) error {
	const query = `UPDATE clients SET
		name = ?, description = ?, encrypted_credentials = ?,
		external_api_url = ?, external_api_timeout = ?, is_active = ?, updated_at = ?
		WHERE id = ?`

	now := time.Now().UTC()

	result, err := r.db.Writer.ExecContext(ctx, query,
		client.Name,
		client.Description,
		client.EncryptedCredentials,
		client.ExternalAPIURL,
		client.ExternalAPITimeout,
		client.IsActive,
		now,
		client.ID,
	)
	if err != nil {
		return fmt.Errorf("update client %d: %w", client.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update client %d: rows affected: %w", client.ID, err)
	}
	if rows == 0 {
		return fmt.Errorf("update client %d: no such client", client.ID)
	}

	client.UpdatedAt = now
	return nil
}

// Delete removes a client. Associated integrations are removed by the
// foreign key cascade. Returns false if no client with that ID existed.
func (r *ClientRepo) Delete(ctx context.Context, id int64) (bool, error) {
	const query = `DELETE FROM clients WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete client %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete client %d: rows affected: %w", id, err)
	}

	return rows > 0, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanClient(s scanner) (*model.Client, error) {
	var client model.Client
	var createdAt, updatedAt string

	err := s.Scan(
		&client.ID,
		&client.Name,
		&client.Description,
		&client.APIKey,
		&client.EncryptedCredentials,
		&client.ExternalAPIURL,
		&client.ExternalAPITimeout,
		&client.IsActive,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	client.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	client.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &client, nil
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
