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
var _ driven.IntegrationStore = (*IntegrationRepo)(nil)

// IntegrationRepo is the SQLite implementation of the IntegrationStore port interface.
type IntegrationRepo struct {
	db *DB
}

// NewIntegrationRepo creates a new IntegrationRepo backed by the given DB.
func NewIntegrationRepo(db *DB) *IntegrationRepo {
	return &IntegrationRepo{db: db}
}

const integrationColumns = `id, client_id, status, external_endpoint, request_method,
	response_data, error_message, error_code, started_at, completed_at, created_at`

// Insert stores a new integration and populates its ID and CreatedAt.
func (r *IntegrationRepo) Insert(ctx context.Context, integration *model.Integration) error {
	const query = `INSERT INTO integrations
		(client_id, status, external_endpoint, request_method, response_data, error_message, error_code, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC()

	result, err := r.db.Writer.ExecContext(ctx, query,
		integration.ClientID,
		string(integration.Status),
		integration.ExternalEndpoint,
		integration.RequestMethod,
		integration.ResponseData,
		integration.ErrorMessage,
		integration.ErrorCode,
		nullableTime(integration.StartedAt),
		nullableTime(integration.CompletedAt),
		now,
	)
	if err != nil {
		return fmt.Errorf("insert integration for client %d: %w", integration.ClientID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert integration: last insert id: %w", err)
	}

	integration.ID = id
	integration.CreatedAt = now
	return nil
}

// Update persists the integration's status, response, error, and timestamp
// fields in place.
func (r *IntegrationRepo) Update(ctx context.Context, integration *model.Integration) error {
	const query = `UPDATE integrations SET
		status = ?, response_data = ?, error_message = ?, error_code = ?,
		started_at = ?, completed_at = ?
		WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query,
		string(integration.Status),
		integration.ResponseData,
		integration.ErrorMessage,
		integration.ErrorCode,
		nullableTime(integration.StartedAt),
		nullableTime(integration.CompletedAt),
		integration.ID,
	)
	if err != nil {
		return fmt.Errorf("update integration %d: %w", integration.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update integration %d: rows affected: %w", integration.ID, err)
	}
	if rows == 0 {
		return fmt.Errorf("update integration %d: no such integration", integration.ID)
	}

	return nil
}

// GetByID retrieves an integration by ID. Returns nil, nil if absent.
func (r *IntegrationRepo) GetByID(ctx context.Context, id int64) (*model.Integration, error) {
	query := `SELECT ` + integrationColumns + ` FROM integrations WHERE id = ?`

	integration, err := scanIntegration(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get integration %d: %w", id, err)
	}

	return integration, nil
}

// List returns integrations matching the filter, newest first.
func (r *IntegrationRepo) List(ctx context.Context, filter driven.IntegrationFilter) ([]model.Integration, error) {
	query := `SELECT ` + integrationColumns + ` FROM integrations`
	where, args := integrationFilterClause(filter)
	query += where
	query += ` ORDER BY created_at DESC, id DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}
	defer rows.Close()

	var integrations []model.Integration
	for rows.Next() {
		integration, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan integration: %w", err)
		}
		integrations = append(integrations, *integration)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate integrations: %w", err)
	}

	return integrations, nil
}

// Count returns the number of integrations matching the filter, ignoring
// Offset and Limit.
func (r *IntegrationRepo) Count(ctx context.Context, filter driven.IntegrationFilter) (int, error) {
	query := `SELECT COUNT(*) FROM integrations`
	where, args := integrationFilterClause(filter)
	query += where

	var count int
	if err := r.db.Reader.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count integrations: %w", err)
	}

	return count, nil
}

// integrationFilterClause builds the WHERE clause for the filter's ClientID
// and Status fields.
func integrationFilterClause(filter driven.IntegrationFilter) (string, []any) {
	clause := ""
	args := []any{}

	appendCond := func(cond string, arg any) {
		if clause == "" {
			clause = ` WHERE ` + cond
		} else {
			clause += ` AND ` + cond
		}
		args = append(args, arg)
	}

	if filter.ClientID != nil {
		appendCond(`client_id = ?`, *filter.ClientID)
	}
	if filter.Status != nil {
		appendCond(`status = ?`, string(*filter.Status))
	}

	return clause, args
}

func scanIntegration(s scanner) (*model.Integration, error) {
	var integration model.Integration
	var status, createdAt string
	var startedAt, completedAt sql.NullString

	err := s.Scan(
		&integration.ID,
		&integration.ClientID,
		&status,
		&integration.ExternalEndpoint,
		&integration.RequestMethod,
		&integration.ResponseData,
		&integration.ErrorMessage,
		&integration.ErrorCode,
		&startedAt,
		&completedAt,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	integration.Status = model.IntegrationStatus(status)

	if startedAt.Valid {
		t, err := parseTime(startedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		integration.StartedAt = &t
	}

	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		integration.CompletedAt = &t
	}

	integration.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &integration, nil
}

// nullableTime converts an optional timestamp to a driver-friendly value.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
