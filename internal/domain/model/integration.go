package model

import "time"

// IntegrationStatus represents the lifecycle state of a relay attempt.
type IntegrationStatus string

const (
	IntegrationStatusPending    IntegrationStatus = "pending"
	IntegrationStatusInProgress IntegrationStatus = "in_progress"
	IntegrationStatusSuccess    IntegrationStatus = "success"
	IntegrationStatusFailed     IntegrationStatus = "failed"
)

// IsTerminal reports whether the status is a final state. Terminal
// integrations are never mutated again.
func (s IntegrationStatus) IsTerminal() bool {
	return s == IntegrationStatusSuccess || s == IntegrationStatusFailed
}

// IsValid reports whether s is one of the four known statuses.
func (s IntegrationStatus) IsValid() bool {
	switch s {
	case IntegrationStatusPending, IntegrationStatusInProgress,
		IntegrationStatusSuccess, IntegrationStatusFailed:
		return true
	}
	return false
}

// ErrorCodeExternalAPI and ErrorCodeUnexpected classify failed integrations.
const (
	ErrorCodeExternalAPI = "EXTERNAL_API_ERROR"
	ErrorCodeUnexpected  = "UNEXPECTED_ERROR"
)

// Integration records a single relay attempt against the external API.
// One attempt produces exactly one row regardless of internal HTTP retries.
// Lifecycle: pending -> in_progress -> success | failed.
type Integration struct {
	ID       int64
	ClientID int64
	Status   IntegrationStatus

	ExternalEndpoint string
	RequestMethod    string

	// ResponseData is the serialized normalized envelope; set only on success.
	ResponseData string
	// ErrorMessage and ErrorCode are set only on failure.
	ErrorMessage string
	ErrorCode    string

	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
}
