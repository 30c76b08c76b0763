package model

import "time"

// Client is a registered consumer of the relay. Its credentials are stored
// encrypted; EncryptedCredentials holds the opaque cipher token and is never
// exposed through the API directly.
type Client struct {
	ID          int64
	Name        string
	Description string
	APIKey      string

	// EncryptedCredentials is the cipher token produced by security.Cipher,
	// or empty when no credentials are stored.
	EncryptedCredentials string

	// ExternalAPIURL overrides the global default base URL when non-empty.
	ExternalAPIURL string
	// ExternalAPITimeout is the per-attempt timeout in seconds for relay
	// calls made on behalf of this client.
	ExternalAPITimeout int

	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasCredentials reports whether an encrypted credential token is stored.
func (c *Client) HasCredentials() bool {
	return c.EncryptedCredentials != ""
}
