package model

// Envelope is the normalized form of an external API response. The raw parsed
// body is wrapped under Data; Metadata carries provenance for the fetch.
type Envelope struct {
	Data     any              `json:"data"`
	Metadata EnvelopeMetadata `json:"metadata"`
}

// EnvelopeMetadata describes where and how the wrapped data was fetched.
type EnvelopeMetadata struct {
	SourceURL string `json:"source_url"`
	Method    string `json:"method"`
	// FetchedAt is an RFC 3339 UTC timestamp.
	FetchedAt string `json:"fetched_at"`
	// RecordCount is the element count for list bodies, the key count for
	// object bodies, and 1 for any other body.
	RecordCount int    `json:"record_count"`
	DataType    string `json:"data_type"`
}
