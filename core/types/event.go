package types

// Event represents a structured state change recorded by the ledger. The
// attribute map carries hex-encoded identifiers and decimal amounts so the
// payload stays stable across transports.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
