package types

// Event represents a structured state change emitted by an engine. Attributes
// carry hex-encoded identifiers and decimal amounts.
type Event struct {
	Type       string
	Attributes map[string]string
}
