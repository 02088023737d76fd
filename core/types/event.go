package types

// Event is a structured state-change notification emitted by the native
// engines and forwarded to downstream subscribers (RPC, indexers).
type Event struct {
	Type       string
	Attributes map[string]string
}
