package domain

// Config is the runtime configuration the core components care about,
// mapped from the on-disk config by cmd.
type Config struct {
	// NodeID tags change events published over the signal bridge so a node
	// can ignore its own echoes.
	NodeID string

	// ValidateOnCreate rejects creates whose initial value does not satisfy
	// the document schema. Off by default.
	ValidateOnCreate bool

	// ValidateOnUpdate rejects changes whose resulting value does not
	// satisfy the document schema. Off by default.
	ValidateOnUpdate bool

	// SendBuffer bounds the per-connection outbound queue; a client that
	// falls this far behind is disconnected.
	SendBuffer int

	// MaxMessageBytes caps a single inbound frame.
	MaxMessageBytes int64
}
