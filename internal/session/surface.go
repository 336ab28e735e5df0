package session

// EditSurface is the external edit surface the core drives. The core never
// renders; it only applies content, reads the local draft, and gates edits.
type EditSurface interface {
	// ApplyContent replaces the surface's content with the given payload
	ApplyContent(content []byte)

	// LocalContent returns the surface's current local content
	LocalContent() []byte

	// SetEditsBlocked gates local editing, e.g. while a scene is loading
	SetEditsBlocked(blocked bool)

	// Clear drops all local state. Used before applying a fetched room
	// snapshot so an in-progress local draft is never merged with it.
	Clear()
}

// Relay is the client's duplex channel to the room relay
type Relay interface {
	// Broadcast sends a delta to the other members of the joined room
	Broadcast(delta []byte) error

	// Updates yields deltas broadcast by other members
	Updates() <-chan []byte

	// Reconnected signals that the channel dropped and came back. The
	// session re-fetches canonical content on it instead of trusting
	// anything cached locally.
	Reconnected() <-chan struct{}

	Close() error
}
