package supervisor

// Event represents a supervisor lifecycle event.
// Minimal and stable: name plus optional fields via key/values. Names in
// use: spawn_start, loading, ready, spawn_exit, spawn_timeout, stop,
// forced_kill.
type Event struct {
	Name   string
	Fields map[string]any
}

// Publisher receives events from the supervisor. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type Publisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
