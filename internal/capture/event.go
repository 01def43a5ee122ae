// Package capture defines the screenshot-captured signal shared by every monitor.
package capture

// Event reports one accepted screenshot. Path is absolute.
type Event struct {
	Path string
}

// Publisher receives capture events from a monitor.
// Implementations must not block for long: monitors call Publish inline.
type Publisher interface {
	Publish(Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Event)

// Publish calls f(ev).
func (f PublisherFunc) Publish(ev Event) { f(ev) }
