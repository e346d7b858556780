// Package status implements the one-slot UI signal channels (C10): a
// small set of non-blocking, latest-value-wins channels that convey
// events to an external UI layer without letting a slow or absent
// consumer stall the core.
package status

// Signal is a one-slot channel: Send never blocks, overwriting any
// unread value, since the UI only cares about the most recent state.
type Signal[T any] struct {
	ch chan T
}

// NewSignal creates a Signal with a one-element buffer.
func NewSignal[T any]() *Signal[T] {
	return &Signal[T]{ch: make(chan T, 1)}
}

// Send delivers v, discarding any previously unread value.
func (s *Signal[T]) Send(v T) {
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- v:
	default:
	}
}

// C exposes the receive side for a select statement.
func (s *Signal[T]) C() <-chan T {
	return s.ch
}

// Hub bundles the three UI signal channels named in §2/C10 plus
// RelayConfigChanged, which wakes the relay client.
type Hub struct {
	// ResetSelectedFiles fires after a copy_handler send clears the
	// tray-selected file set (§4.5).
	ResetSelectedFiles *Signal[struct{}]
	// CloseQuickPair fires after a successful match (§4.8) so the tray
	// can uncheck the quick-pair toggle.
	CloseQuickPair *Signal[struct{}]
	// RelayStatusChanged carries the relay client's connected/disconnected
	// transitions (§4.9 step 4/6).
	RelayStatusChanged *Signal[bool]
	// RelayConfigChanged interrupts the relay outer loop's retry sleep so
	// a setRelayServer update takes effect immediately (§4.9 outer loop).
	RelayConfigChanged *Signal[struct{}]
}

// NewHub constructs a Hub with all four channels ready to use.
func NewHub() *Hub {
	return &Hub{
		ResetSelectedFiles: NewSignal[struct{}](),
		CloseQuickPair:     NewSignal[struct{}](),
		RelayStatusChanged: NewSignal[bool](),
		RelayConfigChanged: NewSignal[struct{}](),
	}
}
