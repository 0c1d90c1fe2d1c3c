package orchestrator

import "fmt"

// TurnEvent is emitted as a run moves through its states.
type TurnEvent struct {
	Session string
	Turn    int
	State   State
	Tool    string
	Message string
}

// EventReporter emits turn events through a buffered channel.
type EventReporter struct {
	ch chan TurnEvent
}

// NewEventReporter creates an EventReporter with a buffered channel of size 64.
func NewEventReporter() *EventReporter {
	return &EventReporter{
		ch: make(chan TurnEvent, 64),
	}
}

// Emit sends an event without blocking.
// If the channel is full, the event is silently dropped.
func (r *EventReporter) Emit(event TurnEvent) {
	select {
	case r.ch <- event:
	default:
	}
}

// Subscribe returns a read-only channel for consuming turn events.
func (r *EventReporter) Subscribe() <-chan TurnEvent {
	return r.ch
}

// Close closes the event channel.
func (r *EventReporter) Close() {
	close(r.ch)
}

// FormatEvent formats a TurnEvent as a human-readable status line.
func FormatEvent(event TurnEvent) string {
	switch event.State {
	case StateAwaitModel:
		return fmt.Sprintf("  ○ turn %d: waiting for model (%s)", event.Turn, event.Message)
	case StateDiscovering:
		return fmt.Sprintf("  ● turn %d: discovering %q", event.Turn, event.Message)
	case StateHydrating:
		return fmt.Sprintf("  ● turn %d: hydrating, %s", event.Turn, event.Message)
	case StateExecuting:
		return fmt.Sprintf("  ● turn %d: executing %s", event.Turn, event.Tool)
	case StateDone:
		return fmt.Sprintf("  ✓ turn %d: %s", event.Turn, event.Message)
	default:
		return fmt.Sprintf("  ? turn %d (unknown state)", event.Turn)
	}
}
