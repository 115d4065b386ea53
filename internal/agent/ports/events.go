package ports

import "time"

// AgentEvent represents a domain event emitted during execution.
// It mirrors the contract implemented by the domain layer events.
type AgentEvent interface {
	EventType() string
	Timestamp() time.Time
}

// EventListener consumes agent events (used by CLI rendering and the
// trajectory recorder)
type EventListener interface {
	OnEvent(event AgentEvent)
}

// EventListenerFunc adapts a function to the EventListener interface.
type EventListenerFunc func(event AgentEvent)

// OnEvent implements EventListener.
func (f EventListenerFunc) OnEvent(event AgentEvent) {
	f(event)
}
