package eventsource

import "github.com/tinytelemetry/relay/internal/model"

// EventSource is a unified interface for all trigger event inputs (HTTP, stdin).
type EventSource interface {
	Events() <-chan model.TriggerEvent // read-only channel of trigger events
	Stop()                             // graceful shutdown
	Name() string                      // "http", "stdin"
}
