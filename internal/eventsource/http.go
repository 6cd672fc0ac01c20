package eventsource

import "github.com/tinytelemetry/relay/internal/httpserver"
import "github.com/tinytelemetry/relay/internal/model"

// HTTPSource wraps an httpserver.Server as an EventSource.
type HTTPSource struct {
	server *httpserver.Server
}

// NewHTTPSource creates an HTTPSource from an already-started intake server.
func NewHTTPSource(server *httpserver.Server) *HTTPSource {
	return &HTTPSource{server: server}
}

func (h *HTTPSource) Events() <-chan model.TriggerEvent { return h.server.Events() }
func (h *HTTPSource) Stop()                             { _ = h.server.Stop() }
func (h *HTTPSource) Name() string                      { return "http" }
