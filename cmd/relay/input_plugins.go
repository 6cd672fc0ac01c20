package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tinytelemetry/relay/internal/eventsource"
	"github.com/tinytelemetry/relay/internal/httpserver"
)

// NamedEventSource aliases the shared source abstraction to keep app-layer APIs explicit.
type NamedEventSource = eventsource.EventSource

// InputSourcePlugin is a small plugin primitive for wiring trigger inputs.
type InputSourcePlugin interface {
	Name() string
	Enabled() bool
	Build(ctx context.Context) (NamedEventSource, error)
}

// InputPluginConfig defines runtime input selection.
type InputPluginConfig struct {
	HTTPEnabled bool
	HTTPAddr    string
}

func buildInputPlugins(cfg InputPluginConfig) []InputSourcePlugin {
	plugins := make([]InputSourcePlugin, 0, 2)
	plugins = append(plugins, httpInputPlugin{
		addr:    cfg.HTTPAddr,
		enabled: cfg.HTTPEnabled,
	})
	plugins = append(plugins, stdinInputPlugin{})
	return plugins
}

type httpInputPlugin struct {
	addr    string
	enabled bool
}

func (p httpInputPlugin) Name() string { return "http" }

func (p httpInputPlugin) Enabled() bool { return p.enabled }

func (p httpInputPlugin) Build(_ context.Context) (NamedEventSource, error) {
	server := httpserver.NewServer(p.addr)
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("start intake server: %w", err)
	}
	return eventsource.NewHTTPSource(server), nil
}

type stdinInputPlugin struct{}

func (p stdinInputPlugin) Name() string { return "stdin" }

func (p stdinInputPlugin) Enabled() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

func (p stdinInputPlugin) Build(ctx context.Context) (NamedEventSource, error) {
	return eventsource.NewStdinSource(ctx), nil
}
