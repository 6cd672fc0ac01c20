package main

import (
	"time"

	"github.com/tinytelemetry/relay/internal/model"
)

const (
	defaultMaxPayloadSize    = model.DefaultMaxPayloadSize
	defaultMaxRetries        = model.DefaultMaxRetries
	defaultInitialBackoff    = model.DefaultInitialBackoff
	defaultBackoffMultiplier = model.DefaultBackoffMultiplier
	defaultRequestTimeout    = model.DefaultRequestTimeout
	defaultBindHost          = "127.0.0.1"
	defaultHTTPPort          = 8483
	defaultMuxBufferSize     = DefaultMuxBuffer
	defaultLogLevel          = "info"
	defaultFunctionName      = "relay"
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	LicenseKey        string        `mapstructure:"license-key"`
	Region            string        `mapstructure:"region"`
	MaxPayloadSize    int           `mapstructure:"max-payload-size"`
	MaxRetries        int           `mapstructure:"max-retries"`
	InitialBackoff    time.Duration `mapstructure:"initial-backoff"`
	BackoffMultiplier float64       `mapstructure:"backoff-multiplier"`
	RequestTimeout    time.Duration `mapstructure:"request-timeout"`
	HTTPEnabled       bool          `mapstructure:"http-enabled"`
	HTTPPort          int           `mapstructure:"http-port"`
	HTTPAddr          string        `mapstructure:"http-addr"`
	MuxBufferSize     int           `mapstructure:"mux-buffer-size"`
	AWSRegion         string        `mapstructure:"aws-region"`
	FunctionName      string        `mapstructure:"function-name"`
	FunctionARN       string        `mapstructure:"function-arn"`
	LogGroupName      string        `mapstructure:"log-group-name"`
	LogStreamName     string        `mapstructure:"log-stream-name"`
	LogLevel          string        `mapstructure:"log-level"`
	LogDevelopment    bool          `mapstructure:"log-development"`
	ConfigPath        string        `mapstructure:"-"` // not from config file
}

// identity returns the invocation context attached to every envelope.
func (c appConfig) identity() model.InvocationContext {
	return model.InvocationContext{
		FunctionName:       c.FunctionName,
		InvokedFunctionARN: c.FunctionARN,
		LogGroupName:       c.LogGroupName,
		LogStreamName:      c.LogStreamName,
	}
}
