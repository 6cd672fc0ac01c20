package model

import "time"

// Shared defaults used by both the delivery pipeline and the CLI binary.
// Raising the retry numbers lengthens invocations on communication
// failure; lowering them raises the chance of data loss.
const (
	// DefaultMaxPayloadSize is the hard upper bound on one compressed
	// payload placed on the wire.
	DefaultMaxPayloadSize = 1000 * 1024

	// DefaultMaxRetries is the attempt budget per payload.
	DefaultMaxRetries = 3

	// DefaultInitialBackoff is the sleep before the second attempt.
	DefaultInitialBackoff = 1 * time.Second

	// DefaultBackoffMultiplier doubles the backoff between attempts.
	DefaultBackoffMultiplier = 2.0

	// DefaultRequestTimeout bounds a single delivery attempt.
	DefaultRequestTimeout = 30 * time.Second
)

// Ingest service endpoints. Do not modify.
const (
	IngestVersion = "v1"
	USIngestHost  = "https://cloud-collector.newrelic.com"
	EUIngestHost  = "https://cloud-collector.eu.newrelic.com"
)
