// Package envelope builds, classifies, and splits the delivery units of
// the forwarding pipeline. Everything here is pure: no I/O, no clocks.
package envelope

import (
	"errors"

	"github.com/tinytelemetry/relay/internal/model"
)

// ErrEmptyContext is returned when an envelope is built without an
// invocation identity. That is a caller bug, not a delivery failure.
var ErrEmptyContext = errors.New("envelope: empty invocation context")

// Build wraps one raw log entry with the invocation identity.
func Build(entry string, ic model.InvocationContext) (model.Envelope, error) {
	if ic.Empty() {
		return model.Envelope{}, ErrEmptyContext
	}
	return model.Envelope{Context: ic, Entry: entry}, nil
}
