package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/tinytelemetry/relay/internal/model"
)

var (
	// ErrEntryNotSplittable means an oversized entry is not a JSON
	// document with a logEvents array, so it cannot be halved.
	ErrEntryNotSplittable = errors.New("envelope: oversized entry has no logEvents array to split")

	// ErrEventTooLarge means a single log event still exceeds the
	// payload limit on its own.
	ErrEventTooLarge = errors.New("envelope: single log event exceeds payload size limit")
)

// Splitter turns one envelope into a stream of compressed payloads, each
// strictly below the configured size limit.
type Splitter struct {
	maxPayloadSize int
}

// NewSplitter creates a Splitter with the given payload ceiling in bytes.
// A non-positive limit falls back to the default.
func NewSplitter(maxPayloadSize int) *Splitter {
	if maxPayloadSize <= 0 {
		maxPayloadSize = model.DefaultMaxPayloadSize
	}
	return &Splitter{maxPayloadSize: maxPayloadSize}
}

// Each serializes env and feeds the resulting payloads to fn in order.
// When the wire form fits the limit, fn is called exactly once with
// bytes identical to Encode(env). Otherwise the entry's logEvents array
// is halved (floor division on the left) and both halves are processed
// recursively, preserving event order with no duplication or loss.
// The recursion terminates: every level halves the event list, and a
// list of one that still does not fit surfaces ErrEventTooLarge.
//
// An error from fn stops the stream and is returned as-is, so callers
// can thread delivery failures through unchanged.
func (s *Splitter) Each(env model.Envelope, fn func(payload []byte) error) error {
	payload, err := Encode(env)
	if err != nil {
		return err
	}
	if len(payload) < s.maxPayloadSize {
		return fn(payload)
	}

	left, right, err := splitEntry(env)
	if err != nil {
		return err
	}
	if err := s.Each(left, fn); err != nil {
		return err
	}
	return s.Each(right, fn)
}

// Encode produces the wire form of an envelope: JSON, then gzip.
func Encode(env model.Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("envelope: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("envelope: compress: %w", err)
	}
	return buf.Bytes(), nil
}

// splitEntry halves the entry's logEvents array into two sibling
// envelopes sharing the same context.
func splitEntry(env model.Envelope) (model.Envelope, model.Envelope, error) {
	events := gjson.Get(env.Entry, "logEvents")
	if !events.Exists() || !events.IsArray() {
		return model.Envelope{}, model.Envelope{}, ErrEntryNotSplittable
	}

	list := events.Array()
	if len(list) <= 1 {
		return model.Envelope{}, model.Envelope{}, ErrEventTooLarge
	}

	half := len(list) / 2
	leftEntry, err := rebuildEntry(env.Entry, list[:half])
	if err != nil {
		return model.Envelope{}, model.Envelope{}, err
	}
	rightEntry, err := rebuildEntry(env.Entry, list[half:])
	if err != nil {
		return model.Envelope{}, model.Envelope{}, err
	}

	left := model.Envelope{Context: env.Context, Entry: leftEntry}
	right := model.Envelope{Context: env.Context, Entry: rightEntry}
	return left, right, nil
}

// rebuildEntry replaces the logEvents array with the given slice of
// events, keeping each event's raw bytes untouched.
func rebuildEntry(entry string, events []gjson.Result) (string, error) {
	var raw strings.Builder
	raw.WriteByte('[')
	for i, ev := range events {
		if i > 0 {
			raw.WriteByte(',')
		}
		raw.WriteString(ev.Raw)
	}
	raw.WriteByte(']')

	out, err := sjson.SetRaw(entry, "logEvents", raw.String())
	if err != nil {
		return "", fmt.Errorf("envelope: rebuild entry: %w", err)
	}
	return out, nil
}
