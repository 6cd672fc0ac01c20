package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/tidwall/gjson"
	"github.com/tinytelemetry/relay/internal/envelope"
	"github.com/tinytelemetry/relay/internal/model"
	"github.com/tinytelemetry/relay/internal/transport"
)

var testIdentity = model.InvocationContext{
	FunctionName:       "forwarder",
	InvokedFunctionARN: "arn:aws:lambda:us-east-1:123456789012:function:forwarder",
	LogGroupName:       "/aws/lambda/forwarder",
	LogStreamName:      "2026/08/30/[$LATEST]abc",
}

type sentPayload struct {
	category model.Category
	payload  []byte
}

// fakeSender scripts per-call errors and records everything it is given.
type fakeSender struct {
	errs []error
	sent []sentPayload
}

func (f *fakeSender) Send(_ context.Context, category model.Category, payload []byte) error {
	call := len(f.sent)
	f.sent = append(f.sent, sentPayload{category: category, payload: payload})
	if call < len(f.errs) {
		return f.errs[call]
	}
	return nil
}

func decodeEntry(t *testing.T, payload []byte) string {
	t.Helper()
	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return env.Entry
}

// bigEntry builds a logEvents document too large for the given limit.
func bigEntry(t *testing.T, events int) (string, []int64) {
	t.Helper()
	rng := rand.New(rand.NewSource(1))

	type logEvent struct {
		ID      int64  `json:"id"`
		Message string `json:"message"`
	}
	list := make([]logEvent, events)
	ids := make([]int64, events)
	for i := range list {
		buf := make([]byte, 48)
		rng.Read(buf)
		ids[i] = int64(i)
		list[i] = logEvent{ID: int64(i), Message: fmt.Sprintf("%x", buf)}
	}
	entry, err := json.Marshal(map[string]interface{}{"logEvents": list})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(entry), ids
}

func TestDispatchRecordSmallEntrySinglePost(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(envelope.NewSplitter(model.DefaultMaxPayloadSize), sender, nil)

	if err := d.DispatchRecord(context.Background(), "one small log line", testIdentity); err != nil {
		t.Fatalf("DispatchRecord: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sends = %d, want exactly 1", len(sender.sent))
	}
	if sender.sent[0].category != model.CategoryDefault {
		t.Errorf("category = %v, want default", sender.sent[0].category)
	}
	if got := decodeEntry(t, sender.sent[0].payload); got != "one small log line" {
		t.Errorf("entry = %q", got)
	}
}

func TestDispatchRecordRoutesByCategory(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(envelope.NewSplitter(model.DefaultMaxPayloadSize), sender, nil)

	vpcEntry := `{"logGroup":"/aws/vpc/flow-logs","logEvents":[]}`
	if err := d.DispatchRecord(context.Background(), vpcEntry, testIdentity); err != nil {
		t.Fatalf("DispatchRecord: %v", err)
	}
	if sender.sent[0].category != model.CategoryVPC {
		t.Errorf("category = %v, want vpc", sender.sent[0].category)
	}
}

func TestDispatchRecordSplitsOversizedEntry(t *testing.T) {
	entry, ids := bigEntry(t, 16)
	sender := &fakeSender{}
	d := NewDispatcher(envelope.NewSplitter(600), sender, nil)

	if err := d.DispatchRecord(context.Background(), entry, testIdentity); err != nil {
		t.Fatalf("DispatchRecord: %v", err)
	}
	if len(sender.sent) < 2 {
		t.Fatalf("sends = %d, want at least 2", len(sender.sent))
	}

	var got []int64
	for _, s := range sender.sent {
		for _, ev := range gjson.Get(decodeEntry(t, s.payload), "logEvents").Array() {
			got = append(got, ev.Get("id").Int())
		}
	}
	if len(got) != len(ids) {
		t.Fatalf("events across payloads = %d, want %d", len(got), len(ids))
	}
	for i := range ids {
		if got[i] != ids[i] {
			t.Fatalf("event %d id = %d, want %d", i, got[i], ids[i])
		}
	}
}

func TestDispatchRecordDropsRejectedPayloadAndContinues(t *testing.T) {
	entry, _ := bigEntry(t, 16)
	sender := &fakeSender{errs: []error{
		&transport.BadRequestError{StatusCode: 400, Reason: "unexpected payload"},
	}}
	d := NewDispatcher(envelope.NewSplitter(600), sender, nil)

	if err := d.DispatchRecord(context.Background(), entry, testIdentity); err != nil {
		t.Fatalf("DispatchRecord: %v (bad request must be recovered locally)", err)
	}
	if len(sender.sent) < 2 {
		t.Errorf("sends = %d, want sibling payloads after a rejection", len(sender.sent))
	}
}

func TestDispatchRecordAbortsOnRetryExhaustion(t *testing.T) {
	entry, _ := bigEntry(t, 16)
	exhausted := &transport.MaxRetriesError{Attempts: 3, Last: errors.New("dial tcp: refused")}
	sender := &fakeSender{errs: []error{exhausted, exhausted, exhausted, exhausted}}
	d := NewDispatcher(envelope.NewSplitter(600), sender, nil)

	err := d.DispatchRecord(context.Background(), entry, testIdentity)
	var maxRetries *transport.MaxRetriesError
	if !errors.As(err, &maxRetries) {
		t.Fatalf("err = %v, want *MaxRetriesError", err)
	}
	if len(sender.sent) != 1 {
		t.Errorf("sends = %d, want 1 (exhaustion aborts the record)", len(sender.sent))
	}
}

func TestDispatchRecordUnsplittableEntryFails(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	big := make([]byte, 8*1024)
	rng.Read(big)

	sender := &fakeSender{}
	d := NewDispatcher(envelope.NewSplitter(1024), sender, nil)

	err := d.DispatchRecord(context.Background(), fmt.Sprintf("%x", big), testIdentity)
	if !errors.Is(err, envelope.ErrEntryNotSplittable) {
		t.Fatalf("err = %v, want ErrEntryNotSplittable", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("sends = %d, want 0", len(sender.sent))
	}
}

func TestDispatchRecordEmptyContextIsFatal(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(nil, sender, nil)

	err := d.DispatchRecord(context.Background(), "line", model.InvocationContext{})
	if !errors.Is(err, envelope.ErrEmptyContext) {
		t.Fatalf("err = %v, want ErrEmptyContext", err)
	}
}

func TestDispatchAllContinuesPastFailedRecord(t *testing.T) {
	exhausted := &transport.MaxRetriesError{Attempts: 3, Last: errors.New("timeout")}
	sender := &fakeSender{errs: []error{exhausted}}
	d := NewDispatcher(envelope.NewSplitter(model.DefaultMaxPayloadSize), sender, nil)

	records := []string{"first line", "second line", "third line"}
	err := d.DispatchAll(context.Background(), records, testIdentity)

	var maxRetries *transport.MaxRetriesError
	if !errors.As(err, &maxRetries) {
		t.Fatalf("err = %v, want first record's *MaxRetriesError", err)
	}
	if len(sender.sent) != 3 {
		t.Fatalf("sends = %d, want 3 (later records still processed)", len(sender.sent))
	}
	if got := decodeEntry(t, sender.sent[2].payload); got != "third line" {
		t.Errorf("last entry = %q, want %q", got, "third line")
	}
}
