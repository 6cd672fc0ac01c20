package dispatch

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/tinytelemetry/relay/internal/envelope"
	"github.com/tinytelemetry/relay/internal/model"
	"github.com/tinytelemetry/relay/internal/transport"
	"github.com/tinytelemetry/relay/internal/trigger"
)

// End-to-end tests over the real sender: trigger decode → envelope →
// split → HTTP delivery against a stub ingest service.

type ingestRecorder struct {
	mu     sync.Mutex
	status []int
	posts  []string
}

func (rec *ingestRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		idx := len(rec.posts)
		rec.posts = append(rec.posts, r.URL.Path)
		if idx >= len(rec.status) {
			idx = len(rec.status) - 1
		}
		status := rec.status[idx]
		rec.mu.Unlock()
		w.WriteHeader(status)
	}
}

func (rec *ingestRecorder) count() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return len(rec.posts)
}

func newPipeline(t *testing.T, url string, maxPayload int) *Dispatcher {
	t.Helper()
	sender, err := transport.NewSender(transport.Config{
		LicenseKey:        "test-key",
		Region:            url,
		MaxRetries:        3,
		InitialBackoff:    5 * time.Millisecond,
		BackoffMultiplier: 2,
		RequestTimeout:    2 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	return NewDispatcher(envelope.NewSplitter(maxPayload), sender, nil)
}

func streamingEvent(t *testing.T, block string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(block)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return fmt.Sprintf(`{"awslogs":{"data":"%s"}}`, base64.StdEncoding.EncodeToString(buf.Bytes()))
}

func TestPipelineStreamingTriggerSingleLine(t *testing.T) {
	rec := &ingestRecorder{status: []int{http.StatusOK}}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	event := streamingEvent(t, "one small log line")
	if kind := trigger.Detect(event); kind != trigger.KindCloudWatch {
		t.Fatalf("Detect = %v, want cloudwatch", kind)
	}
	record, err := trigger.DecodeCloudWatch(event)
	if err != nil {
		t.Fatalf("DecodeCloudWatch: %v", err)
	}

	d := newPipeline(t, srv.URL, model.DefaultMaxPayloadSize)
	if err := d.DispatchRecord(context.Background(), record, testIdentity); err != nil {
		t.Fatalf("DispatchRecord: %v", err)
	}
	if rec.count() != 1 {
		t.Errorf("posts = %d, want exactly 1", rec.count())
	}
	if rec.posts[0] != "/aws/v1" {
		t.Errorf("path = %q, want default category path /aws/v1", rec.posts[0])
	}
}

func TestPipelineOversizedRecordSplitsAcrossPosts(t *testing.T) {
	rec := &ingestRecorder{status: []int{http.StatusOK}}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	entry, _ := bigEntry(t, 16)
	d := newPipeline(t, srv.URL, 600)
	if err := d.DispatchRecord(context.Background(), entry, testIdentity); err != nil {
		t.Fatalf("DispatchRecord: %v", err)
	}
	if rec.count() < 2 {
		t.Errorf("posts = %d, want at least 2 for an oversized record", rec.count())
	}
}

func TestPipelineForbiddenDropsRecordWithoutRetry(t *testing.T) {
	rec := &ingestRecorder{status: []int{http.StatusForbidden}}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	d := newPipeline(t, srv.URL, model.DefaultMaxPayloadSize)
	start := time.Now()
	if err := d.DispatchRecord(context.Background(), "rejected line", testIdentity); err != nil {
		t.Fatalf("DispatchRecord: %v (bad request must be recovered)", err)
	}
	if rec.count() != 1 {
		t.Errorf("posts = %d, want 1 (no retries on 403)", rec.count())
	}
	if elapsed := time.Since(start); elapsed > 1*time.Second {
		t.Errorf("elapsed = %v, want no backoff before a fatal error", elapsed)
	}
}

func TestPipelineRecoversAfterTransientFailures(t *testing.T) {
	rec := &ingestRecorder{status: []int{
		http.StatusServiceUnavailable,
		http.StatusServiceUnavailable,
		http.StatusOK,
	}}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	d := newPipeline(t, srv.URL, model.DefaultMaxPayloadSize)
	if err := d.DispatchRecord(context.Background(), "eventually delivered", testIdentity); err != nil {
		t.Fatalf("DispatchRecord: %v", err)
	}
	if rec.count() != 3 {
		t.Errorf("posts = %d, want 3 (two transient failures then success)", rec.count())
	}
}
