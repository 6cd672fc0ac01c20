package eventsource

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"os"

	"github.com/tinytelemetry/relay/internal/model"
)

const (
	// DefaultStdinBuffer is the default channel buffer size for stdin events.
	DefaultStdinBuffer = 1024

	// DefaultStdinMaxEventSize is the default maximum size (in bytes) of a
	// single trigger event read from stdin.
	DefaultStdinMaxEventSize = 10 * 1024 * 1024 // 10MB
)

// StdinConfig holds tunable parameters for the stdin source.
type StdinConfig struct {
	BufferSize   int
	MaxEventSize int
}

// StdinSource reads trigger events from stdin, one JSON document per line.
type StdinSource struct {
	ch     chan model.TriggerEvent
	cancel context.CancelFunc
}

// NewStdinSource creates a StdinSource that reads from stdin in a background goroutine.
func NewStdinSource(ctx context.Context, conf ...StdinConfig) *StdinSource {
	return newStdinSourceWithReader(ctx, os.Stdin, conf...)
}

func newStdinSourceWithReader(ctx context.Context, r io.Reader, conf ...StdinConfig) *StdinSource {
	bufferSize := DefaultStdinBuffer
	maxEventSize := DefaultStdinMaxEventSize
	if len(conf) > 0 {
		if conf[0].BufferSize > 0 {
			bufferSize = conf[0].BufferSize
		}
		if conf[0].MaxEventSize > 0 {
			maxEventSize = conf[0].MaxEventSize
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &StdinSource{
		ch:     make(chan model.TriggerEvent, bufferSize),
		cancel: cancel,
	}
	go s.read(ctx, r, maxEventSize)
	return s
}

func (s *StdinSource) read(ctx context.Context, r io.Reader, maxEventSize int) {
	defer close(s.ch)

	scanner := bufio.NewScanner(r)
	buf := make([]byte, maxEventSize)
	scanner.Buffer(buf, maxEventSize)

	// Use a single goroutine for blocking scan with a result channel to
	// detect context cancellation without spawning a goroutine per event.
	type scanResult struct {
		line string
		ok   bool
	}
	results := make(chan scanResult)
	go func() {
		defer close(results)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			select {
			case results <- scanResult{line: line, ok: true}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				log.Printf("eventsource: stdin event exceeded max size (%d bytes), stopping stdin source", maxEventSize)
				return
			}
			log.Printf("eventsource: stdin scanner error: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-results:
			if !ok || !r.ok {
				return
			}
			select {
			case s.ch <- model.TriggerEvent{Source: s.Name(), Body: r.line}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *StdinSource) Events() <-chan model.TriggerEvent { return s.ch }
func (s *StdinSource) Stop()                             { s.cancel() }
func (s *StdinSource) Name() string                      { return "stdin" }
