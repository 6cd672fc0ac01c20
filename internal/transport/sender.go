// Package transport delivers compressed payloads to the ingest service,
// classifying HTTP failures and retrying transient ones with
// exponential backoff.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tinytelemetry/relay/internal/model"
	"go.uber.org/zap"
)

// Config holds the read-only delivery parameters. It is constructed
// once at startup and passed in explicitly; there is no hidden state.
type Config struct {
	LicenseKey        string
	Region            string
	MaxRetries        int
	InitialBackoff    time.Duration
	BackoffMultiplier float64
	RequestTimeout    time.Duration
}

// Validate checks the parts of the configuration that would otherwise
// fail on the first delivery. Region resolution fails fast here.
func (c Config) Validate() error {
	if c.LicenseKey == "" {
		return errors.New("transport: license key is required")
	}
	if _, err := ResolveHost(c.Region, c.LicenseKey); err != nil {
		return err
	}
	return nil
}

// Sender performs the authenticated, gzip-encoded POST to the ingest
// service. One Sender is safe for use by a single dispatch loop; it
// keeps no per-payload state beyond the in-flight attempt.
type Sender struct {
	cfg    Config
	host   string
	client *http.Client
	logger *zap.Logger
}

// NewSender validates cfg and constructs a Sender. Zero-valued retry
// tuning falls back to the package defaults.
func NewSender(cfg Config, logger *zap.Logger) (*Sender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = model.DefaultMaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = model.DefaultInitialBackoff
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = model.DefaultBackoffMultiplier
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = model.DefaultRequestTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	host, err := ResolveHost(cfg.Region, cfg.LicenseKey)
	if err != nil {
		return nil, err
	}

	return &Sender{
		cfg:    cfg,
		host:   host,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		logger: logger,
	}, nil
}

// Send posts one payload to the category's ingest URL.
//
// Responses are classified per attempt: 2xx succeeds, 4xx is fatal
// (*BadRequestError, or *ThrottledError for 429) and ends the attempt
// loop immediately, while network failures and 5xx responses are
// retried with exponential backoff until the attempt budget runs out,
// at which point a *MaxRetriesError wrapping the last failure is
// returned.
func (s *Sender) Send(ctx context.Context, category model.Category, payload []byte) error {
	url := IngestURL(s.host, category)

	attempt := 0
	operation := func() error {
		attempt++
		err := s.post(ctx, url, payload)
		if err == nil {
			s.logger.Info("payload delivered",
				zap.Stringer("category", category),
				zap.Int("bytes", len(payload)),
				zap.Int("attempt", attempt))
			return nil
		}

		var badReq *BadRequestError
		var throttled *ThrottledError
		if errors.As(err, &badReq) || errors.As(err, &throttled) {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.InitialBackoff
	bo.Multiplier = s.cfg.BackoffMultiplier
	bo.RandomizationFactor = 0
	bo.MaxInterval = 1 * time.Hour
	bo.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		s.logger.Warn("delivery attempt failed, retrying",
			zap.Stringer("category", category),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))
	}

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(s.cfg.MaxRetries-1)), ctx),
		notify)
	if err == nil {
		return nil
	}

	var badReq *BadRequestError
	var throttled *ThrottledError
	switch {
	case errors.As(err, &badReq), errors.As(err, &throttled):
		s.logger.Error("payload rejected", zap.Stringer("category", category), zap.Error(err))
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		s.logger.Error("retry limit reached, payload not delivered",
			zap.Stringer("category", category),
			zap.Int("attempts", attempt),
			zap.Error(err))
		return &MaxRetriesError{Attempts: attempt, Last: err}
	}
}

// post performs a single attempt and classifies the response.
func (s *Sender) post(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("transport: build request: %w", err)
	}
	req.Header.Set("X-License-Key", s.cfg.LicenseKey)
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("transport: request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return classifyStatus(resp.StatusCode)
}

// classifyStatus maps an HTTP status to the error taxonomy. A nil
// return is a delivered payload; non-2xx outside 4xx stays retryable.
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusBadRequest:
		return &BadRequestError{StatusCode: code, Reason: "unexpected payload"}
	case code == http.StatusForbidden:
		return &BadRequestError{StatusCode: code, Reason: "review your license key"}
	case code == http.StatusNotFound:
		return &BadRequestError{StatusCode: code, Reason: "review the region endpoint"}
	case code == http.StatusTooManyRequests:
		return &ThrottledError{StatusCode: code}
	case code >= 400 && code < 500:
		return &BadRequestError{StatusCode: code, Reason: "bad request"}
	default:
		return fmt.Errorf("transport: server returned status %d", code)
	}
}
