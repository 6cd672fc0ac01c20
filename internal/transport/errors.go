package transport

import "fmt"

// BadRequestError is a fatal, non-retryable rejection by the ingest
// service. The affected payload is dropped after a single report.
type BadRequestError struct {
	StatusCode int
	Reason     string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("transport: status %d: %s", e.StatusCode, e.Reason)
}

// ThrottledError reports that the ingest service rate-limited the
// request. It is raised immediately instead of retried: hammering a
// throttled endpoint only makes things worse.
type ThrottledError struct {
	StatusCode int
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("transport: status %d: too many requests", e.StatusCode)
}

// MaxRetriesError means the attempt budget was consumed without a
// successful delivery. Last carries the final attempt's failure.
type MaxRetriesError struct {
	Attempts int
	Last     error
}

func (e *MaxRetriesError) Error() string {
	return fmt.Sprintf("transport: retry limit reached after %d attempts: %v", e.Attempts, e.Last)
}

func (e *MaxRetriesError) Unwrap() error { return e.Last }
