// Package dispatch orchestrates the delivery pipeline: envelope build,
// classification, size-bounded splitting, and transport, one record at
// a time.
package dispatch

import (
	"context"
	"errors"

	"github.com/tinytelemetry/relay/internal/envelope"
	"github.com/tinytelemetry/relay/internal/model"
	"github.com/tinytelemetry/relay/internal/transport"
	"go.uber.org/zap"
)

// PayloadSender is the narrow transport contract the dispatcher needs.
type PayloadSender interface {
	Send(ctx context.Context, category model.Category, payload []byte) error
}

// Dispatcher runs records through the pipeline sequentially. Delivery
// is synchronous; the trigger environment scales by invoking more
// pipelines, not by fan-out inside one.
type Dispatcher struct {
	splitter *envelope.Splitter
	sender   PayloadSender
	logger   *zap.Logger
}

// NewDispatcher wires the splitter and sender together. A nil logger
// disables dispatch logging.
func NewDispatcher(splitter *envelope.Splitter, sender PayloadSender, logger *zap.Logger) *Dispatcher {
	if splitter == nil {
		splitter = envelope.NewSplitter(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		splitter: splitter,
		sender:   sender,
		logger:   logger,
	}
}

// DispatchRecord builds one envelope from the raw entry, classifies it,
// and sends every resulting payload in order.
//
// A *transport.BadRequestError on one payload is reported and that
// payload dropped; sibling payloads still ship. Everything else —
// retry exhaustion, throttling, an entry that cannot be split — aborts
// the rest of this record and is returned to the caller.
func (d *Dispatcher) DispatchRecord(ctx context.Context, entry string, ic model.InvocationContext) error {
	env, err := envelope.Build(entry, ic)
	if err != nil {
		return err
	}
	category := envelope.Classify(entry)

	err = d.splitter.Each(env, func(payload []byte) error {
		sendErr := d.sender.Send(ctx, category, payload)
		var badReq *transport.BadRequestError
		if errors.As(sendErr, &badReq) {
			d.logger.Warn("payload dropped after rejection",
				zap.Stringer("category", category),
				zap.Int("status", badReq.StatusCode),
				zap.String("reason", badReq.Reason))
			return nil
		}
		return sendErr
	})
	if err != nil {
		if errors.Is(err, envelope.ErrEntryNotSplittable) || errors.Is(err, envelope.ErrEventTooLarge) {
			d.logger.Error("record cannot be split to fit payload limit", zap.Error(err))
		}
		return err
	}
	return nil
}

// DispatchAll runs every record through DispatchRecord. A failing
// record is reported and skipped; remaining records still get their
// chance. The first failure is returned so the invocation surfaces it.
func (d *Dispatcher) DispatchAll(ctx context.Context, records []string, ic model.InvocationContext) error {
	var first error
	for i, record := range records {
		if err := d.DispatchRecord(ctx, record, ic); err != nil {
			d.logger.Error("record abandoned", zap.Int("record", i), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}
