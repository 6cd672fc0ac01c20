package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tinytelemetry/relay/internal/dispatch"
	"github.com/tinytelemetry/relay/internal/envelope"
	"github.com/tinytelemetry/relay/internal/logging"
	"github.com/tinytelemetry/relay/internal/model"
	"github.com/tinytelemetry/relay/internal/transport"
	"github.com/tinytelemetry/relay/internal/trigger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// runServer starts the delivery pipeline and drains trigger events
// until a signal arrives or all sources close.
func runServer(cfg appConfig) error {
	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	sender, err := transport.NewSender(transport.Config{
		LicenseKey:        cfg.LicenseKey,
		Region:            cfg.Region,
		MaxRetries:        cfg.MaxRetries,
		InitialBackoff:    cfg.InitialBackoff,
		BackoffMultiplier: cfg.BackoffMultiplier,
		RequestTimeout:    cfg.RequestTimeout,
	}, logger.Named("transport"))
	if err != nil {
		return fmt.Errorf("failed to initialize transport: %w", err)
	}

	splitter := envelope.NewSplitter(cfg.MaxPayloadSize)
	dispatcher := dispatch.NewDispatcher(splitter, sender, logger.Named("dispatch"))

	fetcher, err := trigger.NewS3Fetcher(cfg.AWSRegion)
	if err != nil {
		return fmt.Errorf("failed to initialize object fetcher: %w", err)
	}

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now — not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	// Build input plugins and source multiplexer
	plugins := buildInputPlugins(InputPluginConfig{
		HTTPEnabled: cfg.HTTPEnabled,
		HTTPAddr:    cfg.HTTPAddr,
	})

	sources := make([]NamedEventSource, 0, len(plugins))
	for _, plugin := range plugins {
		if !plugin.Enabled() {
			continue
		}
		src, err := plugin.Build(ctx)
		if err != nil {
			logger.Error("failed to initialize input plugin",
				zap.String("plugin", plugin.Name()), zap.Error(err))
			continue
		}
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no trigger event sources available")
	}

	mux := NewSourceMultiplexer(ctx, sources, cfg.MuxBufferSize)
	mux.Start()

	logger.Info("relay started",
		zap.String("region", cfg.Region),
		zap.Int("sources", len(sources)),
		zap.String("http_addr", cfg.HTTPAddr))

	identity := cfg.identity()

	// Use errgroup for concurrent goroutine lifecycle management.
	g, gctx := errgroup.WithContext(ctx)

	// Dispatch loop: one event at a time, delivery is synchronous.
	g.Go(func() error {
		for event := range mux.Events() {
			processEvent(gctx, dispatcher, fetcher, event, identity, logger)
		}
		return nil
	})

	// Wait for context cancellation (from signal handler) in the errgroup
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	// Wait for either signal or all sources to close.
	if err := g.Wait(); err != nil {
		logger.Error("event loop exited with error", zap.Error(err))
	}

	cancel()
	mux.Stop()
	signal.Stop(sigCh)

	return nil
}

// processEvent classifies one trigger event and runs the extracted
// records through the dispatcher. Failures are reported and the loop
// moves on; an event is never retried at this level.
func processEvent(
	ctx context.Context,
	dispatcher *dispatch.Dispatcher,
	fetcher trigger.ObjectFetcher,
	event model.TriggerEvent,
	identity model.InvocationContext,
	logger *zap.Logger,
) {
	switch kind := trigger.Detect(event.Body); kind {
	case trigger.KindCloudWatch:
		record, err := trigger.DecodeCloudWatch(event.Body)
		if err != nil {
			logger.Error("failed to decode streaming trigger",
				zap.String("source", event.Source), zap.Error(err))
			return
		}
		if err := dispatcher.DispatchRecord(ctx, record, identity); err != nil {
			logger.Error("streaming record not delivered", zap.Error(err))
		}

	case trigger.KindS3:
		records, err := trigger.RecordsFromObject(ctx, fetcher, event.Body)
		if err != nil {
			logger.Error("failed to read stored object",
				zap.String("source", event.Source), zap.Error(err))
			return
		}
		if err := dispatcher.DispatchAll(ctx, records, identity); err != nil {
			logger.Error("stored-object records partially delivered", zap.Error(err))
		}

	default:
		logger.Warn("unsupported trigger event",
			zap.String("source", event.Source),
			zap.Stringer("kind", kind))
	}
}
