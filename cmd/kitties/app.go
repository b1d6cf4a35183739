package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"kittycore/internal/adapters/eventarchive"
	"kittycore/internal/blob"
	"kittycore/internal/core"
	"kittycore/internal/platform/config"
	"kittycore/internal/platform/genesis"
	"kittycore/internal/platform/logging"
	"kittycore/internal/random"
)

type appOptions struct {
	trace bool
	stats bool
}

// app holds the collaborators for one command invocation.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	store   core.PersistentStore
	svc     *core.Service
	events  *core.MemorySink
	archive blob.Store
	metrics *core.PrometheusRecorder
	stats   *core.ExpvarMetricsRecorder
	stderr  io.Writer
}

func openApp(ctx context.Context, cfg config.Config, stderr io.Writer, opts appOptions) (*app, error) {
	logger, err := logging.New(stderr, logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return nil, err
	}
	store, err := core.OpenPersistentStore(cfg.Storage(), core.NewDefaultRulesEngine())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, store: store, events: core.NewMemorySink(), stderr: stderr}
	if err := a.init(ctx, opts); err != nil {
		_ = core.CloseStore(store)
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context, opts appOptions) error {
	metrics, err := core.NewPrometheusRecorder()
	if err != nil {
		return err
	}
	a.metrics = metrics
	recorders := fanoutMetrics{metrics}
	if opts.stats {
		a.stats = core.NewExpvarMetricsRecorder("")
		recorders = append(recorders, a.stats)
	}

	svcOpts := []core.ServiceOption{
		core.WithLogger(a.logger),
		core.WithMetricsRecorder(recorders),
		core.WithAuditRecorder(auditLogger{logger: a.logger}),
		core.WithEventSink(a.events),
	}
	if a.cfg.RandomSeed != "" {
		seed, err := random.ParseSeed(a.cfg.RandomSeed)
		if err != nil {
			return fmt.Errorf("KITTYCORE_RANDOM_SEED: %w", err)
		}
		svcOpts = append(svcOpts, core.WithRandomness(random.NewKeyed(seed)))
	}
	if opts.trace {
		svcOpts = append(svcOpts, core.WithTracer(core.NewJSONTracer(a.stderr)))
	}
	if a.cfg.ArchiveEnabled() {
		archive, err := blob.Open(ctx, a.cfg.BlobStore())
		if err != nil {
			return fmt.Errorf("open event archive: %w", err)
		}
		sink, err := eventarchive.NewSink(ctx, archive)
		if err != nil {
			return err
		}
		a.archive = archive
		svcOpts = append(svcOpts, core.WithEventSink(sink))
	}
	a.svc = core.NewService(a.store, svcOpts...)

	if a.cfg.GenesisFile != "" {
		g, err := genesis.Load(a.cfg.GenesisFile)
		if err != nil {
			return err
		}
		applied, err := genesis.Apply(ctx, a.svc, g)
		if err != nil {
			return err
		}
		if applied {
			a.logger.Info("genesis applied", "accounts", len(g.Balances), "file", a.cfg.GenesisFile)
		}
	}
	return nil
}

// Close flushes metrics and releases the store.
func (a *app) Close() error {
	var errs []error
	if a.cfg.MetricsFile != "" && a.metrics != nil {
		if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if a.stats != nil {
		if err := json.NewEncoder(a.stderr).Encode(a.stats.Snapshot()); err != nil {
			errs = append(errs, err)
		}
	}
	if err := core.CloseStore(a.store); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}

type fanoutMetrics []core.MetricsRecorder

func (f fanoutMetrics) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, r := range f {
		r.Observe(ctx, operation, success, duration)
	}
}

type auditLogger struct {
	logger *slog.Logger
}

func (a auditLogger) Record(ctx context.Context, entry core.AuditEntry) {
	attrs := []any{
		"operation", entry.Operation,
		"entity", string(entry.Entity),
		"action", string(entry.Action),
		"caller", uint64(entry.Caller),
		"status", string(entry.Status),
		"duration", entry.Duration,
	}
	if entry.EntityID != "" {
		attrs = append(attrs, "entity_id", entry.EntityID)
	}
	if entry.Code != "" {
		attrs = append(attrs, "code", string(entry.Code))
	}
	a.logger.InfoContext(ctx, "audit", attrs...)
}
