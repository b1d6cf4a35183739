package core

import (
	"bytes"
	"context"
	"errors"
	"expvar"
	"strings"
	"testing"
	"time"

	"kittycore/internal/infra/persistence/memory"
	"kittycore/internal/random"
	"kittycore/pkg/domain"
)

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus, predicate func(AuditEntry) bool) bool {
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			if predicate == nil || predicate(entry) {
				return true
			}
		}
	}
	return false
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

type spanRecord struct {
	op  string
	err error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	for _, record := range c.ended {
		if record.op == op && (record.err == nil) == success {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

type captureLogger struct{ calls []string }

func (c *captureLogger) Debug(msg string, _ ...any) { c.calls = append(c.calls, "d:"+msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.calls = append(c.calls, "i:"+msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.calls = append(c.calls, "w:"+msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.calls = append(c.calls, "e:"+msg) }

func (c *captureLogger) has(prefix string) bool {
	for _, call := range c.calls {
		if strings.HasPrefix(call, prefix) {
			return true
		}
	}
	return false
}

// brokenStore fails every transaction as a durable backend would on I/O errors.
type brokenStore struct {
	*memory.Store
}

func (brokenStore) RunInTransaction(context.Context, func(Transaction) error) (Result, error) {
	return Result{}, errors.New("disk full")
}

type failingSink struct{}

func (failingSink) Publish(context.Context, []Event) error { return errors.New("sink offline") }

func TestServiceObservabilityAcrossOperations(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}

	svc := NewInMemoryService(NewDefaultRulesEngine(),
		WithRandomness(random.NewFixed(domain.Seed{})),
		WithAuditRecorder(audit),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
	)
	if _, err := svc.Deposit(ctx, 200, 500); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	kitty, _, err := svc.Create(ctx, 100)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !audit.has(OpCreateKitty, AuditStatusSuccess, func(entry AuditEntry) bool {
		return entry.EntityID == "0" && entry.Entity == EntityKitty && entry.Action == ActionCreate && entry.Caller == 100
	}) {
		t.Fatalf("expected audit entry for create_kitty success, got %+v", audit.entries)
	}
	if _, err := svc.SetPrice(ctx, 100, kitty.ID, domain.PriceOf(10)); err != nil {
		t.Fatalf("set price: %v", err)
	}
	if _, err := svc.Buy(ctx, 200, 100, kitty.ID, 10); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := svc.Transfer(ctx, 200, 300, kitty.ID); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if _, _, err := svc.Breed(ctx, 300, 0, 0); err == nil {
		t.Fatalf("expected breed_kitty error")
	}
	if !audit.has(OpBreedKitty, AuditStatusError, func(entry AuditEntry) bool {
		return entry.Code == domain.CodeSameGender && entry.Error != ""
	}) {
		t.Fatalf("expected audit error entry for breed_kitty, got %+v", audit.entries)
	}
	if !metrics.has(OpBreedKitty, false) {
		t.Fatalf("expected metrics entry for failed breed_kitty")
	}
	if !tracer.has(OpBreedKitty, false) {
		t.Fatalf("expected trace span for failed breed_kitty")
	}

	for _, op := range []string{OpCreateKitty, OpSetPrice, OpBuyKitty, OpTransferKitty} {
		if !metrics.has(op, true) {
			t.Fatalf("expected metrics success entry for %s", op)
		}
		if !tracer.has(op, true) {
			t.Fatalf("expected finished span for %s", op)
		}
		if !audit.has(op, AuditStatusSuccess, nil) {
			t.Fatalf("expected audit success entry for %s", op)
		}
	}
	if len(tracer.started) != len(tracer.ended) {
		t.Fatalf("every started span must end: %d/%d", len(tracer.started), len(tracer.ended))
	}
}

func TestServiceLogLevels(t *testing.T) {
	ctx := context.Background()

	log := &captureLogger{}
	svc := NewInMemoryService(NewDefaultRulesEngine(), WithLogger(log), WithEventSink(failingSink{}))
	if _, _, err := svc.Create(ctx, 1); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !log.has("d:") {
		t.Fatalf("expected debug log on success, got %v", log.calls)
	}
	if !log.has("e:event publish failed") {
		t.Fatalf("expected publish failure to be logged, got %v", log.calls)
	}

	log.calls = nil
	if _, err := svc.Transfer(ctx, 2, 3, 0); err == nil {
		t.Fatalf("expected transfer rejection")
	}
	if !log.has("w:") || log.has("e:") {
		t.Fatalf("expected domain rejection at warn only, got %v", log.calls)
	}

	log.calls = nil
	broken := NewService(brokenStore{memory.NewStore(nil)}, WithLogger(log))
	if _, _, err := broken.Create(ctx, 1); err == nil {
		t.Fatalf("expected store failure")
	}
	if !log.has("e:core operation failed") {
		t.Fatalf("expected error log for store failure, got %v", log.calls)
	}
}

func TestServiceLogsRuleViolationsAsWarnings(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(ruleFunc{name: "deny_all", fn: func([]Change) Result {
		return Result{Violations: []Violation{{Rule: "deny_all", Severity: SeverityBlock}}}
	}})
	log := &captureLogger{}
	svc := NewInMemoryService(engine, WithLogger(log))
	_, _, err := svc.Create(context.Background(), 1)
	var violation RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if !log.has("w:core operation blocked by rules") {
		t.Fatalf("expected warn log, got %v", log.calls)
	}
}

type ruleFunc struct {
	name string
	fn   func([]Change) Result
}

func (r ruleFunc) Name() string { return r.name }

func (r ruleFunc) Evaluate(_ context.Context, _ domain.RuleView, changes []Change) (Result, error) {
	return r.fn(changes), nil
}

func TestNoopImplementations(t *testing.T) {
	opts := defaultServiceOptions()
	opts.logger.Debug("debug")
	opts.logger.Info("info")
	opts.logger.Warn("warn")
	opts.logger.Error("error")
	opts.audit.Record(context.Background(), AuditEntry{})
	opts.metrics.Observe(context.Background(), "op", true, time.Millisecond)
	ctx, span := opts.tracer.Start(context.Background(), "op")
	if ctx == nil {
		t.Fatalf("expected context from noop tracer")
	}
	span.End(nil)
	if opts.randomness != nil || len(opts.sinks) != 0 {
		t.Fatalf("expected no randomness or sinks by default")
	}
}

func TestOptionsIgnoreNil(t *testing.T) {
	opts := defaultServiceOptions()
	for _, opt := range []ServiceOption{
		WithLogger(nil), WithClock(nil), WithAuditRecorder(nil), WithMetricsRecorder(nil),
		WithTracer(nil), WithRandomness(nil), WithEventSink(nil),
	} {
		opt(&opts)
	}
	if opts.logger == nil || opts.clock == nil || opts.audit == nil || opts.metrics == nil || opts.tracer == nil {
		t.Fatalf("nil options must not clear defaults")
	}
	if opts.randomness != nil || len(opts.sinks) != 0 {
		t.Fatalf("nil randomness and sinks must be ignored")
	}
}

func TestClockFuncNow(t *testing.T) {
	var nilClock ClockFunc
	if got := nilClock.Now(); got.Location() != time.UTC {
		t.Fatalf("expected UTC fallback, got %s", got.Location())
	}
	local := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	if got := ClockFunc(func() time.Time { return local }).Now(); got.Location() != time.UTC || !got.Equal(local) {
		t.Fatalf("expected delegated UTC time, got %s", got)
	}
}

func TestExtractRulesEngine(t *testing.T) {
	engine := NewRulesEngine()
	if got := extractRulesEngine(memory.NewStore(engine)); got != engine {
		t.Fatalf("expected engine from provider")
	}
	if got := extractRulesEngine(nil); got != nil {
		t.Fatalf("expected nil engine for nil store")
	}
}

const entryStatusSuccess = "success"
const entryStatusError = "error"

func TestExpvarMetricsRecorderExports(t *testing.T) {
	recorder := NewExpvarMetricsRecorder("")
	if !strings.HasPrefix(recorder.Name(), "kittycore_service_metrics_") {
		t.Fatalf("unexpected export name %q", recorder.Name())
	}
	recorder.Observe(context.Background(), "test_op", true, 10*time.Millisecond)
	recorder.Observe(context.Background(), "test_op", false, 5*time.Millisecond)
	recorder.Observe(context.Background(), "", true, time.Millisecond)

	snapshot := recorder.Snapshot()
	if snapshot.DurationsMS["test_op"] != 15 {
		t.Fatalf("expected 15ms total, snapshot=%+v", snapshot)
	}
	if snapshot.Results["test_op"][entryStatusSuccess] != 1 || snapshot.Results["test_op"][entryStatusError] != 1 {
		t.Fatalf("unexpected results snapshot=%+v", snapshot)
	}
	if _, ok := snapshot.Results[""]; ok {
		t.Fatalf("empty operation must be ignored")
	}

	if v := expvar.Get(recorder.Name()); v == nil {
		t.Fatalf("expected expvar export to be registered")
	} else if !strings.Contains(v.String(), "test_op") {
		t.Fatalf("expected expvar output to contain operation: %s", v.String())
	}
}

func TestJSONTraceTracerExports(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "trace_op")
	span.End(nil)
	_, span = tracer.Start(context.Background(), "trace_fail")
	span.End(domain.ErrNotForSale)

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected two span entries, got %d", len(entries))
	}
	if entries[0].Operation != "trace_op" || entries[0].Status != entryStatusSuccess || entries[0].Code != "" {
		t.Fatalf("unexpected span entry: %+v", entries[0])
	}
	if entries[1].Status != entryStatusError || entries[1].Code != domain.CodeNotForSale {
		t.Fatalf("expected error code on failed span: %+v", entries[1])
	}
	if !strings.Contains(buf.String(), "\"operation\":\"trace_op\"") || !strings.Contains(buf.String(), "\"code\":\"NOT_FOR_SALE\"") {
		t.Fatalf("expected JSON output to contain spans: %q", buf.String())
	}
}

func TestJSONTracerWithoutWriter(t *testing.T) {
	tracer := NewJSONTracer(nil)
	_, span := tracer.Start(context.Background(), "op")
	span.End(nil)
	if len(tracer.Entries()) != 1 {
		t.Fatalf("expected span retained without writer")
	}
}
