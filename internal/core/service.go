package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kittycore/internal/genetics"
	"kittycore/internal/infra/persistence/memory"
	"kittycore/pkg/domain"
)

// Service exposes the registry, breeding and marketplace operations over a
// transactional store. Every operation runs inside one store transaction and
// either commits fully or leaves no trace.
type Service struct {
	store     PersistentStore
	generator *genetics.Generator
	clock     Clock
	logger    Logger
	audit     AuditRecorder
	metrics   MetricsRecorder
	tracer    Tracer
	sinks     []EventSink
}

// Operation names reported to loggers, metrics, tracers and audit recorders.
const (
	OpCreateKitty   = "create_kitty"
	OpBreedKitty    = "breed_kitty"
	OpSetPrice      = "set_price"
	OpTransferKitty = "transfer_kitty"
	OpBuyKitty      = "buy_kitty"
)

type auditTarget struct {
	entity EntityType
	action Action
}

var auditTargets = map[string]auditTarget{
	OpCreateKitty:   {entity: EntityKitty, action: ActionCreate},
	OpBreedKitty:    {entity: EntityKitty, action: ActionCreate},
	OpSetPrice:      {entity: EntityListing, action: ActionUpdate},
	OpTransferKitty: {entity: EntityKitty, action: ActionUpdate},
	OpBuyKitty:      {entity: EntityKitty, action: ActionUpdate},
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	options := defaultServiceOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return newService(store, options)
}

// NewInMemoryService creates a service and in-memory store with the given
// rules engine. The store stamps records with the service clock.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	options := defaultServiceOptions()
	for _, opt := range opts {
		opt(&options)
	}
	store := memory.NewStore(engine, memory.WithNowFunc(options.clock.Now))
	return newService(store, options)
}

func newService(store PersistentStore, options serviceOptions) *Service {
	randomness := options.randomness
	if randomness == nil {
		randomness = defaultRandomness()
	}
	return &Service{
		store:     store,
		generator: genetics.NewGenerator(randomness),
		clock:     options.clock,
		logger:    options.logger,
		audit:     options.audit,
		metrics:   options.metrics,
		tracer:    options.tracer,
		sinks:     options.sinks,
	}
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// RulesEngine returns the engine evaluated on every commit, if the store
// exposes one.
func (s *Service) RulesEngine() *RulesEngine {
	return extractRulesEngine(s.store)
}

func extractRulesEngine(store PersistentStore) *RulesEngine {
	type provider interface {
		RulesEngine() *RulesEngine
	}
	if p, ok := store.(provider); ok {
		return p.RulesEngine()
	}
	return nil
}

// Create mints a kitty with a freshly generated code for caller.
func (s *Service) Create(ctx context.Context, caller AccountID) (Kitty, Result, error) {
	var created Kitty
	res, err := s.run(ctx, OpCreateKitty, caller, func(tx Transaction) (string, []Event, error) {
		dna := s.generator.Generate(caller, tx.OwnedCount(caller))
		kitty, err := tx.MintKitty(caller, dna, nil)
		if err != nil {
			return "", nil, err
		}
		created = kitty
		return fmt.Sprint(kitty.ID), []Event{domain.KittyCreated{Owner: caller, KittyID: kitty.ID, DNA: kitty.DNA}}, nil
	})
	return created, res, err
}

// Breed mints a child of two kitties caller owns. The parents must differ in
// gender.
func (s *Service) Breed(ctx context.Context, caller AccountID, idA, idB KittyID) (Kitty, Result, error) {
	var child Kitty
	res, err := s.run(ctx, OpBreedKitty, caller, func(tx Transaction) (string, []Event, error) {
		a, ok := tx.FindOwnedKitty(caller, idA)
		if !ok {
			return "", nil, domain.InvalidKittyID(caller, idA)
		}
		b, ok := tx.FindOwnedKitty(caller, idB)
		if !ok {
			return "", nil, domain.InvalidKittyID(caller, idB)
		}
		if a.Gender() == b.Gender() {
			return "", nil, domain.WithMetadata(domain.CodeSameGender, fmt.Sprintf("kitties %d and %d are both %s", idA, idB, a.Gender()), map[string]string{
				"kitty_a": fmt.Sprint(idA),
				"kitty_b": fmt.Sprint(idB),
			})
		}
		mask := s.generator.Mask(caller, tx.OwnedCount(caller), idA, idB)
		dna := genetics.Combine(a.DNA, b.DNA, mask)
		kitty, err := tx.MintKitty(caller, dna, &Parents{A: idA, B: idB})
		if err != nil {
			return "", nil, err
		}
		child = kitty
		return fmt.Sprint(kitty.ID), []Event{domain.KittyBred{Owner: caller, KittyID: kitty.ID, DNA: kitty.DNA}}, nil
	})
	return child, res, err
}

// SetPrice lists id at price, or unlists it when price is nil.
func (s *Service) SetPrice(ctx context.Context, caller AccountID, id KittyID, price *Balance) (Result, error) {
	return s.run(ctx, OpSetPrice, caller, func(tx Transaction) (string, []Event, error) {
		events, err := setPrice(tx, caller, id, price)
		return fmt.Sprint(id), events, err
	})
}

// Transfer gives id to another account. Transferring to oneself only checks
// ownership.
func (s *Service) Transfer(ctx context.Context, from, to AccountID, id KittyID) (Result, error) {
	return s.run(ctx, OpTransferKitty, from, func(tx Transaction) (string, []Event, error) {
		events, err := transfer(tx, from, to, id)
		return fmt.Sprint(id), events, err
	})
}

// Buy purchases a listed kitty from owner, paying the listed price as long as
// it does not exceed maxPrice.
func (s *Service) Buy(ctx context.Context, buyer, owner AccountID, id KittyID, maxPrice Balance) (Result, error) {
	return s.run(ctx, OpBuyKitty, buyer, func(tx Transaction) (string, []Event, error) {
		events, err := buy(tx, buyer, owner, id, maxPrice)
		return fmt.Sprint(id), events, err
	})
}

// Deposit issues new currency to account. It backs genesis endowments and is
// not part of the marketplace surface.
func (s *Service) Deposit(ctx context.Context, account AccountID, amount Balance) (Result, error) {
	return s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.Deposit(account, amount)
	})
}

// Endow deposits every entry in one transaction, but only while the registry
// holds no kitties and no currency has been issued. Any rejected entry rolls
// back the whole batch. It reports whether the batch was applied.
func (s *Service) Endow(ctx context.Context, balances []AccountBalance) (bool, Result, error) {
	applied := false
	result, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		view := tx.Snapshot()
		if view.TotalIssuance() != 0 || len(view.ListKitties()) != 0 {
			return nil
		}
		for _, entry := range balances {
			if err := tx.Deposit(entry.Account, entry.Amount); err != nil {
				return fmt.Errorf("endow account %d: %w", entry.Account, err)
			}
		}
		applied = len(balances) > 0
		return nil
	})
	if err != nil {
		return false, result, err
	}
	return applied, result, nil
}

// Kitty returns id when owner holds it.
func (s *Service) Kitty(owner AccountID, id KittyID) (Kitty, bool) {
	kitty, ok := s.store.GetKitty(id)
	if !ok || kitty.Owner != owner {
		return Kitty{}, false
	}
	return kitty, true
}

// KittyByID returns id regardless of owner.
func (s *Service) KittyByID(id KittyID) (Kitty, bool) {
	return s.store.GetKitty(id)
}

// KittiesOf lists the kitties owner holds, ordered by id.
func (s *Service) KittiesOf(owner AccountID) []Kitty {
	return s.store.KittiesOwnedBy(owner)
}

// Kitties lists every kitty ordered by id.
func (s *Service) Kitties() []Kitty {
	return s.store.ListKitties()
}

// Price reports the listing price of id.
func (s *Service) Price(id KittyID) (Balance, bool) {
	listing, ok := s.store.GetListing(id)
	return listing.Price, ok
}

// Balance returns the free balance of account.
func (s *Service) Balance(account AccountID) Balance {
	return s.store.BalanceOf(account)
}

// Listings returns every price entry ordered by kitty id.
func (s *Service) Listings() []Listing {
	return s.store.ListListings()
}

func (s *Service) run(ctx context.Context, op string, caller AccountID, fn func(Transaction) (string, []Event, error)) (Result, error) {
	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, op)

	var (
		entityID string
		events   []Event
	)
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		entityID, events, err = fn(tx)
		return err
	})
	duration := s.clock.Now().Sub(start)

	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	s.recordAudit(ctx, op, caller, entityID, duration, err)

	if err != nil {
		s.logFailure(op, caller, err)
		return res, err
	}
	s.logger.Debug("core operation succeeded", "operation", op, "caller", caller, "entity_id", entityID, "events", len(events), "duration", duration)
	s.publish(ctx, op, events)
	return res, nil
}

func (s *Service) logFailure(op string, caller AccountID, err error) {
	var violation RuleViolationError
	switch {
	case errors.As(err, &violation):
		s.logger.Warn("core operation blocked by rules", "operation", op, "caller", caller, "violations", len(violation.Result.Violations))
	case domain.CodeOf(err) != domain.CodeUnknown:
		s.logger.Warn("core operation rejected", "operation", op, "caller", caller, "code", domain.CodeOf(err), "error", err)
	default:
		s.logger.Error("core operation failed", "operation", op, "caller", caller, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, op string, events []Event) {
	if len(events) == 0 {
		return
	}
	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, events); err != nil {
			s.logger.Error("event publish failed", "operation", op, "events", len(events), "error", err)
		}
	}
}

func (s *Service) recordAudit(ctx context.Context, op string, caller AccountID, entityID string, duration time.Duration, err error) {
	target, ok := auditTargets[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    target.entity,
		Action:    target.action,
		EntityID:  entityID,
		Caller:    caller,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Code = domain.CodeOf(err)
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}
