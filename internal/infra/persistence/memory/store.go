// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"kittycore/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Kitty aliases domain.Kitty for in-memory persistence operations.
	Kitty = domain.Kitty
	// KittyID aliases domain.KittyID.
	KittyID = domain.KittyID
	// AccountID aliases domain.AccountID.
	AccountID = domain.AccountID
	// Balance aliases domain.Balance.
	Balance = domain.Balance
	// Listing aliases domain.Listing.
	Listing = domain.Listing
	// AccountBalance aliases domain.AccountBalance.
	AccountBalance = domain.AccountBalance
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

// DefaultExistentialDeposit is the minimum balance an account must hold to
// exist in the ledger.
const DefaultExistentialDeposit Balance = 1

// maxKittyID bounds the identifier space. The counter can never advance past
// it, so the largest id ever issued is maxKittyID-1.
const maxKittyID = uint64(math.MaxUint32)

type memoryState struct {
	kitties     map[KittyID]Kitty
	owned       map[AccountID]map[KittyID]struct{}
	listings    map[KittyID]Balance
	balances    map[AccountID]Balance
	nextKittyID uint64
	issuance    Balance
}

// Meta carries the scalar counters of the store.
type Meta struct {
	NextKittyID   uint64  `json:"next_kitty_id"`
	TotalIssuance Balance `json:"total_issuance"`
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Kitties  map[KittyID]Kitty     `json:"kitties"`
	Listings map[KittyID]Balance   `json:"listings"`
	Balances map[AccountID]Balance `json:"balances"`
	Meta     Meta                  `json:"meta"`
}

func newMemoryState() memoryState {
	return memoryState{
		kitties:  make(map[KittyID]Kitty),
		owned:    make(map[AccountID]map[KittyID]struct{}),
		listings: make(map[KittyID]Balance),
		balances: make(map[AccountID]Balance),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Kitties:  make(map[KittyID]Kitty, len(state.kitties)),
		Listings: make(map[KittyID]Balance, len(state.listings)),
		Balances: make(map[AccountID]Balance, len(state.balances)),
		Meta: Meta{
			NextKittyID:   state.nextKittyID,
			TotalIssuance: state.issuance,
		},
	}
	for k, v := range state.kitties {
		s.Kitties[k] = cloneKitty(v)
	}
	for k, v := range state.listings {
		s.Listings[k] = v
	}
	for k, v := range state.balances {
		s.Balances[k] = v
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Kitties {
		v.ID = k
		state.kitties[k] = cloneKitty(v)
		state.index(v.Owner, k)
	}
	for k, v := range s.Listings {
		state.listings[k] = v
	}
	for k, v := range s.Balances {
		state.balances[k] = v
	}
	state.nextKittyID = s.Meta.NextKittyID
	state.issuance = s.Meta.TotalIssuance
	return state
}

// migrateSnapshot normalizes snapshots written by older or hand-edited
// sources: dangling listings and zero balances are dropped, and the id
// counter is advanced past every stored kitty so identifiers are never reused.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	out := Snapshot{
		Kitties:  make(map[KittyID]Kitty, len(snapshot.Kitties)),
		Listings: make(map[KittyID]Balance, len(snapshot.Listings)),
		Balances: make(map[AccountID]Balance, len(snapshot.Balances)),
		Meta:     snapshot.Meta,
	}
	for id, kitty := range snapshot.Kitties {
		kitty.ID = id
		out.Kitties[id] = kitty
		if next := uint64(id) + 1; next > out.Meta.NextKittyID {
			out.Meta.NextKittyID = next
		}
	}
	for id, price := range snapshot.Listings {
		if _, ok := out.Kitties[id]; ok {
			out.Listings[id] = price
		}
	}
	var total Balance
	for account, amount := range snapshot.Balances {
		if amount == 0 {
			continue
		}
		out.Balances[account] = amount
		if total > math.MaxUint64-amount {
			total = math.MaxUint64
			continue
		}
		total += amount
	}
	if out.Meta.TotalIssuance < total {
		out.Meta.TotalIssuance = total
	}
	return out
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.kitties {
		cloned.kitties[k] = cloneKitty(v)
	}
	for owner, ids := range s.owned {
		set := make(map[KittyID]struct{}, len(ids))
		for id := range ids {
			set[id] = struct{}{}
		}
		cloned.owned[owner] = set
	}
	for k, v := range s.listings {
		cloned.listings[k] = v
	}
	for k, v := range s.balances {
		cloned.balances[k] = v
	}
	cloned.nextKittyID = s.nextKittyID
	cloned.issuance = s.issuance
	return cloned
}

func (s *memoryState) index(owner AccountID, id KittyID) {
	set, ok := s.owned[owner]
	if !ok {
		set = make(map[KittyID]struct{})
		s.owned[owner] = set
	}
	set[id] = struct{}{}
}

func (s *memoryState) unindex(owner AccountID, id KittyID) {
	set, ok := s.owned[owner]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(s.owned, owner)
	}
}

func (s *memoryState) ownedBy(owner AccountID) []Kitty {
	set := s.owned[owner]
	out := make([]Kitty, 0, len(set))
	for id := range set {
		out = append(out, cloneKitty(s.kitties[id]))
	}
	sortKitties(out)
	return out
}

func (s *memoryState) listKitties() []Kitty {
	out := make([]Kitty, 0, len(s.kitties))
	for _, k := range s.kitties {
		out = append(out, cloneKitty(k))
	}
	sortKitties(out)
	return out
}

func (s *memoryState) listListings() []Listing {
	out := make([]Listing, 0, len(s.listings))
	for id, price := range s.listings {
		out = append(out, Listing{KittyID: id, Price: price})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KittyID < out[j].KittyID })
	return out
}

func (s *memoryState) listBalances() []AccountBalance {
	out := make([]AccountBalance, 0, len(s.balances))
	for account, amount := range s.balances {
		out = append(out, AccountBalance{Account: account, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}

func cloneKitty(k Kitty) Kitty {
	if k.Parents != nil {
		parents := *k.Parents
		k.Parents = &parents
	}
	return k
}

func sortKitties(kitties []Kitty) {
	sort.Slice(kitties, func(i, j int) bool { return kitties[i].ID < kitties[j].ID })
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu                 sync.RWMutex
	state              memoryState
	engine             *RulesEngine
	nowFn              func() time.Time
	existentialDeposit Balance
}

// Option configures a Store.
type Option func(*Store)

// WithExistentialDeposit overrides DefaultExistentialDeposit.
func WithExistentialDeposit(amount Balance) Option {
	return func(s *Store) {
		s.existentialDeposit = amount
	}
}

// WithNowFunc overrides the clock used to stamp kitty records.
func WithNowFunc(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:              newMemoryState(),
		engine:             engine,
		nowFn:              func() time.Time { return time.Now().UTC() },
		existentialDeposit: DefaultExistentialDeposit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// ExistentialDeposit reports the ledger's minimum account balance.
func (s *Store) ExistentialDeposit() Balance {
	return s.existentialDeposit
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func (v transactionView) ListKitties() []Kitty { return v.state.listKitties() }

func (v transactionView) FindKitty(id KittyID) (Kitty, bool) {
	k, ok := v.state.kitties[id]
	if !ok {
		return Kitty{}, false
	}
	return cloneKitty(k), true
}

func (v transactionView) KittiesOwnedBy(owner AccountID) []Kitty { return v.state.ownedBy(owner) }
func (v transactionView) ListListings() []Listing                { return v.state.listListings() }

func (v transactionView) FindListing(id KittyID) (Listing, bool) {
	price, ok := v.state.listings[id]
	if !ok {
		return Listing{}, false
	}
	return Listing{KittyID: id, Price: price}, true
}

func (v transactionView) ListBalances() []AccountBalance { return v.state.listBalances() }
func (v transactionView) TotalIssuance() Balance         { return v.state.issuance }

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	return s.RunInTransactionWithCommit(ctx, fn, nil)
}

// RunInTransactionWithCommit is RunInTransaction with a hook that receives the
// post-transaction state after rules pass. The state only becomes visible when
// commit returns nil; durable backends write their copy there.
func (s *Store) RunInTransactionWithCommit(ctx context.Context, fn func(tx Transaction) error, commit func(Snapshot) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if commit != nil {
		if err := commit(snapshotFromMemoryState(tx.state)); err != nil {
			return result, err
		}
	}
	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

// helper to record and append change entries.
func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// MintKitty stores a new kitty under the next identifier.
func (tx *transaction) MintKitty(owner AccountID, dna domain.DNA, parents *domain.Parents) (Kitty, error) {
	if tx.state.nextKittyID >= maxKittyID {
		return Kitty{}, domain.ErrNoAvailableKittyID
	}
	id := KittyID(tx.state.nextKittyID)
	if _, exists := tx.state.kitties[id]; exists {
		return Kitty{}, fmt.Errorf("kitty %d already exists", id)
	}
	k := Kitty{
		ID:        id,
		DNA:       dna,
		Owner:     owner,
		CreatedAt: tx.now,
		UpdatedAt: tx.now,
	}
	if parents != nil {
		p := *parents
		k.Parents = &p
	}
	tx.state.kitties[id] = cloneKitty(k)
	tx.state.index(owner, id)
	tx.state.nextKittyID++
	tx.recordChange(Change{Entity: domain.EntityKitty, Action: domain.ActionCreate, After: cloneKitty(k)})
	return cloneKitty(k), nil
}

// FindOwnedKitty looks up a kitty that owner holds.
func (tx *transaction) FindOwnedKitty(owner AccountID, id KittyID) (Kitty, bool) {
	if _, ok := tx.state.owned[owner][id]; !ok {
		return Kitty{}, false
	}
	return cloneKitty(tx.state.kitties[id]), true
}

// TransferKitty moves ownership of id from one account to another.
func (tx *transaction) TransferKitty(from, to AccountID, id KittyID) error {
	current, ok := tx.state.kitties[id]
	if !ok || current.Owner != from {
		return domain.NoPermission(from, id)
	}
	if from == to {
		return nil
	}
	before := cloneKitty(current)
	current.Owner = to
	current.UpdatedAt = tx.now
	tx.state.kitties[id] = cloneKitty(current)
	tx.state.unindex(from, id)
	tx.state.index(to, id)
	tx.recordChange(Change{Entity: domain.EntityKitty, Action: domain.ActionUpdate, Before: before, After: cloneKitty(current)})
	return nil
}

// OwnedCount reports how many kitties owner holds.
func (tx *transaction) OwnedCount(owner AccountID) uint32 {
	return uint32(len(tx.state.owned[owner]))
}

// Price returns the listing price of id.
func (tx *transaction) Price(id KittyID) (Balance, bool) {
	price, ok := tx.state.listings[id]
	return price, ok
}

// SetPrice lists id at price, overwriting any existing listing.
func (tx *transaction) SetPrice(id KittyID, price Balance) error {
	if _, ok := tx.state.kitties[id]; !ok {
		return fmt.Errorf("kitty %d not found: %w", id, domain.ErrInvalidKittyID)
	}
	after := Listing{KittyID: id, Price: price}
	if old, ok := tx.state.listings[id]; ok {
		tx.state.listings[id] = price
		tx.recordChange(Change{Entity: domain.EntityListing, Action: domain.ActionUpdate, Before: Listing{KittyID: id, Price: old}, After: after})
		return nil
	}
	tx.state.listings[id] = price
	tx.recordChange(Change{Entity: domain.EntityListing, Action: domain.ActionCreate, After: after})
	return nil
}

// ClearPrice removes the listing for id if one exists.
func (tx *transaction) ClearPrice(id KittyID) {
	old, ok := tx.state.listings[id]
	if !ok {
		return
	}
	delete(tx.state.listings, id)
	tx.recordChange(Change{Entity: domain.EntityListing, Action: domain.ActionDelete, Before: Listing{KittyID: id, Price: old}})
}

// BalanceOf returns the free balance of account.
func (tx *transaction) BalanceOf(account AccountID) Balance {
	return tx.state.balances[account]
}

// Transfer moves amount between accounts without reaping the sender.
func (tx *transaction) Transfer(from, to AccountID, amount Balance) error {
	if amount == 0 || from == to {
		return nil
	}
	ed := tx.store.existentialDeposit
	fromBal := tx.state.balances[from]
	if amount > fromBal {
		return domain.ErrInsufficientBalance
	}
	remaining := fromBal - amount
	if remaining < ed {
		return domain.ErrKeepAlive
	}
	toBal := tx.state.balances[to]
	if toBal > math.MaxUint64-amount {
		return domain.ErrBalanceOverflow
	}
	credited := toBal + amount
	if credited < ed {
		return domain.ErrExistentialDeposit
	}
	tx.setBalance(from, remaining)
	tx.setBalance(to, credited)
	return nil
}

// Deposit issues amount of new currency to account.
func (tx *transaction) Deposit(account AccountID, amount Balance) error {
	if amount == 0 {
		return nil
	}
	current := tx.state.balances[account]
	if current > math.MaxUint64-amount || tx.state.issuance > math.MaxUint64-amount {
		return domain.ErrBalanceOverflow
	}
	if current+amount < tx.store.existentialDeposit {
		return domain.ErrExistentialDeposit
	}
	tx.state.issuance += amount
	tx.setBalance(account, current+amount)
	return nil
}

func (tx *transaction) setBalance(account AccountID, amount Balance) {
	before, existed := tx.state.balances[account]
	after := AccountBalance{Account: account, Amount: amount}
	switch {
	case amount == 0:
		delete(tx.state.balances, account)
		tx.recordChange(Change{Entity: domain.EntityBalance, Action: domain.ActionDelete, Before: AccountBalance{Account: account, Amount: before}})
	case existed:
		tx.state.balances[account] = amount
		tx.recordChange(Change{Entity: domain.EntityBalance, Action: domain.ActionUpdate, Before: AccountBalance{Account: account, Amount: before}, After: after})
	default:
		tx.state.balances[account] = amount
		tx.recordChange(Change{Entity: domain.EntityBalance, Action: domain.ActionCreate, After: after})
	}
}

// Read helpers ---------------------------------------------------------------

// GetKitty retrieves a kitty by ID from committed state.
func (s *Store) GetKitty(id KittyID) (Kitty, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.state.kitties[id]
	if !ok {
		return Kitty{}, false
	}
	return cloneKitty(k), true
}

// ListKitties returns all kitties from committed state ordered by ID.
func (s *Store) ListKitties() []Kitty {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.listKitties()
}

// KittiesOwnedBy returns the kitties owner holds ordered by ID.
func (s *Store) KittiesOwnedBy(owner AccountID) []Kitty {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ownedBy(owner)
}

// GetListing returns the listing for id.
func (s *Store) GetListing(id KittyID) (Listing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.state.listings[id]
	if !ok {
		return Listing{}, false
	}
	return Listing{KittyID: id, Price: price}, true
}

// ListListings returns all listings ordered by kitty ID.
func (s *Store) ListListings() []Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.listListings()
}

// BalanceOf returns the committed balance of account.
func (s *Store) BalanceOf(account AccountID) Balance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.balances[account]
}
