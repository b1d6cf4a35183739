package domain

import "context"

// Registry is the keyed store of kitties and the owner index.
type Registry interface {
	// MintKitty assigns the next identifier and stores a kitty owned by owner.
	MintKitty(owner AccountID, dna DNA, parents *Parents) (Kitty, error)
	// FindOwnedKitty returns the kitty only when it exists and owner holds it.
	FindOwnedKitty(owner AccountID, id KittyID) (Kitty, bool)
	// TransferKitty moves ownership, failing with ErrNoPermission unless from
	// owns id. A transfer to the same account only performs the check.
	TransferKitty(from, to AccountID, id KittyID) error
	// OwnedCount reports how many kitties owner holds.
	OwnedCount(owner AccountID) uint32
}

// Listings is the marketplace price map.
type Listings interface {
	Price(id KittyID) (Balance, bool)
	SetPrice(id KittyID, price Balance) error
	ClearPrice(id KittyID)
}

// Currency is the fungible balance ledger.
type Currency interface {
	// Transfer moves amount from one account to another, keeping the sender
	// alive.
	Transfer(from, to AccountID, amount Balance) error
	BalanceOf(account AccountID) Balance
}

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Registry
	Listings
	Currency
	Snapshot() TransactionView
	// Deposit credits newly issued currency. Used for genesis endowments.
	Deposit(account AccountID, amount Balance) error
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListKitties() []Kitty
	FindKitty(id KittyID) (Kitty, bool)
	KittiesOwnedBy(owner AccountID) []Kitty
	ListListings() []Listing
	FindListing(id KittyID) (Listing, bool)
	ListBalances() []AccountBalance
	TotalIssuance() Balance
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetKitty(id KittyID) (Kitty, bool)
	ListKitties() []Kitty
	KittiesOwnedBy(owner AccountID) []Kitty
	GetListing(id KittyID) (Listing, bool)
	ListListings() []Listing
	BalanceOf(account AccountID) Balance
}
