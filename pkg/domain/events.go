package domain

import "context"

// EventKind names an outcome notification.
type EventKind string

// Outcome events emitted after a successful operation commits.
const (
	EventKittyCreated      EventKind = "kitty_created"
	EventKittyBred         EventKind = "kitty_bred"
	EventKittyPriceUpdated EventKind = "kitty_price_updated"
	EventKittyTransferred  EventKind = "kitty_transferred"
	EventKittySold         EventKind = "kitty_sold"
)

// Event is an outcome notification. Events are only published for operations
// that committed.
type Event interface {
	Kind() EventKind
	Subject() KittyID
}

// KittyCreated is emitted by create.
type KittyCreated struct {
	Owner   AccountID `json:"owner"`
	KittyID KittyID   `json:"kitty_id"`
	DNA     DNA       `json:"dna"`
}

// KittyBred is emitted by breed.
type KittyBred struct {
	Owner   AccountID `json:"owner"`
	KittyID KittyID   `json:"kitty_id"`
	DNA     DNA       `json:"dna"`
}

// KittyPriceUpdated is emitted by set-price. A nil Price means the listing was
// cleared.
type KittyPriceUpdated struct {
	Owner   AccountID `json:"owner"`
	KittyID KittyID   `json:"kitty_id"`
	Price   *Balance  `json:"price"`
}

// KittyTransferred is emitted by a transfer between distinct accounts.
type KittyTransferred struct {
	From    AccountID `json:"from"`
	To      AccountID `json:"to"`
	KittyID KittyID   `json:"kitty_id"`
}

// KittySold is emitted by buy.
type KittySold struct {
	Owner   AccountID `json:"owner"`
	Buyer   AccountID `json:"buyer"`
	KittyID KittyID   `json:"kitty_id"`
	Price   Balance   `json:"price"`
}

func (KittyCreated) Kind() EventKind      { return EventKittyCreated }
func (KittyBred) Kind() EventKind         { return EventKittyBred }
func (KittyPriceUpdated) Kind() EventKind { return EventKittyPriceUpdated }
func (KittyTransferred) Kind() EventKind  { return EventKittyTransferred }
func (KittySold) Kind() EventKind         { return EventKittySold }

func (e KittyCreated) Subject() KittyID      { return e.KittyID }
func (e KittyBred) Subject() KittyID         { return e.KittyID }
func (e KittyPriceUpdated) Subject() KittyID { return e.KittyID }
func (e KittyTransferred) Subject() KittyID  { return e.KittyID }
func (e KittySold) Subject() KittyID         { return e.KittyID }

// EventSink receives committed outcome events in emission order.
type EventSink interface {
	Publish(ctx context.Context, events []Event) error
}

// PriceOf returns a pointer to p, for building set-price arguments.
func PriceOf(p Balance) *Balance {
	return &p
}
