// Package domain defines the kitty registry entities, marketplace value types,
// outcome events and the rule evaluation primitives used by kittycore.
package domain

import (
	"encoding/hex"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityKitty identifies a kitty record held by the registry.
	EntityKitty EntityType = "kitty"
	// EntityListing identifies a marketplace price entry.
	EntityListing EntityType = "listing"
	// EntityBalance identifies an account balance in the currency ledger.
	EntityBalance EntityType = "balance"
)

// AccountID identifies an authenticated caller.
type AccountID uint64

// KittyID is the registry-assigned identifier of a kitty. Identifiers increase
// monotonically and are never reused.
type KittyID uint32

// Balance is an amount of the fungible currency.
type Balance uint64

// DNALen is the size of a genetic code in bytes.
const DNALen = 16

// DNA is the immutable genetic code of a kitty.
type DNA [DNALen]byte

// String renders the code as lowercase hex.
func (d DNA) String() string {
	return hex.EncodeToString(d[:])
}

// Gender derives the binary trait from the code: the least-significant bit of
// the first byte selects Male (0) or Female (1).
func (d DNA) Gender() Gender {
	if d[0]&1 == 0 {
		return GenderMale
	}
	return GenderFemale
}

// Gender is the trait used to pair breeding parents.
type Gender string

// Genders derived from DNA.
const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Parents records the two kitties a bred kitty descends from.
type Parents struct {
	A KittyID `json:"a"`
	B KittyID `json:"b"`
}

// Kitty is a uniquely numbered collectible. Only Owner changes after mint.
type Kitty struct {
	ID        KittyID   `json:"id"`
	DNA       DNA       `json:"dna"`
	Owner     AccountID `json:"owner"`
	Parents   *Parents  `json:"parents,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Gender derives the kitty's gender from its DNA.
func (k Kitty) Gender() Gender {
	return k.DNA.Gender()
}

// Listing is a price entry for a kitty. A listing with Price zero is listed
// at zero, which is distinct from having no listing at all.
type Listing struct {
	KittyID KittyID `json:"kitty_id"`
	Price   Balance `json:"price"`
}

// AccountBalance is a ledger entry.
type AccountBalance struct {
	Account AccountID `json:"account"`
	Amount  Balance   `json:"amount"`
}

// SeedLen is the size of a randomness draw.
const SeedLen = 32

// Seed is a 32-byte value drawn from a Randomness source.
type Seed [SeedLen]byte

// Randomness supplies seeds for genetic generation. Implementations must be a
// pure function of subject within one execution context.
type Randomness interface {
	Random(subject []byte) Seed
}

// RandomnessFunc adapts a function to the Randomness interface.
type RandomnessFunc func(subject []byte) Seed

// Random implements Randomness.
func (f RandomnessFunc) Random(subject []byte) Seed {
	return f(subject)
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported mutations captured in the audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
