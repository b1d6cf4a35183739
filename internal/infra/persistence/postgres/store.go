// Package postgres provides a Postgres-backed persistent store that mirrors the
// in-memory semantics while keeping kitties, listings and balances in
// normalized tables.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"

	"kittycore/internal/infra/persistence/memory"
	"kittycore/internal/infra/persistence/sqlbundle"
	"kittycore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with OpenPersistentStore defaults while allowing overrides via env.
	defaultDSN = "postgres://localhost/kittycore?sslmode=disable"
)

const (
	metaNextKittyID   = "next_kitty_id"
	metaTotalIssuance = "total_issuance"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists state to Postgres while reusing the in-memory implementation for transactions.
type Store struct {
	*memory.Store
	db *sql.DB
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to defaultDSN).
// It applies the bundled DDL and hydrates the in-memory store from the
// normalized tables.
func NewStore(dsn string, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := applyDDLStatements(ctx, db, sqlbundle.Postgres()); err != nil {
		return nil, err
	}
	snapshot, err := loadNormalized(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore(engine, opts...)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db}, nil
}

// RunInTransaction applies fn within a transaction and writes the normalized
// tables before the new state becomes visible. A failed write leaves the
// in-memory state untouched.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	return s.RunInTransactionWithCommit(ctx, fn, func(snapshot memory.Snapshot) error {
		return persistNormalized(ctx, s.db, snapshot)
	})
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func applyDDLStatements(ctx context.Context, db execer, ddl string) error {
	for _, stmt := range sqlbundle.SplitStatements(ddl) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

func persistNormalized(ctx context.Context, db *sql.DB, snapshot memory.Snapshot) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `TRUNCATE TABLE listings, kitties, balances, meta`); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	if err := insertKitties(ctx, tx, snapshot.Kitties); err != nil {
		return err
	}
	if err := insertListings(ctx, tx, snapshot.Listings); err != nil {
		return err
	}
	if err := insertBalances(ctx, tx, snapshot.Balances); err != nil {
		return err
	}
	if err := insertMeta(ctx, tx, snapshot.Meta); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func insertKitties(ctx context.Context, tx execer, kitties map[domain.KittyID]domain.Kitty) error {
	for _, id := range slices.Sorted(maps.Keys(kitties)) {
		k := kitties[id]
		var parentA, parentB any
		if k.Parents != nil {
			parentA = int64(k.Parents.A)
			parentB = int64(k.Parents.B)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO kitties (id, dna, owner, parent_a, parent_b, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			int64(id), k.DNA[:], formatUint(uint64(k.Owner)), parentA, parentB, k.CreatedAt, k.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert kitty %d: %w", id, err)
		}
	}
	return nil
}

func insertListings(ctx context.Context, tx execer, listings map[domain.KittyID]domain.Balance) error {
	for _, id := range slices.Sorted(maps.Keys(listings)) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO listings (kitty_id, price) VALUES ($1,$2)`,
			int64(id), formatUint(uint64(listings[id])),
		); err != nil {
			return fmt.Errorf("insert listing %d: %w", id, err)
		}
	}
	return nil
}

func insertBalances(ctx context.Context, tx execer, balances map[domain.AccountID]domain.Balance) error {
	for _, account := range slices.Sorted(maps.Keys(balances)) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO balances (account, amount) VALUES ($1,$2)`,
			formatUint(uint64(account)), formatUint(uint64(balances[account])),
		); err != nil {
			return fmt.Errorf("insert balance %d: %w", account, err)
		}
	}
	return nil
}

func insertMeta(ctx context.Context, tx execer, meta memory.Meta) error {
	rows := [][2]string{
		{metaNextKittyID, formatUint(meta.NextKittyID)},
		{metaTotalIssuance, formatUint(uint64(meta.TotalIssuance))},
	}
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES ($1,$2)`, row[0], row[1]); err != nil {
			return fmt.Errorf("insert meta %s: %w", row[0], err)
		}
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadNormalized(ctx context.Context, db querier) (memory.Snapshot, error) {
	kitties, err := loadKitties(ctx, db)
	if err != nil {
		return memory.Snapshot{}, err
	}
	listings, err := loadListings(ctx, db, kitties)
	if err != nil {
		return memory.Snapshot{}, err
	}
	balances, err := loadBalances(ctx, db)
	if err != nil {
		return memory.Snapshot{}, err
	}
	meta, err := loadMeta(ctx, db)
	if err != nil {
		return memory.Snapshot{}, err
	}
	return memory.Snapshot{Kitties: kitties, Listings: listings, Balances: balances, Meta: meta}, nil
}

func loadKitties(ctx context.Context, db querier) (map[domain.KittyID]domain.Kitty, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, dna, owner, parent_a, parent_b, created_at, updated_at FROM kitties ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select kitties: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := make(map[domain.KittyID]domain.Kitty)
	for rows.Next() {
		var (
			id               int64
			dna              []byte
			owner            string
			parentA, parentB sql.NullInt64
			k                domain.Kitty
		)
		if err := rows.Scan(&id, &dna, &owner, &parentA, &parentB, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan kitty: %w", err)
		}
		if len(dna) != domain.DNALen {
			return nil, fmt.Errorf("kitty %d: dna has %d bytes", id, len(dna))
		}
		ownerID, err := parseUint(owner)
		if err != nil {
			return nil, fmt.Errorf("kitty %d owner: %w", id, err)
		}
		if parentA.Valid != parentB.Valid {
			return nil, fmt.Errorf("kitty %d: partial parents", id)
		}
		k.ID = domain.KittyID(id)
		copy(k.DNA[:], dna)
		k.Owner = domain.AccountID(ownerID)
		if parentA.Valid {
			k.Parents = &domain.Parents{A: domain.KittyID(parentA.Int64), B: domain.KittyID(parentB.Int64)}
		}
		out[k.ID] = k
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kitties: %w", err)
	}
	return out, nil
}

func loadListings(ctx context.Context, db querier, kitties map[domain.KittyID]domain.Kitty) (map[domain.KittyID]domain.Balance, error) {
	rows, err := db.QueryContext(ctx, `SELECT kitty_id, price FROM listings`)
	if err != nil {
		return nil, fmt.Errorf("select listings: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := make(map[domain.KittyID]domain.Balance)
	for rows.Next() {
		var (
			id    int64
			price string
		)
		if err := rows.Scan(&id, &price); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		if _, ok := kitties[domain.KittyID(id)]; !ok {
			return nil, fmt.Errorf("listing references unknown kitty %d", id)
		}
		amount, err := parseUint(price)
		if err != nil {
			return nil, fmt.Errorf("listing %d price: %w", id, err)
		}
		out[domain.KittyID(id)] = domain.Balance(amount)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return out, nil
}

func loadBalances(ctx context.Context, db querier) (map[domain.AccountID]domain.Balance, error) {
	rows, err := db.QueryContext(ctx, `SELECT account, amount FROM balances`)
	if err != nil {
		return nil, fmt.Errorf("select balances: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := make(map[domain.AccountID]domain.Balance)
	for rows.Next() {
		var account, amount string
		if err := rows.Scan(&account, &amount); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		acct, err := parseUint(account)
		if err != nil {
			return nil, fmt.Errorf("balance account: %w", err)
		}
		value, err := parseUint(amount)
		if err != nil {
			return nil, fmt.Errorf("balance %d amount: %w", acct, err)
		}
		out[domain.AccountID(acct)] = domain.Balance(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balances: %w", err)
	}
	return out, nil
}

func loadMeta(ctx context.Context, db querier) (memory.Meta, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return memory.Meta{}, fmt.Errorf("select meta: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var meta memory.Meta
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return memory.Meta{}, fmt.Errorf("scan meta: %w", err)
		}
		n, err := parseUint(value)
		if err != nil {
			return memory.Meta{}, fmt.Errorf("meta %s: %w", key, err)
		}
		switch key {
		case metaNextKittyID:
			meta.NextKittyID = n
		case metaTotalIssuance:
			meta.TotalIssuance = domain.Balance(n)
		}
	}
	if err := rows.Err(); err != nil {
		return memory.Meta{}, fmt.Errorf("iterate meta: %w", err)
	}
	return meta, nil
}

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(s), 10, 64)
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
