package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"kittycore/internal/infra/persistence/memory"
	"kittycore/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if err := tx.Deposit(200, 500); err != nil {
			return err
		}
		if _, err := tx.MintKitty(100, domain.DNA{1, 2, 3}, nil); err != nil {
			return err
		}
		return tx.SetPrice(0, 0)
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_ = store.Close()

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	kitty, ok := reloaded.GetKitty(0)
	if !ok || kitty.Owner != 100 || kitty.DNA != (domain.DNA{1, 2, 3}) {
		t.Fatalf("unexpected kitty after reload: %+v", kitty)
	}
	if l, ok := reloaded.GetListing(0); !ok || l.Price != 0 {
		t.Fatalf("expected zero listing after reload")
	}
	if reloaded.BalanceOf(200) != 500 {
		t.Fatalf("expected balance after reload, got %d", reloaded.BalanceOf(200))
	}
	if reloaded.Path() != path {
		t.Fatalf("unexpected path %s", reloaded.Path())
	}
	_, err = reloaded.RunInTransaction(ctx, func(tx domain.Transaction) error {
		k, err := tx.MintKitty(100, domain.DNA{}, nil)
		if err != nil {
			return err
		}
		if k.ID != 1 {
			t.Fatalf("expected id counter to survive reload, got %d", k.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("mint after reload: %v", err)
	}
}

func TestSQLiteStoreWritesEveryBucket(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.RunInTransaction(context.Background(), func(domain.Transaction) error { return nil }); err != nil {
		t.Fatalf("empty transaction: %v", err)
	}
	var count int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&count); err != nil {
		t.Fatalf("count buckets: %v", err)
	}
	if count != len(memory.Buckets) {
		t.Fatalf("expected %d buckets, got %d", len(memory.Buckets), count)
	}
}

func TestSQLiteStoreSkipsPersistOnError(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	boom := errors.New("boom")
	if _, err := store.RunInTransaction(context.Background(), func(domain.Transaction) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	var count int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&count); err != nil {
		t.Fatalf("count buckets: %v", err)
	}
	if count != 0 {
		t.Fatalf("failed transaction must not snapshot, got %d rows", count)
	}
}

func TestSQLiteStoreLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "load.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if _, err := store.DB().Exec(`INSERT INTO state(bucket,payload) VALUES(?,?)`, memory.BucketKitties, []byte("{")); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	_ = store.Close()
	if _, err := NewStore(path, nil); err == nil || !strings.Contains(err.Error(), "decode kitties") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestSQLiteStoreHonoursMemoryOptions(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), nil, memory.WithExistentialDeposit(50))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if store.ExistentialDeposit() != 50 {
		t.Fatalf("expected option to reach memory store")
	}
}

func TestSQLiteStoreFailedWriteLeavesStateUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if err := store.DB().Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.MintKitty(100, domain.DNA{1}, nil)
		return err
	}); err == nil {
		t.Fatalf("expected write to a closed database to fail")
	}
	if _, ok := store.GetKitty(0); ok {
		t.Fatalf("kitty 0 visible after failed write")
	}
	if got := len(store.ListKitties()); got != 0 {
		t.Fatalf("expected no kitties after failed write, got %d", got)
	}

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	if got := len(reloaded.ListKitties()); got != 0 {
		t.Fatalf("expected nothing persisted, got %d kitties", got)
	}
}
