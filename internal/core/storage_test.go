package core

import (
	"context"
	"path/filepath"
	"testing"

	"kittycore/internal/infra/persistence/memory"
	"kittycore/internal/infra/persistence/sqlite"
	"kittycore/internal/random"
	"kittycore/pkg/domain"
)

func TestOpenPersistentStoreMemory(t *testing.T) {
	store, err := OpenPersistentStore(StorageConfig{Driver: StorageMemory, ExistentialDeposit: 7}, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	mem, ok := store.(*memory.Store)
	if !ok {
		t.Fatalf("expected *memory.Store, got %T", store)
	}
	if mem.ExistentialDeposit() != 7 {
		t.Fatalf("expected configured existential deposit, got %d", mem.ExistentialDeposit())
	}
	if err := CloseStore(store); err != nil {
		t.Fatalf("closing memory store is a no-op: %v", err)
	}
}

func TestOpenPersistentStoreDefaultsToSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kitties.db")
	engine := NewDefaultRulesEngine()
	store, err := OpenPersistentStore(StorageConfig{SQLitePath: path}, engine)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	s, ok := store.(*sqlite.Store)
	if !ok {
		t.Fatalf("expected *sqlite.Store, got %T", store)
	}
	if s.Path() != path {
		t.Fatalf("expected path %s, got %s", path, s.Path())
	}

	svc := NewService(store, WithRandomness(random.NewFixed(domain.Seed{})))
	if _, _, err := svc.Create(context.Background(), 10); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := CloseStore(store); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenPersistentStore(StorageConfig{Driver: StorageSQLite, SQLitePath: path}, engine)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = CloseStore(reopened) }()
	if got := reopened.KittiesOwnedBy(10); len(got) != 1 {
		t.Fatalf("expected persisted kitty after reopen, got %d", len(got))
	}
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	if _, err := OpenPersistentStore(StorageConfig{Driver: "etcd"}, nil); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestOpenPersistentStorePostgresUnreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("dials a local postgres")
	}
	if _, err := OpenPersistentStore(StorageConfig{Driver: StoragePostgres, PostgresDSN: "postgres://127.0.0.1:1/none?sslmode=disable&connect_timeout=1"}, nil); err == nil {
		t.Fatalf("expected connection error")
	}
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()
	if _, ok := sink.Last(); ok {
		t.Fatalf("expected empty sink")
	}
	first := domain.KittyCreated{Owner: 1, KittyID: 0}
	second := domain.KittyTransferred{From: 1, To: 2, KittyID: 0}
	if err := sink.Publish(context.Background(), []Event{first, second}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	events := sink.Events()
	if len(events) != 2 || events[0] != first || events[1] != second {
		t.Fatalf("unexpected events %#v", events)
	}
	events[0] = nil
	if last, _ := sink.Last(); last != second {
		t.Fatalf("expected last event to be the transfer")
	}
	if sink.Events()[0] == nil {
		t.Fatalf("Events must return a copy")
	}
	sink.Reset()
	if len(sink.Events()) != 0 {
		t.Fatalf("expected reset to clear events")
	}
}
