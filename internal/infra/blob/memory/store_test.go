package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"kittycore/internal/blob/core"
)

func TestStoreMissingKeys(t *testing.T) {
	store := New()
	ctx := context.Background()
	if _, err := store.Head(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from head, got %v", err)
	}
	if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from get, got %v", err)
	}
	if ok, err := store.Delete(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected delete of missing key to report false, got %v %v", ok, err)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store := New()
	ctx := context.Background()
	md := map[string]string{"kind": "kitty_sold"}
	info, err := store.Put(ctx, "events/kitty_sold/1.json", strings.NewReader("{}"), core.PutOptions{ContentType: "application/json", Metadata: md})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	md["kind"] = "mutated"
	if info.Size != 2 || info.ETag == "" || store.Driver() != core.DriverMemory {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "events/kitty_sold/1.json", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := store.Put(ctx, "", strings.NewReader("x"), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key rejection")
	}

	got, rc, err := store.Get(ctx, "events/kitty_sold/1.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	if string(body) != "{}" || got.Metadata["kind"] != "kitty_sold" {
		t.Fatalf("stored metadata must be isolated from caller maps: %+v", got)
	}
	got.Metadata["kind"] = "changed"
	head, _ := store.Head(ctx, "events/kitty_sold/1.json")
	if head.Metadata["kind"] != "kitty_sold" {
		t.Fatalf("returned metadata must be a copy")
	}

	if _, err := store.Put(ctx, "other/1", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put other: %v", err)
	}
	events, _ := store.List(ctx, "events/")
	if len(events) != 1 {
		t.Fatalf("expected prefix filter, got %+v", events)
	}
	all, _ := store.List(ctx, "")
	if len(all) != 2 || all[0].Key != "events/kitty_sold/1.json" {
		t.Fatalf("expected sorted full listing, got %+v", all)
	}
	if ok, _ := store.Delete(ctx, "other/1"); !ok {
		t.Fatalf("expected delete to report existing key")
	}
}
