// Package eventarchive persists committed kitty events as JSON objects in a
// blob store so they outlive the process that emitted them.
package eventarchive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"kittycore/internal/blob"
	"kittycore/pkg/domain"

	"github.com/google/uuid"
)

// Prefix is the key namespace holding archived events.
const Prefix = "events/"

// Record is the archived form of one event.
type Record struct {
	Seq         uint64           `json:"seq"`
	ID          string           `json:"id"`
	Kind        domain.EventKind `json:"kind"`
	KittyID     domain.KittyID   `json:"kitty_id"`
	PublishedAt time.Time        `json:"published_at"`
	Payload     json.RawMessage  `json:"payload"`
}

// Event decodes the payload back into its typed event.
func (r Record) Event() (domain.Event, error) {
	var target domain.Event
	switch r.Kind {
	case domain.EventKittyCreated:
		var ev domain.KittyCreated
		if err := json.Unmarshal(r.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.Kind, err)
		}
		target = ev
	case domain.EventKittyBred:
		var ev domain.KittyBred
		if err := json.Unmarshal(r.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.Kind, err)
		}
		target = ev
	case domain.EventKittyPriceUpdated:
		var ev domain.KittyPriceUpdated
		if err := json.Unmarshal(r.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.Kind, err)
		}
		target = ev
	case domain.EventKittyTransferred:
		var ev domain.KittyTransferred
		if err := json.Unmarshal(r.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.Kind, err)
		}
		target = ev
	case domain.EventKittySold:
		var ev domain.KittySold
		if err := json.Unmarshal(r.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.Kind, err)
		}
		target = ev
	default:
		return nil, fmt.Errorf("unknown event kind %q", r.Kind)
	}
	return target, nil
}

// Sink implements domain.EventSink on a blob store. Each event becomes one
// write-once object keyed events/<kind>/<seq>-<uuid>.json, with seq
// continuing from the highest sequence already archived.
type Sink struct {
	store blob.Store
	now   func() time.Time
	newID func() string

	mu  sync.Mutex
	seq uint64
}

// Option configures a Sink.
type Option func(*Sink)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides the uuid source, for deterministic keys in tests.
func WithIDGenerator(newID func() string) Option {
	return func(s *Sink) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewSink opens an archive on store and resumes its sequence.
func NewSink(ctx context.Context, store blob.Store, opts ...Option) (*Sink, error) {
	s := &Sink{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	infos, err := store.List(ctx, Prefix)
	if err != nil {
		return nil, fmt.Errorf("scan archive: %w", err)
	}
	for _, info := range infos {
		if seq, ok := seqFromKey(info.Key); ok && seq > s.seq {
			s.seq = seq
		}
	}
	return s, nil
}

// Publish archives events in order. It stops at the first failed write.
func (s *Sink) Publish(ctx context.Context, events []domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode %s: %w", ev.Kind(), err)
		}
		rec := Record{
			Seq:         s.seq + 1,
			ID:          s.newID(),
			Kind:        ev.Kind(),
			KittyID:     ev.Subject(),
			PublishedAt: s.now(),
			Payload:     payload,
		}
		body, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		_, err = s.store.Put(ctx, Key(rec), bytes.NewReader(body), blob.PutOptions{
			ContentType: "application/json",
			Metadata: map[string]string{
				"kind":     string(rec.Kind),
				"kitty_id": strconv.FormatUint(uint64(rec.KittyID), 10),
			},
		})
		if err != nil {
			return fmt.Errorf("archive %s: %w", rec.Kind, err)
		}
		s.seq = rec.Seq
	}
	return nil
}

// Seq reports the sequence number of the last archived event.
func (s *Sink) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Key returns the object key for rec.
func Key(rec Record) string {
	return fmt.Sprintf("%s%s/%020d-%s.json", Prefix, rec.Kind, rec.Seq, rec.ID)
}

func seqFromKey(key string) (uint64, bool) {
	base := path.Base(key)
	digits, _, ok := strings.Cut(base, "-")
	if !ok {
		return 0, false
	}
	seq, err := strconv.ParseUint(digits, 10, 64)
	return seq, err == nil
}

// List reads archived records ordered by sequence. An empty kind lists all
// kinds.
func List(ctx context.Context, store blob.Store, kind domain.EventKind) ([]Record, error) {
	prefix := Prefix
	if kind != "" {
		prefix += string(kind) + "/"
	}
	infos, err := store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	records := make([]Record, 0, len(infos))
	for _, info := range infos {
		rec, err := read(ctx, store, info.Key)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })
	return records, nil
}

func read(ctx context.Context, store blob.Store, key string) (Record, error) {
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = rc.Close() }()
	body, err := io.ReadAll(rc)
	if err != nil {
		return Record{}, fmt.Errorf("read %s: %w", key, err)
	}
	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return Record{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return rec, nil
}
