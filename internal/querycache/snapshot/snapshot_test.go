package snapshot

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/askgraph/askgraph/internal/querycache"
	"github.com/askgraph/askgraph/internal/storage"
)

func TestExportRestoreRoundTrip(t *testing.T) {
	store := newMemoryStore()
	source, _ := querycache.NewCache(8)
	source.Set("key-a", querycache.Entry{
		Query:   "MATCH (s:Scholar) RETURN s.knownName",
		Columns: []string{"s.knownName"},
		Rows:    [][]any{{"Marie Curie"}, {"Albert Einstein"}},
	})
	source.Set("key-b", querycache.Entry{
		Query:   "MATCH (p:Prize) RETURN p.category, p.awardYear",
		Columns: []string{"p.category", "p.awardYear"},
		Rows:    [][]any{{"Physics", float64(1921)}},
	})

	manager := newTestManager(t, source, store)
	exported, err := manager.Export(context.Background())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if exported != 2 {
		t.Fatalf("Export() = %d, want 2", exported)
	}
	if len(store.objects) != 2 {
		t.Fatalf("stored objects = %d, want timestamped plus latest", len(store.objects))
	}

	target, _ := querycache.NewCache(8)
	restoreManager := newTestManager(t, target, store)
	restored, err := restoreManager.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if restored != 2 {
		t.Fatalf("Restore() = %d, want 2", restored)
	}

	entry, ok := target.Get("key-a")
	if !ok {
		t.Fatal("key-a missing after restore")
	}
	if entry.Query != "MATCH (s:Scholar) RETURN s.knownName" {
		t.Fatalf("Query = %q", entry.Query)
	}
	if !reflect.DeepEqual(entry.Columns, []string{"s.knownName"}) {
		t.Fatalf("Columns = %v", entry.Columns)
	}
	if len(entry.Rows) != 2 || entry.Rows[0][0] != "Marie Curie" {
		t.Fatalf("Rows = %v", entry.Rows)
	}
}

func TestRestorePreservesRecencyOrder(t *testing.T) {
	store := newMemoryStore()
	source, _ := querycache.NewCache(8)
	source.Set("old", querycache.Entry{Query: "q-old"})
	source.Set("new", querycache.Entry{Query: "q-new"})

	manager := newTestManager(t, source, store)
	if _, err := manager.Export(context.Background()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	target, _ := querycache.NewCache(8)
	if _, err := newTestManager(t, target, store).Restore(context.Background()); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	dump := target.Dump()
	if dump[0].Key != "old" || dump[1].Key != "new" {
		t.Fatalf("recency order = %v", []string{dump[0].Key, dump[1].Key})
	}
}

func TestRestoreWithoutSnapshotIsNoop(t *testing.T) {
	target, _ := querycache.NewCache(8)
	manager := newTestManager(t, target, newMemoryStore())
	restored, err := manager.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if restored != 0 || target.Len() != 0 {
		t.Fatalf("restored = %d, cache size = %d", restored, target.Len())
	}
}

func TestExportEmptyCache(t *testing.T) {
	store := newMemoryStore()
	source, _ := querycache.NewCache(8)
	manager := newTestManager(t, source, store)
	exported, err := manager.Export(context.Background())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if exported != 0 {
		t.Fatalf("Export() = %d, want 0", exported)
	}

	target, _ := querycache.NewCache(8)
	if _, err := newTestManager(t, target, store).Restore(context.Background()); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if target.Len() != 0 {
		t.Fatalf("cache size = %d, want 0", target.Len())
	}
}

func newTestManager(t *testing.T, cache *querycache.Cache, store storage.ObjectStore) *Manager {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager, err := NewManager(cache, store, "askgraph", logger)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	manager.now = func() time.Time {
		return time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)
	}
	return manager
}

type memoryStore struct {
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	payload, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.objects[key] = payload
	return storage.ObjectInfo{Key: key, Size: int64(len(payload))}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	payload, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(payload)), nil
}

func (m *memoryStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	payload, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(payload))}, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	if _, ok := m.objects[key]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(m.objects, key)
	return nil
}
