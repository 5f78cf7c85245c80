// Package snapshot persists the query cache to an object store as
// parquet files, so a restarted service can warm up from the last
// exported state instead of an empty cache.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/askgraph/askgraph/internal/querycache"
	"github.com/askgraph/askgraph/internal/storage"
)

type record struct {
	CacheKey         string `parquet:"cache_key"`
	QueryText        string `parquet:"query_text"`
	ColumnsJSON      string `parquet:"columns_json"`
	RowsJSON         string `parquet:"rows_json"`
	ExportedAtUnixMs int64  `parquet:"exported_at_unix_ms"`
}

// Manager exports and restores cache snapshots. Each export writes a
// timestamped object plus the fixed latest key that Restore reads.
type Manager struct {
	cache   *querycache.Cache
	store   storage.ObjectStore
	service string
	logger  *slog.Logger
	now     func() time.Time
}

func NewManager(cache *querycache.Cache, store storage.ObjectStore, service string, logger *slog.Logger) (*Manager, error) {
	if cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if _, err := storage.LatestSnapshotPath(service); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cache: cache, store: store, service: service, logger: logger, now: time.Now}, nil
}

// Export writes the current cache contents, least recently used first,
// and returns the number of entries written.
func (m *Manager) Export(ctx context.Context) (int, error) {
	exportedAt := m.now().UTC()
	entries := m.cache.Dump()

	records := make([]record, 0, len(entries))
	for _, e := range entries {
		columnsJSON, err := json.Marshal(e.Entry.Columns)
		if err != nil {
			return 0, fmt.Errorf("encode columns for key %s: %w", e.Key, err)
		}
		rowsJSON, err := json.Marshal(e.Entry.Rows)
		if err != nil {
			return 0, fmt.Errorf("encode rows for key %s: %w", e.Key, err)
		}
		records = append(records, record{
			CacheKey:         e.Key,
			QueryText:        e.Entry.Query,
			ColumnsJSON:      string(columnsJSON),
			RowsJSON:         string(rowsJSON),
			ExportedAtUnixMs: exportedAt.UnixMilli(),
		})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[record](buf)
	if len(records) > 0 {
		if _, err := writer.Write(records); err != nil {
			return 0, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("close parquet writer: %w", err)
	}

	timestamped, err := storage.BuildSnapshotPath(m.service, exportedAt)
	if err != nil {
		return 0, err
	}
	latest, err := storage.LatestSnapshotPath(m.service)
	if err != nil {
		return 0, err
	}
	for _, key := range []string{timestamped, latest} {
		if _, err := m.store.Put(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), storage.PutOptions{ContentType: "application/octet-stream"}); err != nil {
			return 0, fmt.Errorf("upload snapshot %q: %w", key, err)
		}
	}

	m.logger.Info("cache snapshot exported",
		slog.String("key", timestamped),
		slog.Int("entries", len(records)),
		slog.Int("bytes", buf.Len()))
	return len(records), nil
}

// Restore loads the latest snapshot into the cache and returns the
// number of entries loaded. A missing snapshot is not an error.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	latest, err := storage.LatestSnapshotPath(m.service)
	if err != nil {
		return 0, err
	}

	info, err := m.store.Stat(ctx, latest)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			m.logger.Info("no cache snapshot to restore", slog.String("key", latest))
			return 0, nil
		}
		return 0, fmt.Errorf("stat snapshot %q: %w", latest, err)
	}

	reader, err := m.store.Get(ctx, latest)
	if err != nil {
		return 0, fmt.Errorf("get snapshot %q: %w", latest, err)
	}
	defer func() { _ = reader.Close() }()

	payload, err := io.ReadAll(reader)
	if err != nil {
		return 0, fmt.Errorf("read snapshot %q: %w", latest, err)
	}
	if int64(len(payload)) != info.Size {
		return 0, fmt.Errorf("snapshot %q truncated: got %d bytes, want %d", latest, len(payload), info.Size)
	}

	records, err := parquet.Read[record](bytes.NewReader(payload), info.Size)
	if err != nil {
		return 0, fmt.Errorf("decode snapshot %q: %w", latest, err)
	}

	loaded := 0
	for _, rec := range records {
		var columns []string
		if err := json.Unmarshal([]byte(rec.ColumnsJSON), &columns); err != nil {
			m.logger.Warn("skipping snapshot entry with bad columns", slog.String("cache_key", rec.CacheKey))
			continue
		}
		var rows [][]any
		if err := json.Unmarshal([]byte(rec.RowsJSON), &rows); err != nil {
			m.logger.Warn("skipping snapshot entry with bad rows", slog.String("cache_key", rec.CacheKey))
			continue
		}
		m.cache.Set(rec.CacheKey, querycache.Entry{Query: rec.QueryText, Columns: columns, Rows: rows})
		loaded++
	}

	m.logger.Info("cache snapshot restored", slog.String("key", latest), slog.Int("entries", loaded))
	return loaded, nil
}
