package api

import "net/http"

type cacheStatsResponse struct {
	Size      int    `json:"size"`
	Capacity  int    `json:"capacity"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

func handleCacheStats(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Cache == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CACHE_NOT_CONFIGURED", "cache is not configured", false, nil)
		return
	}
	stats := deps.Cache.Stats()
	writeJSON(w, http.StatusOK, cacheStatsResponse{
		Size:      stats.Size,
		Capacity:  stats.Capacity,
		Hits:      stats.Hits,
		Misses:    stats.Misses,
		Evictions: stats.Evictions,
	})
}

func handleCacheSnapshot(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Snapshots == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SNAPSHOTS_NOT_CONFIGURED", "snapshot manager is not configured", false, nil)
		return
	}
	exported, err := deps.Snapshots.Export(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "SNAPSHOT_EXPORT_FAILED", err.Error(), true, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": exported})
}

func handleCacheRestore(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Snapshots == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SNAPSHOTS_NOT_CONFIGURED", "snapshot manager is not configured", false, nil)
		return
	}
	restored, err := deps.Snapshots.Restore(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "SNAPSHOT_RESTORE_FAILED", err.Error(), true, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": restored})
}
