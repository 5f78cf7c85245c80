package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildSnapshotPath returns the object key for a timestamped cache
// snapshot, partitioned by export date so old snapshots are easy to
// expire with a lifecycle rule.
func BuildSnapshotPath(service string, exportedAt time.Time) (string, error) {
	if err := validatePathComponent(service, "service name"); err != nil {
		return "", err
	}
	ts := exportedAt.UTC()
	return path.Join(
		service,
		"snapshots",
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("cache-%d.parquet", ts.UnixMilli()),
	), nil
}

// LatestSnapshotPath returns the fixed object key that always points at
// the most recent snapshot. Restores read this key on startup.
func LatestSnapshotPath(service string) (string, error) {
	if err := validatePathComponent(service, "service name"); err != nil {
		return "", err
	}
	return path.Join(service, "snapshots", "cache-latest.parquet"), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
