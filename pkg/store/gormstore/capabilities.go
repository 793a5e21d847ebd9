package gormstore

import (
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

// Capabilities describes what the backing database supports. Detected once
// when the store is created; never consulted per operation.
type Capabilities struct {
	// DirectRankUpdate is true when a correlated-subquery UPDATE computes
	// ranks against a stable snapshot of the table. SQLite re-evaluates the
	// subquery against already-updated rows, and MySQL before 8 rejects
	// reading the updated table outright, so both fall back to the staged
	// strategy.
	DirectRankUpdate bool

	// RecursiveCTE is true when WITH RECURSIVE is available for descendant
	// lookups (SQLite from 3.8.3, MySQL from 8). Without it descendants are
	// collected by iterative frontier expansion.
	RecursiveCTE bool
}

// detectCapabilities inspects the dialect and, where the answer depends on
// the server version, queries it.
func detectCapabilities(db *gorm.DB) (Capabilities, error) {
	switch db.Dialector.Name() {
	case "sqlite":
		version, err := queryVersion(db, "SELECT sqlite_version()")
		if err != nil {
			return Capabilities{}, err
		}
		return Capabilities{
			DirectRankUpdate: false,
			RecursiveCTE:     versionAtLeast(version, 3, 8, 3),
		}, nil
	case "mysql":
		version, err := queryVersion(db, "SELECT VERSION()")
		if err != nil {
			return Capabilities{}, err
		}
		atLeast8 := versionAtLeast(version, 8, 0, 0)
		return Capabilities{
			DirectRankUpdate: atLeast8,
			RecursiveCTE:     atLeast8,
		}, nil
	default:
		// PostgreSQL and close relatives.
		return Capabilities{
			DirectRankUpdate: true,
			RecursiveCTE:     true,
		}, nil
	}
}

func queryVersion(db *gorm.DB, query string) (string, error) {
	var version string
	if err := db.Raw(query).Scan(&version).Error; err != nil {
		return "", fmt.Errorf("failed to query server version: %w", err)
	}
	return version, nil
}

// versionAtLeast compares a dotted version string such as "3.40.1" or
// "8.0.36-debian" against the given minimum.
func versionAtLeast(version string, major, minor, patch int) bool {
	want := [3]int{major, minor, patch}

	// Strip vendor suffixes like "-debian" or "-log".
	if i := strings.IndexAny(version, "-+~ "); i >= 0 {
		version = version[:i]
	}

	var have [3]int
	for i, part := range strings.SplitN(version, ".", 3) {
		n, err := strconv.Atoi(part)
		if err != nil {
			break
		}
		have[i] = n
	}

	for i := range want {
		if have[i] != want[i] {
			return have[i] > want[i]
		}
	}
	return true
}
