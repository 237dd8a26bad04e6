// Package archive stores published artifacts, such as trend snapshots, in
// cold storage.
package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotExist is returned by Read when nothing is stored at the path.
var ErrNotExist = errors.New("archive: object does not exist")

// Storage is a flat object store addressed by slash separated paths.
type Storage interface {
	Write(ctx context.Context, path string, data []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	// List returns the paths under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes path. Deleting a missing path is not an error.
	Delete(ctx context.Context, path string) error
}

// SnapshotRoot prefixes every archived snapshot.
const SnapshotRoot = "trends/"

const snapshotLayout = "2006/01/02/150405"

// SnapshotPath returns the path a snapshot generated at t is archived under,
// e.g. trends/2025/01/31/134500.json.
func SnapshotPath(t time.Time) string {
	return SnapshotRoot + t.UTC().Format(snapshotLayout) + ".json"
}

// DayPrefix returns the prefix of all snapshots archived on t's UTC day.
func DayPrefix(t time.Time) string {
	return SnapshotRoot + t.UTC().Format("2006/01/02") + "/"
}

// SnapshotTime recovers the generation time from a SnapshotPath.
func SnapshotTime(path string) (time.Time, error) {
	stamp, ok := strings.CutPrefix(path, SnapshotRoot)
	if ok {
		stamp, ok = strings.CutSuffix(stamp, ".json")
	}
	if !ok {
		return time.Time{}, fmt.Errorf("archive: %q is not a snapshot path", path)
	}
	t, err := time.Parse(snapshotLayout, stamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("archive: %q is not a snapshot path: %w", path, err)
	}
	return t, nil
}
