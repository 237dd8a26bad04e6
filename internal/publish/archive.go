package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/newthinker/aitrader/internal/storage/archive"
	"github.com/newthinker/aitrader/internal/trend"
)

// Archive writes every snapshot to cold storage as indented JSON.
type Archive struct {
	store archive.Storage
}

// NewArchive creates an archive sink.
func NewArchive(store archive.Storage) *Archive {
	return &Archive{store: store}
}

func (a *Archive) Name() string { return "archive" }

func (a *Archive) Publish(ctx context.Context, snap *trend.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	path := archive.SnapshotPath(snap.GeneratedAt)
	if err := a.store.Write(ctx, path, data); err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}
	return nil
}

// Day lists the snapshots archived on day.
func (a *Archive) Day(ctx context.Context, day time.Time) ([]string, error) {
	return a.store.List(ctx, archive.DayPrefix(day))
}

// Prune deletes snapshots generated before cutoff and returns how many were
// removed. Paths that are not snapshot paths are left alone.
func (a *Archive) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	paths, err := a.store.List(ctx, archive.SnapshotRoot)
	if err != nil {
		return 0, err
	}
	var n int
	for _, path := range paths {
		at, err := archive.SnapshotTime(path)
		if err != nil || !at.Before(cutoff) {
			continue
		}
		if err := a.store.Delete(ctx, path); err != nil {
			return n, fmt.Errorf("prune %s: %w", path, err)
		}
		n++
	}
	return n, nil
}

// Snapshot loads the snapshot generated at t.
func (a *Archive) Snapshot(ctx context.Context, t time.Time) (*trend.Snapshot, error) {
	return a.Load(ctx, archive.SnapshotPath(t))
}

// Load reads an archived snapshot.
func (a *Archive) Load(ctx context.Context, path string) (*trend.Snapshot, error) {
	data, err := a.store.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	var snap trend.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &snap, nil
}
