package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/newthinker/aitrader/internal/api/response"
	"github.com/newthinker/aitrader/internal/core"
	"github.com/newthinker/aitrader/internal/storage/archive"
	"github.com/newthinker/aitrader/internal/trend"
)

// SnapshotArchive is the read side of publish.Archive.
type SnapshotArchive interface {
	Day(ctx context.Context, day time.Time) ([]string, error)
	Snapshot(ctx context.Context, at time.Time) (*trend.Snapshot, error)
}

// ArchiveHandler browses archived trend snapshots by UTC day.
type ArchiveHandler struct {
	archive SnapshotArchive
}

func NewArchiveHandler(a SnapshotArchive) *ArchiveHandler {
	return &ArchiveHandler{archive: a}
}

type archivedSnapshot struct {
	Path        string    `json:"path"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Day handles GET /api/v1/archive/{date}.
func (h *ArchiveHandler) Day(w http.ResponseWriter, r *http.Request) {
	day, err := time.Parse(time.DateOnly, r.PathValue("date"))
	if err != nil {
		response.Error(w, http.StatusBadRequest,
			core.Errorf(core.ErrConfigInvalid, "date must be YYYY-MM-DD, got %q", r.PathValue("date")))
		return
	}

	paths, err := h.archive.Day(r.Context(), day)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]archivedSnapshot, 0, len(paths))
	for _, p := range paths {
		at, err := archive.SnapshotTime(p)
		if err != nil {
			continue
		}
		out = append(out, archivedSnapshot{Path: p, GeneratedAt: at})
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"date":      day.Format(time.DateOnly),
		"snapshots": out,
		"count":     len(out),
	})
}

// Get handles GET /api/v1/archive/{date}/{time}, time being HHMMSS UTC.
func (h *ArchiveHandler) Get(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("date") + " " + r.PathValue("time")
	at, err := time.Parse(time.DateOnly+" 150405", raw)
	if err != nil {
		response.Error(w, http.StatusBadRequest,
			core.Errorf(core.ErrConfigInvalid, "want /archive/YYYY-MM-DD/HHMMSS, got %q", raw))
		return
	}

	snap, err := h.archive.Snapshot(r.Context(), at)
	switch {
	case errors.Is(err, archive.ErrNotExist):
		response.Error(w, http.StatusNotFound, core.WrapError(core.ErrNotFound, err))
		return
	case err != nil:
		response.Error(w, http.StatusInternalServerError, err)
		return
	}
	response.JSON(w, http.StatusOK, snap)
}
