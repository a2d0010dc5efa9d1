package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"jobradar-engine/internal/events"
	"jobradar-engine/internal/pipeline"
	"jobradar-engine/internal/store"
)

type CycleHandler struct {
	DB       *sql.DB
	Status   *atomic.Value // httpapi.CycleStatus
	Hub      *events.Hub
	RunCycle func(ctx context.Context, opts pipeline.Options) (pipeline.Report, error)

	RetentionDays int
}

func (h CycleHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st := h.Status.Load().(CycleStatus)
	writeJSON(w, st)
}

// Reindex handles POST /reindex?source=&replace=. The run happens in
// the background; progress lands on the event stream and /status.
func (h CycleHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	st := h.Status.Load().(CycleStatus)
	if st.Running {
		WriteError(w, r, http.StatusConflict, "busy", "an indexing run is already in progress")
		return
	}

	opts := pipeline.Options{
		Only:    r.URL.Query().Get("source"),
		Replace: r.URL.Query().Get("replace") == "true",
	}

	h.Status.Store(CycleStatus{
		LastRunAt: time.Now().Format(time.RFC3339),
		Running:   true,
		LastOkAt:  st.LastOkAt,
	})
	reqID := RequestIDFrom(r.Context())
	h.Hub.Publish(events.MakeEvent(reqID, events.TypeCycleStarted, 1, opts))

	go func() {
		rep, err := h.RunCycle(context.Background(), opts)

		now := time.Now().Format(time.RFC3339)
		next := h.Status.Load().(CycleStatus)
		next.Running = false
		next.LastRunAt = now
		next.LastAdded = rep.Added
		if err != nil {
			next.LastError = err.Error()
		} else {
			next.LastError = ""
			next.LastOkAt = now
		}
		h.Status.Store(next)
		h.Hub.Publish(events.MakeEvent(reqID, events.TypeCycleDone, 1, map[string]any{
			"found": rep.Found, "added": rep.Added, "failed": rep.Failed,
		}))
	}()

	writeJSON(w, map[string]any{"ok": true})
}

// Purge handles POST /purge?days=. Days defaults to the configured
// retention window.
func (h CycleHandler) Purge(w http.ResponseWriter, r *http.Request) {
	days := h.RetentionDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteError(w, r, http.StatusBadRequest, "bad_days", "days must be a positive integer")
			return
		}
		days = n
	}

	deleted, err := store.PurgeStale(h.DB, time.Duration(days)*24*time.Hour)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "purge_failed", err.Error())
		return
	}

	reqID := RequestIDFrom(r.Context())
	h.Hub.Publish(events.MakeEvent(reqID, events.TypePurgeDone, 1, map[string]any{"deleted": deleted}))
	writeJSON(w, map[string]any{"ok": true, "deleted": deleted, "days": days})
}
