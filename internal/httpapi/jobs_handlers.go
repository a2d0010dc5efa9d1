package httpapi

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"jobradar-engine/internal/store"
)

type JobsHandler struct {
	DB *sql.DB
}

// Search handles GET /search?q=&mode=&location=&max_age_days=&limit=.
func (h JobsHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	sq := store.SearchQuery{
		Mode:     store.SearchMode(q.Get("mode")),
		Query:    q.Get("q"),
		Location: q.Get("location"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteError(w, r, http.StatusBadRequest, "bad_limit", "limit must be a positive integer")
			return
		}
		sq.Limit = n
	}
	if v := q.Get("max_age_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteError(w, r, http.StatusBadRequest, "bad_max_age", "max_age_days must be a positive integer")
			return
		}
		sq.MaxAge = time.Duration(n) * 24 * time.Hour
	}

	entries, err := store.Search(r.Context(), h.DB, sq)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "search_failed", err.Error())
		return
	}
	writeJSON(w, map[string]any{"count": len(entries), "results": entries})
}

// Get handles GET /jobs?link=<url>.
func (h JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	link := r.URL.Query().Get("link")
	if link == "" {
		WriteError(w, r, http.StatusBadRequest, "missing_link", "link query parameter is required")
		return
	}

	entry, err := store.GetByURL(r.Context(), h.DB, link)
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, r, http.StatusNotFound, "not_found", "no entry for that link")
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "lookup_failed", err.Error())
		return
	}
	writeJSON(w, entry)
}

// Stats handles GET /stats.
func (h JobsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := store.IndexStats(r.Context(), h.DB)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "stats_failed", err.Error())
		return
	}
	writeJSON(w, st)
}

// Pending handles GET /pending: entries indexed since the last
// notification went out, i.e. what the next alert would contain.
func (h JobsHandler) Pending(w http.ResponseWriter, r *http.Request) {
	last, err := store.LastNotifiedAt(h.DB, "whatsapp")
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "state_failed", err.Error())
		return
	}
	entries, err := store.NewSince(r.Context(), h.DB, last)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "pending_failed", err.Error())
		return
	}
	writeJSON(w, map[string]any{
		"since":   last.UTC().Format(time.RFC3339),
		"count":   len(entries),
		"results": entries,
	})
}
