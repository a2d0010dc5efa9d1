package httpapi

import (
	"net/http"
	"sync/atomic"

	"jobradar-engine/internal/config"
)

// NewMux wires the API surface. The caller wraps the result with
// Chain(RequestID, AccessLog, Recover, Cors).
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	status := &atomic.Value{}
	status.Store(CycleStatus{})

	// Index queries
	jh := JobsHandler{DB: d.DB}
	mux.HandleFunc("/search", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: jh.Search,
	}))
	mux.HandleFunc("/jobs", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: jh.Get,
	}))
	mux.HandleFunc("/stats", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: jh.Stats,
	}))
	mux.HandleFunc("/pending", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: jh.Pending,
	}))

	// Indexing cycles
	cfg := d.CfgVal.Load().(config.Config)
	cy := CycleHandler{
		DB:            d.DB,
		Status:        status,
		Hub:           d.Hub,
		RunCycle:      d.RunCycle,
		RetentionDays: cfg.Search.RetentionDays,
	}
	mux.HandleFunc("/reindex", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: cy.Reindex,
	}))
	mux.HandleFunc("/purge", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: cy.Purge,
	}))
	mux.HandleFunc("/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: cy.GetStatus,
	}))

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
	}
	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
		http.MethodPut: ch.Put,
	}))
	mux.HandleFunc("/config/path", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Path,
	}))
	mux.HandleFunc("/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Validate,
	}))

	// Secrets (use CfgVal, NOT a snapshot cfg)
	sh := SecretsHandler{CfgVal: d.CfgVal}
	mux.HandleFunc("/api/secrets/twilio", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sh.SetTwilioToken,
	}))

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	// Maintenance
	dh := DBHandler{DB: d.DB}
	mux.HandleFunc("/db/checkpoint", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: dh.Checkpoint,
	}))

	hh := HealthHandler{}
	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: hh.Health,
	}))

	return mux
}
