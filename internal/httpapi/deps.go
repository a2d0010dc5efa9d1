package httpapi

import (
	"context"
	"database/sql"
	"sync/atomic"

	"go.uber.org/zap"

	"jobradar-engine/internal/config"
	"jobradar-engine/internal/events"
	"jobradar-engine/internal/pipeline"
)

type Deps struct {
	DB *sql.DB

	Hub *events.Hub
	Log *zap.SugaredLogger

	// Atomic store for the live config snapshot.
	CfgVal *atomic.Value // stores config.Config

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// Cycle entrypoint (inject for testability)
	RunCycle func(ctx context.Context, opts pipeline.Options) (pipeline.Report, error)
}
