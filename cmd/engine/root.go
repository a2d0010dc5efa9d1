package main

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jobradar-engine/internal/config"
	"jobradar-engine/internal/connector"
	"jobradar-engine/internal/connector/registry"
	"jobradar-engine/internal/pipeline"
	"jobradar-engine/internal/store"
)

var errConfigInvalid = errors.New("config invalid, see log for details")

// app bundles everything a subcommand needs after bootstrap.
type app struct {
	cfg         config.Config
	cfgVal      *atomic.Value
	userCfgPath string
	dataDir     string
	db          *store.DB
	log         *zap.SugaredLogger
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "engine",
		Short:         "Job listing aggregation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newReindexCmd(),
		newPurgeCmd(),
		newStatsCmd(),
		newPendingCmd(),
		newTestMessageCmd(),
		newSetTokenCmd(),
	)
	return root
}

// bootstrap loads env, config, logger and the database. Every
// subcommand starts here.
func bootstrap() (*app, error) {
	_ = godotenv.Load()

	dataDir := os.Getenv("JOBRADAR_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}

	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	log := logger.Sugar()

	userCfgPath, err := config.EnsureUserConfig(dataDir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(userCfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.OverlaySources(&cfg, filepath.Join(dataDir, "sources.yml")); err != nil {
		return nil, err
	}
	cfg, vr := config.NormalizeAndValidate(cfg)
	for _, warn := range vr.Warnings {
		log.Warnw("config warning", "msg", warn)
	}
	if !vr.OK() {
		for _, e := range vr.Errors {
			log.Errorw("config error", "msg", e)
		}
		return nil, errConfigInvalid
	}
	if cfg.App.DataDir == "" {
		cfg.App.DataDir = dataDir
	}

	db, err := store.Open(filepath.Join(dataDir, "jobradar.db"))
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(db.Pool); err != nil {
		_ = db.Close()
		return nil, err
	}

	cfgVal := &atomic.Value{}
	cfgVal.Store(cfg)

	return &app{
		cfg:         cfg,
		cfgVal:      cfgVal,
		userCfgPath: userCfgPath,
		dataDir:     dataDir,
		db:          db,
		log:         log,
	}, nil
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("JOBRADAR_DEBUG") != "" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// buildSources turns the config into live connector pairings.
func (a *app) buildSources() ([]pipeline.Source, error) {
	limiter := connector.NewHostLimiter(a.cfg.Search.HostReqPerSec, a.cfg.Search.HostBurst)
	conns, err := registry.Build(a.cfg.Sources, limiter, a.log)
	if err != nil {
		return nil, err
	}

	sources := make([]pipeline.Source, 0, len(conns))
	for i, c := range conns {
		sources = append(sources, pipeline.Source{
			Conn:     c,
			Keywords: a.cfg.Sources[i].Keywords,
			MaxPages: a.cfg.Sources[i].MaxPages,
		})
	}
	return sources, nil
}

func (a *app) newPipeline() *pipeline.Pipeline {
	return pipeline.New(a.db.Pool, a.dataDir, a.cfg.Search.Workers, a.log)
}

func (a *app) retention() time.Duration {
	return time.Duration(a.cfg.Search.RetentionDays) * 24 * time.Hour
}
