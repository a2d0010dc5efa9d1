package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"jobradar-engine/internal/config"
	"jobradar-engine/internal/domain"
	"jobradar-engine/internal/events"
	"jobradar-engine/internal/httpapi"
	"jobradar-engine/internal/notify"
	"jobradar-engine/internal/pipeline"
	"jobradar-engine/internal/scheduler"
	"jobradar-engine/internal/secrets"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and the indexing/notification scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()
			return serve(a)
		},
	}
}

func serve(a *app) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sources, err := a.buildSources()
	if err != nil {
		return err
	}

	hub := events.NewHub()
	pipe := a.newPipeline()
	pipe.OnNew = func(l domain.Listing) {
		hub.Publish(events.MakeEvent("", events.TypeJobNew, 1, l))
	}

	dispatcher, err := buildDispatcher(a)
	if err != nil {
		return err
	}

	sched := scheduler.New(a.db.Pool, pipe, sources, dispatcher,
		a.cfg.Notify.DigestTime,
		time.Duration(a.cfg.Notify.IntervalMinutes)*time.Minute,
		time.Duration(a.cfg.Notify.SettleSeconds)*time.Second,
		a.retention(),
		a.log)
	sched.OnNotified = func(kind notify.TickKind, newEntries int) {
		hub.Publish(events.MakeEvent("", events.TypeNotifySent, 1, map[string]any{
			"tick": kind.String(), "new": newEntries,
		}))
	}

	mux := httpapi.NewMux(httpapi.Deps{
		DB:          a.db.Pool,
		Hub:         hub,
		Log:         a.log,
		CfgVal:      a.cfgVal,
		UserCfgPath: a.userCfgPath,
		LoadCfg:     func() (config.Config, error) { return config.Load(a.userCfgPath) },
		RunCycle: func(ctx context.Context, opts pipeline.Options) (pipeline.Report, error) {
			return pipe.Run(ctx, sources, opts)
		},
	})

	handler := httpapi.Chain(mux,
		httpapi.RequestID,
		httpapi.AccessLog(a.log),
		httpapi.Recover(a.log),
		httpapi.Cors,
	)

	addr := fmt.Sprintf("127.0.0.1:%d", a.cfg.App.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	attachShutdown(mux, srv, a.log)

	a.log.Infow("engine listening", "addr", "http://"+addr, "sources", len(sources))

	errCh := make(chan error, 2)
	go func() { errCh <- srv.Serve(ln) }()
	go func() { errCh <- sched.Start(ctx) }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed && err != context.Canceled {
			return err
		}
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// buildDispatcher returns nil when notifications are off.
func buildDispatcher(a *app) (*notify.Dispatcher, error) {
	if !a.cfg.Notify.Enabled {
		return nil, nil
	}

	token, err := secrets.GetTwilioToken(secrets.TwilioKeyringAccount(a.cfg), a.cfg)
	if err != nil {
		return nil, err
	}
	sender := notify.NewTwilioSender(a.cfg.Notify.TwilioAccountSID, token, a.cfg.Notify.From)
	return notify.NewDispatcher(sender, a.cfg.Notify.To, a.cfg.Notify.MessageLimit, a.log), nil
}
