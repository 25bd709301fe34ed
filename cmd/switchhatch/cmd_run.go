package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"switchhatch/internal/journal"
)

func runCmd(gf *globalFlags) *cobra.Command {
	var (
		rf runFlags
		sf serviceFlags
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the hatching procedure against the console",
		Long: `Run opens the report transport and answers every host poll with the next
controller report until the procedure is done. After that the pad idles with
neutral reports and the completion alert blinks until the run is stopped.

While running, the daemon serves a control socket (see "switchhatch ctl")
and a websocket status feed (see "switchhatch watch").`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var o FlagOverrides
			rf.overrides(cmd.Flags(), &o)
			sf.overrides(cmd.Flags(), &o)

			cfg, err := loadConfig(gf, o)
			if err != nil {
				return err
			}
			return runService(cmd.Context(), cfg, newLogger(cfg, os.Stderr))
		},
	}
	rf.register(cmd.Flags())
	sf.register(cmd.Flags())
	return cmd
}

// runService wires the daemon and its collaborators and blocks until the run
// is stopped, fails, or a signal arrives.
func runService(parent context.Context, cfg Config, logger *slog.Logger) error {
	if parent == nil {
		parent = context.Background()
	}

	// Configuration-fatal errors surface before the transport is opened.
	m, _, err := cfg.NewMachine()
	if err != nil {
		return err
	}
	runCfg, err := cfg.RunConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var env effectEnv

	runID := uuid.New().String()
	if cfg.Journal.Path != "" {
		path := ExpandPath(cfg.Journal.Path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("journal dir: %w", err)
		}
		store, err := journal.Open(path)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		defer store.Close()

		if runID, err = store.StartRun(ctx, runCfg); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		env.journal = store
		logger.Info("journal enabled", "path", path)
	}

	tr, err := openTransport(cfg.Transport, logger)
	if err != nil {
		if env.journal != nil {
			_ = env.journal.FinishRun(context.Background(), runID, journal.OutcomeFailed)
		}
		return err
	}
	defer tr.Close()

	events := make(chan Event, 64)
	broadcasts := make(chan StateBroadcast, 256)

	g, gctx := errgroup.WithContext(ctx)

	var alert *ledAlert
	if cfg.Alert.LEDPath != "" {
		alert = newLEDAlert(cfg.Alert.LEDPath, cfg.AlertInterval(), logger)
		env.alert = alert
		g.Go(func() error { return alert.Run(gctx) })
	}

	g.Go(func() error {
		return runIPCServer(gctx, cfg.IPC.SocketPath, events, defaultStatusWaitMS*time.Millisecond, logger)
	})

	if cfg.Monitor.Listen != "" {
		srv := NewServer(logger, events, ServerConfig{})
		mux := http.NewServeMux()
		srv.Register(mux, cfg.Monitor.Path)
		httpSrv := &http.Server{
			Addr:              cfg.Monitor.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			srv.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(gctx, srv.Hub(), broadcasts, logger)
			return nil
		})
		g.Go(func() error {
			logger.Info("status feed listening", "addr", cfg.Monitor.Listen, "path", cfg.Monitor.Path)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status feed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	} else {
		broadcasts = nil
	}

	state := NewRunState(runID, runCfg, time.Now())
	g.Go(func() error {
		// The run ending ends the process.
		defer stop()
		return runDaemon(gctx, events, m, tr, state, env, broadcasts, logger)
	})

	return g.Wait()
}
