package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"alerthub/pkg/live"
	"alerthub/pkg/session"
	"alerthub/pkg/telemetry"
)

type watchConfig struct {
	metricsAddr    string
	exportSchedule string
	exportDir      string
	quiet          bool
}

// newWatchCmd creates the "alerthub watch" subcommand.
func newWatchCmd(g *globalFlags) *cobra.Command {
	var cfg watchConfig

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stay in sync and print new events as they arrive",
		Long: "Runs the snapshot poller and the push channel until interrupted, printing\n" +
			"each event the first time it enters the view. Optionally serves Prometheus\n" +
			"metrics and writes exports on a cron schedule.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := loadEnv(cmd, g)
			if err != nil {
				return err
			}
			metrics := telemetry.New()
			s, cleanup, err := env.openSession(metrics)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			if cfg.metricsAddr != "" {
				stop, err := serveMetrics(cfg.metricsAddr, s, metrics, env.log)
				if err != nil {
					return err
				}
				defer stop()
			}
			if cfg.exportSchedule != "" {
				stop, err := scheduleExports(ctx, cmd, s, cfg.exportSchedule, cfg.exportDir, env.log)
				if err != nil {
					return err
				}
				defer stop()
			}

			s.OnPushState(func(_, to live.State) {
				env.log.Info().Str("state", to.String()).Msg("push channel")
			})
			if err := s.Start(ctx); err != nil {
				return err
			}
			if cfg.quiet {
				<-ctx.Done()
				return nil
			}
			printNewEvents(ctx, s, cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")
	cmd.Flags().StringVar(&cfg.exportSchedule, "export-schedule", "", "cron expression for periodic exports, e.g. \"*/15 * * * *\"")
	cmd.Flags().StringVar(&cfg.exportDir, "export-dir", ".", "directory for scheduled exports")
	cmd.Flags().BoolVar(&cfg.quiet, "quiet", false, "do not print events")
	return cmd
}

// printNewEvents writes each event once, oldest first within a change, until ctx is done.
func printNewEvents(ctx context.Context, s *session.Session, w io.Writer) {
	seen := make(map[int64]struct{})
	changes := s.Cache().Changes()
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
		}
		events := s.Cache().Events()
		for _, ev := range slices.Backward(events) {
			if _, ok := seen[ev.ID]; ok {
				continue
			}
			seen[ev.ID] = struct{}{}
			formatEvent(w, ev)
		}
		if len(seen) > 4*s.Cache().Capacity() {
			// Forget ids that left the view.
			clear(seen)
			for _, ev := range events {
				seen[ev.ID] = struct{}{}
			}
		}
	}
}

// serveMetrics starts the metrics listener and returns its shutdown func.
func serveMetrics(addr string, s *session.Session, m *telemetry.Metrics, log zerolog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: metricsRouter(s, m), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// metricsRouter exposes Prometheus metrics and a health probe that reflects the last snapshot.
func metricsRouter(s *session.Session, m *telemetry.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", m.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		h := s.Health()
		status := http.StatusOK
		if !h.Online {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = writeJSON(w, map[string]any{
			"online":       h.Online,
			"push":         s.PushState().String(),
			"cache_events": s.Cache().Len(),
			"last_success": h.LastSuccess,
		})
	})
	return r
}

// scheduleExports writes an export into dir on every cron tick.
func scheduleExports(ctx context.Context, cmd *cobra.Command, s *session.Session, spec, dir string, log zerolog.Logger) (func(), error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		path, n, err := exportTo(cmd, s, dir, time.Now())
		if err != nil {
			log.Warn().Err(err).Msg("scheduled export failed")
			return
		}
		log.Info().Str("file", path).Int("events", n).Msg("scheduled export written")
	})
	if err != nil {
		return nil, fmt.Errorf("export schedule %q: %w", spec, err)
	}
	c.Start()
	return func() { <-c.Stop().Done() }, nil
}
