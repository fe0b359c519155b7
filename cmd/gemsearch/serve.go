package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/gemsearch/config"
	"github.com/mohammad-safakhou/gemsearch/internal/format"
	"github.com/mohammad-safakhou/gemsearch/internal/metrics"
	"github.com/mohammad-safakhou/gemsearch/internal/search"
	"github.com/mohammad-safakhou/gemsearch/internal/server"
	"github.com/mohammad-safakhou/gemsearch/session/inmemory"
)

func serveCmd(a *app) *cobra.Command {
	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP search server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if addr == "" {
				addr = cfg.Server.Address()
			}

			var m *metrics.Metrics
			if cfg.Telemetry.Enabled {
				m = metrics.New()
			}
			svc, store, err := buildService(cmd.Context(), cfg, m)
			if err != nil {
				return err
			}
			m.TrackSessions(store.Len)

			log.Info().
				Str("model", cfg.Gemini.Model).
				Bool("development", cfg.General.IsDevelopment()).
				Str("static_dir", cfg.Server.StaticDir).
				Dur("session_ttl", cfg.Session.TTL).
				Int("max_sessions", cfg.Session.MaxSessions).
				Msg("starting gemsearch")

			srv := server.New(cfg.Server, svc, m)
			return srv.Run(cmd.Context(), addr, func(ctx context.Context) error {
				return store.RunEviction(ctx, cfg.Session.EvictionInterval)
			})
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (default server.host:server.port)")
	return serve
}

// buildService wires the gateway, the session store and the formatter.
func buildService(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*search.Service, *inmemory.Store, error) {
	gw, err := newGateway(ctx, cfg.Gemini)
	if err != nil {
		return nil, nil, err
	}
	store := inmemory.NewInMemorySessionStore(inmemory.Options{
		TTL:         cfg.Session.TTL,
		MaxSessions: cfg.Session.MaxSessions,
		OnEvict: func(_ string, reason inmemory.EvictReason) {
			m.SessionEvicted(string(reason))
		},
	})
	return search.NewService(gw, store, format.New(), m), store, nil
}
