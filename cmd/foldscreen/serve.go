package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/foldscreen"
	"pkt.systems/foldscreen/httpapi"
	"pkt.systems/foldscreen/internal/appconfig"
	"pkt.systems/foldscreen/internal/version"
	"pkt.systems/foldscreen/schema"
	"pkt.systems/pslog"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var addr string
	var noWatch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, page shim and change streams",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			logger := pslog.Ctx(cmd.Context())

			opts := []foldscreen.ServerOption{foldscreen.WithHTTP()}
			if cfg.Emulator.WatchStateDir && !noWatch {
				opts = append(opts, foldscreen.WithStateWatch())
			}
			server, err := foldscreen.New(toServerConfig(cfg), foldscreen.ServerDeps{Logger: logger}, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			logger.Info("foldscreen serving", "version", version.Current(), "addr", cfg.HTTP.Addr, "state_dir", cfg.StateDir)
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "override http.addr")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not watch the state directory for external writes")
	return cmd
}

func toServerConfig(cfg appconfig.Config) foldscreen.ServerConfig {
	return foldscreen.ServerConfig{
		StateDir:       cfg.StateDir,
		Emulator:       cfg.EmulatorSettings(),
		HTTP:           toHTTPConfig(cfg),
		DefaultContext: schema.ContextID(cfg.Emulator.DefaultContext),
		Metrics:        cfg.HTTP.Metrics,
	}
}

func toHTTPConfig(cfg appconfig.Config) httpapi.Config {
	return httpapi.Config{
		Addr:          cfg.HTTP.Addr,
		BaseURL:       cfg.HTTP.BaseURL,
		BasePath:      cfg.HTTP.BasePath,
		StreamHistory: cfg.HTTP.StreamHistory,
		WatchDepth:    cfg.Emulator.WatchDepth,
	}
}
