package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pkt.systems/foldscreen/core"
	"pkt.systems/foldscreen/internal/sessionstore"
	"pkt.systems/foldscreen/internal/tui"
	"pkt.systems/foldscreen/schema"
	"pkt.systems/pslog"
)

func newWatchCmd() *cobra.Command {
	var cfgPath string
	var contextID string
	var logFile string
	var opts tui.Options
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show and edit the geometry of a context in the terminal",
		Long:  "Show and edit the geometry of a context in the terminal. The terminal size is the viewport; writes by other processes to the state directory are picked up live.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, cfgPath)
			if err != nil {
				return err
			}
			id, err := contextFlag(cfg, contextID)
			if err != nil {
				return err
			}
			// The terminal belongs to the view; logs go to a file or nowhere.
			var w io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				w = f
			}
			logger := pslog.NewWithOptions(w, pslog.Options{Mode: pslog.ModeStructured, NoColor: true, MinLevel: pslog.DebugLevel})
			ctx, cancel := context.WithCancel(pslog.ContextWithLogger(cmd.Context(), logger))
			defer cancel()

			store, err := sessionstore.NewFileStoreWithLogger(cfg.StateDir, logger)
			if err != nil {
				return err
			}
			registry, err := core.NewRegistry(ctx, cfg.EmulatorSettings(), core.RegistryDeps{
				OpenStore: func(id schema.ContextID) (core.KV, error) {
					return store.Bucket(id)
				},
				Logger: logger,
			})
			if err != nil {
				return err
			}
			defer registry.CloseAll()
			emu, err := registry.Get(id)
			if err != nil {
				return err
			}
			go func() {
				err := store.Watch(ctx, func(changed schema.ContextID) {
					registry.Invalidate(changed)
				})
				if err != nil {
					logger.Error("state watcher failed", "err", err)
				}
			}()
			return tui.Run(ctx, emu, opts)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&contextID, "context", "", "browsing context id")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file")
	cmd.Flags().Float64Var(&opts.CellWidth, "cell-width", 8, "css px per terminal column")
	cmd.Flags().Float64Var(&opts.CellHeight, "cell-height", 16, "css px per terminal row")
	cmd.Flags().Float64Var(&opts.FoldStep, "step", 8, "fold and shell size change per key press, in css px")
	return cmd
}
