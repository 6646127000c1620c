package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/foldscreen/core"
	"pkt.systems/foldscreen/internal/appconfig"
	"pkt.systems/foldscreen/internal/sessionstore"
	"pkt.systems/foldscreen/schema"
	"pkt.systems/pslog"
)

// loadConfig loads the config file and, unless the environment already
// configures logging, swaps the command logger for one built from it.
func loadConfig(cmd *cobra.Command, path string) (appconfig.Config, error) {
	cfg, err := appconfig.Load(path)
	if err != nil {
		return appconfig.Config{}, err
	}
	if envConfiguresLogging() {
		return cfg, nil
	}
	logger, err := loggerFromConfig(cmd.ErrOrStderr(), cfg.Logging)
	if err != nil {
		return appconfig.Config{}, err
	}
	cmd.SetContext(pslog.ContextWithLogger(cmd.Context(), logger))
	return cfg, nil
}

func envConfiguresLogging() bool {
	for _, key := range []string{"LOG_LEVEL", "LOG_MODE"} {
		if strings.TrimSpace(os.Getenv(key)) != "" {
			return true
		}
	}
	return false
}

func loggerFromConfig(w io.Writer, cfg appconfig.LoggingConfig) (pslog.Logger, error) {
	opts := pslog.Options{Mode: pslog.ModeConsole, NoColor: cfg.DisableColors}
	if cfg.Structured {
		opts.Mode = pslog.ModeStructured
		opts.NoColor = true
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Level)) {
	case "trace":
		opts.MinLevel = pslog.TraceLevel
	case "debug":
		opts.MinLevel = pslog.DebugLevel
	case "", "info":
		opts.MinLevel = pslog.InfoLevel
	case "warn", "warning":
		opts.MinLevel = pslog.WarnLevel
	case "error":
		opts.MinLevel = pslog.ErrorLevel
	default:
		return nil, fmt.Errorf("unknown logging.level %q", cfg.Level)
	}
	return pslog.NewWithOptions(w, opts), nil
}

func contextFlag(cfg appconfig.Config, value string) (schema.ContextID, error) {
	id := schema.ContextID(strings.TrimSpace(value))
	if id == "" {
		id = schema.ContextID(cfg.Emulator.DefaultContext)
	}
	if id == "" {
		id = schema.DefaultContextID
	}
	if err := schema.ValidateContextID(id); err != nil {
		return "", err
	}
	return id, nil
}

// openState opens the persisted geometry of one context without starting an
// emulator. Writes from here reach running servers through the state watcher.
func openState(ctx context.Context, cfg appconfig.Config, id schema.ContextID) (*core.GeometryState, error) {
	store, err := sessionstore.NewFileStoreWithLogger(cfg.StateDir, pslog.Ctx(ctx))
	if err != nil {
		return nil, err
	}
	bucket, err := store.Bucket(id)
	if err != nil {
		return nil, err
	}
	settings, err := schema.NormalizeEmulatorConfig(cfg.EmulatorSettings())
	if err != nil {
		return nil, err
	}
	return core.NewGeometryState(bucket, settings.Namespace, nil), nil
}

// patchFlags holds the geometry flags shared by several commands.
type patchFlags struct {
	mode  string
	fold  string
	shell string
}

func (p *patchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.mode, "mode", "", "spanning mode (none, single-fold-horizontal, single-fold-vertical)")
	cmd.Flags().StringVar(&p.fold, "fold", "", "fold size in css px")
	cmd.Flags().StringVar(&p.shell, "shell", "", "browser shell size in css px")
}

func (p *patchFlags) patch(cmd *cobra.Command) schema.StatePatch {
	var patch schema.StatePatch
	if cmd.Flags().Changed("mode") {
		mode := p.mode
		patch.SpanningMode = &mode
	}
	if cmd.Flags().Changed("fold") {
		patch.FoldSize = p.fold
	}
	if cmd.Flags().Changed("shell") {
		patch.BrowserShellSize = p.shell
	}
	return patch
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
