package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/foldscreen/core"
	"pkt.systems/foldscreen/schema"
)

func newSegmentsCmd() *cobra.Command {
	var cfgPath string
	var contextID string
	var width, height float64
	var raw bool
	var flags patchFlags
	cmd := &cobra.Command{
		Use:   "segments",
		Short: "Print the window segments for a viewport",
		Long:  "Print the window segments for a viewport using the stored geometry of a context. --mode, --fold and --shell override stored values without writing them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, cfgPath)
			if err != nil {
				return err
			}
			id, err := contextFlag(cfg, contextID)
			if err != nil {
				return err
			}
			settings, err := schema.NormalizeEmulatorConfig(cfg.EmulatorSettings())
			if err != nil {
				return err
			}
			viewport := settings.DefaultViewport
			if cmd.Flags().Changed("width") {
				viewport.Width = width
			}
			if cmd.Flags().Changed("height") {
				viewport.Height = height
			}
			if viewport.Width < 0 || viewport.Height < 0 {
				return fmt.Errorf("%w: viewport must not be negative", schema.ErrInvalidArgument)
			}
			stored, err := openState(cmd.Context(), cfg, id)
			if err != nil {
				return err
			}
			state, err := overrideState(stored.Snapshot(), flags.patch(cmd))
			if err != nil {
				return err
			}
			segments := core.Segments(viewport, state)
			if !raw {
				segments = core.WindowSegments(segments)
			}
			return writeJSON(cmd.OutOrStdout(), schema.SegmentsResponse{
				ContextID: id,
				Viewport:  viewport,
				Segments:  segments,
			})
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&contextID, "context", "", "browsing context id")
	cmd.Flags().Float64Var(&width, "width", 0, "viewport width in css px (default from config)")
	cmd.Flags().Float64Var(&height, "height", 0, "viewport height in css px (default from config)")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the raw derivation instead of the window-level result")
	flags.register(cmd)
	return cmd
}

func overrideState(state schema.State, patch schema.StatePatch) (schema.State, error) {
	if patch.SpanningMode != nil {
		mode, err := schema.ParseSpanningMode(*patch.SpanningMode)
		if err != nil {
			return schema.State{}, err
		}
		state.SpanningMode = mode
	}
	if patch.FoldSize != nil {
		size, err := schema.ParseSize(patch.FoldSize)
		if err != nil {
			return schema.State{}, fmt.Errorf("fold: %w", err)
		}
		state.FoldSize = size
	}
	if patch.BrowserShellSize != nil {
		size, err := schema.ParseSize(patch.BrowserShellSize)
		if err != nil {
			return schema.State{}, fmt.Errorf("shell: %w", err)
		}
		state.BrowserShellSize = size
	}
	return state, nil
}
