package main

import (
	"errors"

	"github.com/spf13/cobra"

	"pkt.systems/foldscreen/internal/browserprobe"
	"pkt.systems/foldscreen/schema"
)

func newProbeCmd() *cobra.Command {
	var cfgPath string
	var pageURL string
	var width, height float64
	var flags patchFlags
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Load a page in headless Chrome and print the geometry it sees",
		Long:  "Load a page that includes the foldscreen shim in headless Chrome and print the viewport, state and window segments it reports. --mode, --fold and --shell are posted to the page as an update message first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, cfgPath)
			if err != nil {
				return err
			}
			if pageURL == "" {
				pageURL = serverURL(cfg) + "/"
			}
			if width <= 0 || height <= 0 {
				return errors.New("--width and --height must be positive")
			}
			opts := browserprobe.Options{
				URL:        pageURL,
				Viewport:   schema.Viewport{Width: width, Height: height},
				ChromePath: cfg.Probe.ChromePath,
				Timeout:    cfg.ProbeTimeout(),
			}
			if patch := flags.patch(cmd); !patch.Empty() {
				opts.Update = &patch
			}
			result, err := browserprobe.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&pageURL, "url", "", "page url (default: the demo page of the configured server)")
	cmd.Flags().Float64Var(&width, "width", 800, "viewport width in css px")
	cmd.Flags().Float64Var(&height, "height", 600, "viewport height in css px")
	flags.register(cmd)
	return cmd
}
