package main

import (
	"errors"

	"github.com/spf13/cobra"

	"pkt.systems/foldscreen/internal/sessionstore"
	"pkt.systems/foldscreen/schema"
	"pkt.systems/pslog"
)

func newStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Read or change the persisted geometry of a context",
	}
	cmd.AddCommand(newStateGetCmd())
	cmd.AddCommand(newStateSetCmd())
	cmd.AddCommand(newStateListCmd())
	return cmd
}

func newStateListCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contexts with persisted geometry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, cfgPath)
			if err != nil {
				return err
			}
			store, err := sessionstore.NewFileStoreWithLogger(cfg.StateDir, pslog.Ctx(cmd.Context()))
			if err != nil {
				return err
			}
			ids, err := store.Contexts()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), schema.ListContextsResponse{Contexts: ids})
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}

func newStateGetCmd() *cobra.Command {
	var cfgPath string
	var contextID string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the stored geometry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, cfgPath)
			if err != nil {
				return err
			}
			id, err := contextFlag(cfg, contextID)
			if err != nil {
				return err
			}
			state, err := openState(cmd.Context(), cfg, id)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), schema.StateResponse{
				ContextID: id,
				State:     state.Snapshot(),
			})
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&contextID, "context", "", "browsing context id")
	return cmd
}

func newStateSetCmd() *cobra.Command {
	var cfgPath string
	var contextID string
	var flags patchFlags
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change the stored geometry",
		Long:  "Change the stored geometry. A running server that watches the state directory notifies its pages.",
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := flags.patch(cmd)
			if patch.Empty() {
				return errors.New("nothing to set: use --mode, --fold or --shell")
			}
			cfg, err := loadConfig(cmd, cfgPath)
			if err != nil {
				return err
			}
			id, err := contextFlag(cfg, contextID)
			if err != nil {
				return err
			}
			state, err := openState(cmd.Context(), cfg, id)
			if err != nil {
				return err
			}
			if err := state.Apply(patch); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), schema.StateResponse{
				ContextID: id,
				State:     state.Snapshot(),
			})
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&contextID, "context", "", "browsing context id")
	flags.register(cmd)
	return cmd
}
