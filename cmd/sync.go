package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/skilltune/internal/adaptive"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push knowledge states saved while offline",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, st, closeAll, err := openService(ctx)
		if err != nil {
			return err
		}
		defer closeAll()

		res, err := svc.SyncOfflineStates(ctx)
		if errors.Is(err, adaptive.ErrNoRemote) {
			return fmt.Errorf("sync needs remote mode: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Synced %d of %d states (%d failed)\n", res.Synced, res.Total, res.Failed)
		if n, cerr := st.CountUnsynced(ctx); cerr == nil && n > 0 {
			fmt.Fprintf(out, "%d states still waiting\n", n)
		}
		return err
	},
}
