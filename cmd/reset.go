package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear all cached knowledge states",
	Long:  "Clear every knowledge state held in memory and in the offline cache.\nThe remote store is not touched.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return errors.New("refusing to reset without --yes")
		}
		svc, _, closeAll, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeAll()

		if err := svc.ResetAllKnowledgeStates(cmd.Context()); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Knowledge states cleared.")
		return nil
	},
}

func init() {
	resetCmd.Flags().Bool("yes", false, "Confirm the reset")
}
