package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var answerCmd = &cobra.Command{
	Use:   "answer <student> <skill> <correct|wrong>",
	Short: "Record one answer and update the knowledge state",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var correct bool
		switch args[2] {
		case "correct", "right", "1", "true":
			correct = true
		case "wrong", "incorrect", "0", "false":
		default:
			return fmt.Errorf("answer must be correct or wrong, got %q", args[2])
		}

		svc, _, closeAll, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeAll()

		before := svc.GetKnowledgeState(cmd.Context(), args[0], args[1])
		after := svc.UpdateKnowledge(cmd.Context(), args[0], args[1], correct)
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: pKnown %.3f → %.3f (%d answers)\n",
			args[0], args[1], before.PKnown, after.PKnown, len(after.Observations))
		return nil
	},
}
