package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var difficultyCmd = &cobra.Command{
	Use:   "difficulty <student> <game>",
	Short: "Show or set the difficulty of a game",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, _, closeAll, err := openService(ctx)
		if err != nil {
			return err
		}
		defer closeAll()

		out := cmd.OutOrStdout()
		student, game := args[0], args[1]

		if cmd.Flags().Changed("set") {
			v, _ := cmd.Flags().GetFloat64("set")
			applied := svc.UpdateDifficultySettings(ctx, student, game, v)
			fmt.Fprintf(out, "%s %s: difficulty set to %.2f\n", student, game, applied)
			return nil
		}

		start := svc.StartSession(ctx, student, game)
		fmt.Fprintf(out, "Next session:  %.2f (%s, %d interactions)\n", start.Difficulty, start.Source, start.Interactions)
		fmt.Fprintf(out, "Adaptive:      %.2f\n", svc.GetAdaptiveDifficulty(ctx, student, game))
		fmt.Fprintf(out, "From skills:   %.2f\n", svc.SkillDifficulty(ctx, student, game))
		for _, s := range start.Skills {
			fmt.Fprintf(out, "  %-20s pKnown %.3f\n", s.SkillID, s.PKnown)
		}
		return nil
	},
}

func init() {
	difficultyCmd.Flags().Float64("set", 0, "Set the difficulty (clamped to 0.1-0.9)")
}
