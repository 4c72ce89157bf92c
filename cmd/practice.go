package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/abhisek/skilltune/internal/practice"
)

var practiceCmd = &cobra.Command{
	Use:   "practice <student> <game>",
	Short: "Play a short drill in the terminal",
	Long: "Play a drill of generated questions for a game. Difficulty is tuned\n" +
		"after every answer and the session is recorded when it ends.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		questions, _ := cmd.Flags().GetInt("questions")

		// Log lines would tear the full-screen view.
		log.SetOutput(io.Discard)

		svc, _, closeAll, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeAll()

		sum, err := practice.Run(cmd.Context(), svc, practice.Config{
			StudentID: args[0],
			GameID:    args[1],
			Questions: questions,
		})
		if err != nil {
			return err
		}
		if sum.Err != nil {
			return fmt.Errorf("record session: %w", sum.Err)
		}
		if sum.Asked == 0 {
			return nil
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d of %d correct. Started at %.2f (%s), next session %.2f.\n",
			sum.Correct, sum.Asked, sum.Start.Difficulty, sum.Start.Source, sum.NewDifficulty)
		for _, s := range sum.SkillStates {
			fmt.Fprintf(out, "  %-20s pKnown %.3f\n", s.SkillID, s.PKnown)
		}
		return nil
	},
}

func init() {
	practiceCmd.Flags().Int("questions", practice.DefaultQuestions, "Number of questions")
}
