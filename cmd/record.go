package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/skilltune/internal/adaptive"
)

var recordCmd = &cobra.Command{
	Use:   "record <student> <game>",
	Short: "Record a finished game session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		in := adaptive.InteractionData{StudentID: args[0], GameID: args[1]}
		in.Score, _ = f.GetFloat64("score")
		in.TimeSpent, _ = f.GetFloat64("time")
		in.Difficulty, _ = f.GetFloat64("difficulty")
		in.QuestionsAnswered, _ = f.GetInt("questions")
		in.CorrectAnswers, _ = f.GetInt("correct")
		in.CompletedLevel, _ = f.GetInt("level")
		in.TotalLevels, _ = f.GetInt("levels")
		in.SkillsApplied, _ = f.GetStringSlice("skills")

		svc, _, closeAll, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeAll()

		res, err := svc.RecordInteraction(cmd.Context(), in)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "New difficulty: %.2f\n", res.NewDifficulty)
		for _, s := range res.SkillStates {
			fmt.Fprintf(out, "  %-20s pKnown %.3f\n", s.SkillID, s.PKnown)
		}
		return nil
	},
}

func init() {
	f := recordCmd.Flags()
	f.Float64("score", 0, "Score from 0 to 100")
	f.Float64("time", 0, "Seconds spent")
	f.Float64("difficulty", 0, "Difficulty the session was played at")
	f.Int("questions", 0, "Questions answered")
	f.Int("correct", 0, "Correct answers")
	f.Int("level", 0, "Levels completed")
	f.Int("levels", 0, "Total levels")
	f.StringSlice("skills", nil, "Skills applied (default: the game's skills)")
	recordCmd.MarkFlagRequired("score")
}
