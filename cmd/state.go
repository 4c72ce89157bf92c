package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/skilltune/internal/bkt"
)

var stateCmd = &cobra.Command{
	Use:   "state <student> [skill]",
	Short: "Show knowledge states",
	Long:  "Show one knowledge state, or every state cached locally for a student.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			states, err := st.ListKnowledge(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("list knowledge: %w", err)
			}
			if asJSON {
				return writeJSON(out, states)
			}
			if len(states) == 0 {
				fmt.Fprintf(out, "No knowledge states cached for %s.\n", args[0])
				return nil
			}
			printStates(out, states)
			return nil
		}

		svc, _, closeAll, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeAll()

		ks := svc.GetKnowledgeState(cmd.Context(), args[0], args[1])
		if asJSON {
			return writeJSON(out, ks)
		}
		printStates(out, []bkt.KnowledgeState{ks})
		return nil
	},
}

func init() {
	stateCmd.Flags().Bool("json", false, "Print JSON")
}

func printStates(w io.Writer, states []bkt.KnowledgeState) {
	fmt.Fprintf(w, "%-20s  %7s  %8s  %8s  %s\n", "Skill", "pKnown", "Answers", "Correct", "Last updated")
	fmt.Fprintln(w, strings.Repeat("─", 70))
	for _, s := range states {
		fmt.Fprintf(w, "%-20s  %7.3f  %8d  %8d  %s\n",
			s.SkillID, s.PKnown, len(s.Observations), s.Correct(),
			s.LastUpdated.Local().Format("2006-01-02 15:04:05"))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
