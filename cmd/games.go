package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/skilltune/internal/practice"
	"github.com/abhisek/skilltune/internal/skillmap"
)

var gamesCmd = &cobra.Command{
	Use:   "games",
	Short: "List games, their skills and BKT parameters",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		games := skillmap.AllGames()

		fmt.Fprintf(out, "%-15s  %-15s  %-8s  %s\n", "ID", "Name", "Practice", "Skills")
		fmt.Fprintln(out, strings.Repeat("─", 80))
		for _, g := range games {
			drill := ""
			if len(practice.Supported(g.Skills)) > 0 {
				drill = "yes"
			}
			fmt.Fprintf(out, "%-15s  %-15s  %-8s  %s\n", g.ID, g.Name, drill, strings.Join(g.Skills, ", "))
		}

		if params, _ := cmd.Flags().GetBool("params"); params {
			fmt.Fprintf(out, "\n%-20s  %5s  %5s  %5s  %5s\n", "Skill", "pL0", "pT", "pS", "pG")
			fmt.Fprintln(out, strings.Repeat("─", 50))
			for _, id := range skillmap.AllSkills() {
				p := skillmap.Params(id)
				fmt.Fprintf(out, "%-20s  %5.2f  %5.2f  %5.2f  %5.2f\n", id, p.PL0, p.PT, p.PS, p.PG)
			}
		}

		fmt.Fprintf(out, "\n%d games\n", len(games))
		return nil
	},
}

func init() {
	gamesCmd.Flags().Bool("params", false, "Also print the BKT parameters of every skill")
}
