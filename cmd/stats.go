package cmd

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/spf13/cobra"

	"github.com/abhisek/skilltune/internal/llm"
	"github.com/abhisek/skilltune/internal/store"
	"github.com/abhisek/skilltune/internal/ui/theme"
)

// statsLLMWindow is how many recent LLM requests the usage summary covers.
const statsLLMWindow = 1000

var statsCmd = &cobra.Command{
	Use:   "stats <student>",
	Short: "Show learning statistics from the offline cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		out := cmd.OutOrStdout()
		student := args[0]

		states, err := st.ListKnowledge(ctx, student)
		if err != nil {
			return fmt.Errorf("list knowledge: %w", err)
		}
		fmt.Fprintln(out, theme.Title.Render("Skills"))
		if len(states) == 0 {
			fmt.Fprintln(out, "No knowledge states cached.")
		} else {
			rows := make([][]string, 0, len(states))
			for _, s := range states {
				accuracy := "-"
				if n := len(s.Observations); n > 0 {
					accuracy = fmt.Sprintf("%.0f%%", 100*float64(s.Correct())/float64(n))
				}
				rows = append(rows, []string{s.SkillID, fmt.Sprintf("%.3f", s.PKnown), strconv.Itoa(len(s.Observations)), accuracy})
			}
			fmt.Fprintln(out, renderTable([]string{"Skill", "pKnown", "Answers", "Accuracy"}, rows))
		}

		records, err := st.ListPerformance(ctx, student)
		if err != nil {
			return fmt.Errorf("list performance: %w", err)
		}
		fmt.Fprintln(out, theme.Title.Render("Games"))
		if len(records) == 0 {
			fmt.Fprintln(out, "No game sessions cached.")
		} else {
			games := make([]string, 0, len(records))
			for g := range records {
				games = append(games, g)
			}
			slices.Sort(games)
			rows := make([][]string, 0, len(games))
			for _, g := range games {
				rec := records[g]
				avg := "-"
				if scores := rec.Scores(); len(scores) > 0 {
					var sum float64
					for _, s := range scores {
						sum += s
					}
					avg = fmt.Sprintf("%.0f%%", 100*sum/float64(len(scores)))
				}
				rows = append(rows, []string{g, strconv.Itoa(len(rec.Interactions)), avg, fmt.Sprintf("%.2f", rec.CurrentDifficulty)})
			}
			fmt.Fprintln(out, renderTable([]string{"Game", "Sessions", "Avg score", "Difficulty"}, rows))
		}

		if n, err := st.CountUnsynced(ctx); err == nil && n > 0 {
			fmt.Fprintf(out, "%d knowledge states waiting to sync\n", n)
		}
		return printLLMUsage(cmd, out, st.EventRepo())
	},
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.Border)).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(theme.Primary).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

// printLLMUsage summarizes recent coach requests and their estimated cost.
func printLLMUsage(cmd *cobra.Command, out io.Writer, repo store.EventRepo) error {
	events, err := repo.RecentLLMRequests(cmd.Context(), statsLLMWindow)
	if err != nil {
		return fmt.Errorf("query llm requests: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	var in, outTok, failed int
	var cost float64
	unpriced := map[string]bool{}
	for _, e := range events {
		in += e.InputTokens
		outTok += e.OutputTokens
		if !e.Success {
			failed++
		}
		if c, ok := llm.LookupCost(e.Model); ok {
			cost += c.Cost(e.InputTokens, e.OutputTokens)
		} else {
			unpriced[e.Model] = true
		}
	}

	fmt.Fprintln(out, theme.Title.Render("Coach"))
	fmt.Fprintf(out, "%d requests (%d failed), %d in / %d out tokens, ~$%.4f\n",
		len(events), failed, in, outTok, cost)
	if len(unpriced) > 0 {
		fmt.Fprintf(out, "%d models without pricing were not counted\n", len(unpriced))
	}
	return nil
}
