package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/harunnryd/yakusoku/internal/agreement"
	"github.com/harunnryd/yakusoku/internal/dialogue"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/spf13/cobra"
)

var agreementsCmd = &cobra.Command{
	Use:   "agreements",
	Short: "Inspect stored agreements",
	Long:  `List active agreements and browse the historical record.`,
}

var agreementsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List active agreements",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := agreement.NewStore(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open agreement store: %w", err)
		}

		active, err := store.GetActive()
		if err != nil {
			return fmt.Errorf("load active agreements: %w", err)
		}

		if len(active) == 0 {
			fmt.Println("No active agreements.")
			return nil
		}

		fmt.Println(renderAgreements(active, time.Now()))
		fmt.Printf("\nTotal: %d active agreement(s)\n", len(active))
		return nil
	},
}

var agreementsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show agreements in a date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		fromStr, _ := cmd.Flags().GetString("from")
		toStr, _ := cmd.Flags().GetString("to")

		now := time.Now()
		from := now.AddDate(0, 0, -7)
		to := now

		var err error
		if fromStr != "" {
			if from, err = parseDay(fromStr); err != nil {
				return fmt.Errorf("parse --from: %w", err)
			}
		}
		if toStr != "" {
			if to, err = parseDay(toStr); err != nil {
				return fmt.Errorf("parse --to: %w", err)
			}
			// Make --to inclusive of the named day.
			to = to.AddDate(0, 0, 1)
		}

		store, err := agreement.NewStore(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open agreement store: %w", err)
		}

		records, err := store.GetByDateRange(subject, from, to)
		if err != nil {
			return fmt.Errorf("load agreement history: %w", err)
		}

		if len(records) == 0 {
			fmt.Println("No agreements in range.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tSUBJECT\tCATEGORY\tDURATION\tSTATUS\tCREATED")
		for _, a := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				a.ID,
				subjectLabel(a),
				a.Category,
				dialogue.FormatDuration(a.AgreedDuration),
				a.Status,
				a.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("write output: %w", err)
		}

		fmt.Printf("\nTotal: %d agreement(s)\n", len(records))
		return nil
	},
}

var agreementsExtendCmd = &cobra.Command{
	Use:   "extend [id] [duration]",
	Short: "Extend an agreement with a successor",
	Long:  `Creates a new agreement chained to the given one. The original is never mutated.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := time.ParseDuration(args[1])
		if err != nil {
			return fmt.Errorf("parse duration: %w", err)
		}

		store, err := agreement.NewStore(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open agreement store: %w", err)
		}

		successor, err := store.Extend(args[0], d, time.Now())
		if err != nil {
			return fmt.Errorf("extend agreement: %w", err)
		}

		fmt.Printf("Agreement %s extended by %s, successor %s expires at %s.\n",
			args[0],
			dialogue.FormatDuration(d),
			successor.ID,
			successor.ExpiresAt.Format("15:04:05"))
		return nil
	},
}

func renderAgreements(list []*agreement.Agreement, now time.Time) string {
	purple := lipgloss.Color("99")

	headerStyle := lipgloss.NewStyle().Foreground(purple).Bold(true).Align(lipgloss.Center).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	statusStyles := map[agreement.Status]lipgloss.Style{
		agreement.StatusActive:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Padding(0, 1),
		agreement.StatusCompleted: lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1),
		agreement.StatusViolated:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Padding(0, 1),
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(purple)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 4 {
				if style, ok := statusStyles[list[row].Status]; ok {
					return style
				}
			}
			return cellStyle
		}).
		Headers("ID", "SUBJECT", "CATEGORY", "REMAINING", "STATUS")

	for _, a := range list {
		remaining := a.Remaining(now)
		remainingLabel := dialogue.FormatDuration(remaining)
		if remaining <= 0 {
			remainingLabel = "expired"
		}

		t.Row(
			a.ID,
			subjectLabel(a),
			a.Category,
			remainingLabel,
			string(a.Status),
		)
	}

	return t.String()
}

func subjectLabel(a *agreement.Agreement) string {
	if a.SubjectKey == "" {
		return "(general)"
	}
	return a.SubjectKey
}

func parseDay(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func init() {
	agreementsCmd.AddCommand(agreementsLsCmd)
	agreementsCmd.AddCommand(agreementsHistoryCmd)
	agreementsCmd.AddCommand(agreementsExtendCmd)
	agreementsHistoryCmd.Flags().String("from", "", "start of range (YYYY-MM-DD or RFC3339), default 7 days ago")
	agreementsHistoryCmd.Flags().String("to", "", "end of range (YYYY-MM-DD, inclusive), default now")
	agreementsHistoryCmd.Flags().StringP("subject", "s", "", "filter by subject key")
	rootCmd.AddCommand(agreementsCmd)
}
