package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"switchhatch/internal/journal"
)

func journalCmd(gf *globalFlags) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect recorded runs",
		Long:  `Inspect the SQLite run journal written by "switchhatch run".`,
	}
	cmd.PersistentFlags().StringVar(&path, "journal", "", "Run journal path (overrides config)")

	open := func(cmd *cobra.Command) (*journal.Store, error) {
		var o FlagOverrides
		if cmd.Flags().Changed("journal") {
			o.JournalPath = &path
		}
		cfg, err := loadConfig(gf, o)
		if err != nil {
			return nil, err
		}
		if cfg.Journal.Path == "" {
			return nil, errors.New("journal is disabled (journal.path is empty)")
		}
		p := ExpandPath(cfg.Journal.Path)
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
		return journal.Open(p)
	}

	cmd.AddCommand(journalListCmd(open))
	cmd.AddCommand(journalShowCmd(open))
	return cmd
}

type openJournal func(cmd *cobra.Command) (*journal.Store, error)

func journalListCmd(open openJournal) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}
			return printRuns(cmd.OutOrStdout(), runs)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show (0 = all)")
	return cmd
}

func journalShowCmd(open openJournal) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run's phase transitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Transitions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("%w: %s", journal.ErrRunNotFound, args[0])
			}
			return printTransitions(cmd.OutOrStdout(), entries)
		},
	}
}

func printRuns(out io.Writer, runs []journal.Run) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, color.New(color.Bold).Sprint("ID\tSTARTED\tSPECIES\tBOXES\tPERSIST\tOUTCOME\tDURATION"))
	for _, r := range runs {
		dur := "-"
		if !r.FinishedAt.IsZero() {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Species, r.Containers, r.Policy, outcomeColor(r.Outcome), dur)
	}
	return w.Flush()
}

func printTransitions(out io.Writer, entries []journal.Entry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, color.New(color.Bold).Sprint("SEQ\tTICK\tFROM\tTO\tBOXES\tEGGS\tGROUP\tAT"))
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%d\t%d\t%d\t%s\n",
			e.Seq, e.Tick, e.From, e.To,
			e.Counters.ContainersRemaining, e.Counters.ItemsRemaining, e.Counters.GroupSelector,
			e.At.Local().Format("15:04:05"))
	}
	return w.Flush()
}

func outcomeColor(outcome string) string {
	switch outcome {
	case journal.OutcomeDone:
		return color.New(color.FgGreen).Sprint(outcome)
	case journal.OutcomeFailed:
		return color.New(color.FgRed).Sprint(outcome)
	case journal.OutcomeStopped:
		return color.New(color.FgYellow).Sprint(outcome)
	default:
		return outcome
	}
}
