package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"switchhatch/internal/sequencer"
)

// simulateResult summarises an offline run.
type simulateResult struct {
	Ticks       uint64
	PhaseTicks  uint64
	Transitions int
	Saves       int
	Final       sequencer.Counters
}

// errTickLimit means the run did not reach done within the tick budget.
var errTickLimit = errors.New("tick limit reached before done")

func simulateCmd(gf *globalFlags) *cobra.Command {
	var (
		rf       runFlags
		quiet    bool
		maxTicks uint64
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the procedure offline and print the phase trace",
		Long: `Simulate ticks a fresh state machine with the configured script and species
until the run is done, printing every phase transition, then the report count
and how long the run would take at the configured polling rate.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var o FlagOverrides
			rf.overrides(cmd.Flags(), &o)

			cfg, err := loadConfig(gf, o)
			if err != nil {
				return err
			}
			m, tbl, err := cfg.NewMachine()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if sp, ok := tbl.Species(cfg.Run.Species); ok {
				fmt.Fprintf(out, "Simulating %s (#%d), %d box(es), persist=%s\n\n",
					color.New(color.Bold).Sprint(sp.Name), sp.Dex, cfg.Run.Containers, cfg.Run.Persist)
			}

			var trace io.Writer = out
			if quiet {
				trace = io.Discard
			}
			res, err := simulate(m, trace, maxTicks)
			if err != nil {
				return err
			}

			hz := cfg.Transport.SimHz
			if hz <= 0 {
				hz = defaultSimHz
			}
			wall := estimatedWallTime(res.Ticks, hz)
			fmt.Fprintln(out)
			fmt.Fprintf(out, "%s %d reports (%d phase ticks), %d transitions, %d save(s)\n",
				color.New(color.FgGreen).Sprint("✓ done:"), res.Ticks, res.PhaseTicks, res.Transitions, res.Saves)
			fmt.Fprintf(out, "  estimated wall time at %d Hz: %s\n", hz, wall.Round(time.Second))
			fmt.Fprintf(out, "  final counters: containers=%d items=%d group=%d hold=%d\n",
				res.Final.ContainersRemaining, res.Final.ItemsRemaining, res.Final.GroupSelector, res.Final.CalibratedHold)
			return nil
		},
	}
	rf.register(cmd.Flags())
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only print the summary")
	cmd.Flags().Uint64Var(&maxTicks, "max-ticks", 100_000_000, "Give up after this many reports")
	return cmd
}

// estimatedWallTime is how long ticks reports take at hz polls per second.
// A non-positive hz is treated as the default polling rate.
func estimatedWallTime(ticks uint64, hz int) time.Duration {
	if hz <= 0 {
		hz = defaultSimHz
	}
	return time.Duration(ticks) * time.Second / time.Duration(hz)
}

// simulate ticks m until it is done, writing one line per transition to w.
func simulate(m *sequencer.Machine, w io.Writer, maxTicks uint64) (simulateResult, error) {
	var res simulateResult

	tickColor := color.New(color.FgHiBlack)
	phaseColor := color.New(color.FgCyan)
	countColor := color.New(color.FgYellow)

	for !m.Done() {
		if maxTicks > 0 && m.Snapshot().Ticks >= maxTicks {
			return res, fmt.Errorf("%w (%d)", errTickLimit, maxTicks)
		}
		tr, err := m.Tick()
		if err != nil {
			return res, err
		}
		t := tr.Transition
		if t == nil {
			continue
		}
		res.Transitions++
		if t.To == sequencer.PhaseSave {
			res.Saves++
		}
		fmt.Fprintf(w, "%s %s -> %s  %s\n",
			tickColor.Sprintf("%10d", t.Tick),
			phaseColor.Sprintf("%-16s", t.From),
			phaseColor.Sprintf("%-16s", t.To),
			countColor.Sprintf("containers=%d items=%d group=%d",
				t.Counters.ContainersRemaining, t.Counters.ItemsRemaining, t.Counters.GroupSelector),
		)
	}

	snap := m.Snapshot()
	res.Ticks = snap.Ticks
	res.PhaseTicks = snap.PhaseTicks
	res.Final = snap.Counters
	return res, nil
}
