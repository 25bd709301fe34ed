package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func ctlCmd(gf *globalFlags) *cobra.Command {
	var socket string

	cmd := &cobra.Command{
		Use:   "ctl",
		Short: "Control a running daemon over its IPC socket",
	}
	cmd.PersistentFlags().StringVar(&socket, "socket", "", "IPC socket path (overrides config)")

	socketPath := func(cmd *cobra.Command) (string, error) {
		var o FlagOverrides
		if cmd.Flags().Changed("socket") {
			o.IPCSocketPath = &socket
		}
		cfg, err := loadConfig(gf, o)
		if err != nil {
			return "", err
		}
		return cfg.IPC.SocketPath, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the run status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := socketPath(cmd)
			if err != nil {
				return err
			}
			data, err := SendIPCEvent(path, RequestStatus{})
			if err != nil {
				return err
			}
			var snap StatusSnapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return fmt.Errorf("decode status: %w", err)
			}
			return printStatus(cmd.OutOrStdout(), snap)
		},
	})

	var reason string
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the run (hard abort) or silence a finished run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := socketPath(cmd)
			if err != nil {
				return err
			}
			if _, err := SendIPCEvent(path, StopRun{Reason: reason}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.New(color.FgGreen).Sprint("✓"), "stop requested")
			return nil
		},
	}
	stopCmd.Flags().StringVar(&reason, "reason", "ctl", "Reason recorded in the daemon log")
	cmd.AddCommand(stopCmd)

	return cmd
}

func printStatus(out io.Writer, s StatusSnapshot) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Run:\t%s\n", s.RunID)
	fmt.Fprintf(w, "Status:\t%s\n", outcomeColor(s.Status))
	fmt.Fprintf(w, "Species:\t#%d\n", s.Species)
	fmt.Fprintf(w, "Phase:\t%s\n", s.Phase)
	fmt.Fprintf(w, "Boxes left:\t%d of %d\n", s.Counters.ContainersRemaining, s.Containers)
	fmt.Fprintf(w, "Eggs left:\t%d\n", s.Counters.ItemsRemaining)
	fmt.Fprintf(w, "Group:\t%d\n", s.Counters.GroupSelector)
	fmt.Fprintf(w, "Ticks:\t%d (%d phase)\n", s.Ticks, s.PhaseTicks)
	fmt.Fprintf(w, "Transitions:\t%d\n", s.Transitions)
	fmt.Fprintf(w, "Started:\t%s\n", s.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if s.FinishedAt != nil {
		fmt.Fprintf(w, "Finished:\t%s\n", s.FinishedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if s.Error != "" {
		fmt.Fprintf(w, "Error:\t%s\n", color.New(color.FgRed).Sprint(s.Error))
	}
	return w.Flush()
}
