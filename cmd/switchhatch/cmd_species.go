package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"switchhatch/internal/sequencer"
)

func speciesCmd(gf *globalFlags) *cobra.Command {
	var speciesFile string

	cmd := &cobra.Command{
		Use:   "species",
		Short: "List the species timing table",
		Long: `List every species in the timing table with its base egg cycles and the
calibrated hold (in ticks) used by the hatching circle, with and without a
hatch-halving party member.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var o FlagOverrides
			if cmd.Flags().Changed("species-file") {
				o.SpeciesFile = &speciesFile
			}
			cfg, err := loadConfig(gf, o)
			if err != nil {
				return err
			}
			_, tbl, err := cfg.LoadScript()
			if err != nil {
				return err
			}

			header := color.New(color.Bold)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, header.Sprint("DEX\tNAME\tBASE CYCLES\tHOLD\tHOLD (HALVED)"))
			for _, sp := range tbl.All() {
				name := sp.Name
				if sp.Dex == cfg.Run.Species {
					name = color.New(color.FgGreen).Sprint(name + " *")
				}
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\n",
					sp.Dex, name, sp.BaseCycles,
					sequencer.CalibratedHold(sp.BaseCycles, false),
					sequencer.CalibratedHold(sp.BaseCycles, true),
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&speciesFile, "species-file", "", "YAML species timing table (default: built in)")
	return cmd
}
