/*
Copyright © 2026 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/blacktop/kextforge/internal/colors"
	"github.com/blacktop/kextforge/internal/commands/patch"
	"github.com/blacktop/kextforge/internal/utils"
	"github.com/blacktop/kextforge/pkg/probe"
	"github.com/blacktop/kextforge/pkg/report"
	"github.com/blacktop/kextforge/pkg/strategy"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(strategyCmd)
	strategyCmd.Flags().StringP("output", "o", "", "Where to write the patch config JSON ('-' for stdout only)")
	strategyCmd.Flags().Bool("json", false, "Print the patch config JSON")
	viper.BindPFlag("strategy.output", strategyCmd.Flags().Lookup("output"))
	viper.BindPFlag("strategy.json", strategyCmd.Flags().Lookup("json"))
}

// strategyCmd represents the strategy command
var strategyCmd = &cobra.Command{
	Use:     "strategy",
	Aliases: []string{"detect"},
	Short:   "Select the injection method for this system and write the patch config",
	Example: heredoc.Doc(`
		# Show the recommended method and write the patch config
		❯ kextforge strategy
		# Print the patch config only
		❯ kextforge strategy --json -o -`),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, cat, err := setup()
		if err != nil {
			return err
		}

		var snap probe.Snapshot
		spin("Probing system...", func() {
			snap = probe.New(newRunner(conf), cat, conf.Root).Probe(context.Background())
		})
		strat := strategy.Select(snap, cat)
		pc := report.New(snap, strat, cat)

		output := viper.GetString("strategy.output")
		if output == "" {
			output = filepath.Join(conf.Patch.ReportDir, patch.ConfigFile)
		}

		if viper.GetBool("strategy.json") {
			dat, err := pc.JSON()
			if err != nil {
				return err
			}
			if err := printJSON(dat); err != nil {
				return err
			}
		} else {
			v := snap.OSVersion()
			fmt.Printf("macOS Version: %s (Build %s)\n", v, v.Build)
			fmt.Printf("Recommended injection method: %s\n", colors.BoldHiBlue().Sprint(strat.Method))
			if len(strat.Warnings) > 0 {
				fmt.Println("\nWarnings:")
				for _, w := range strat.Warnings {
					fmt.Printf("  %s %s\n", colors.Warn(), w)
				}
			}
			fmt.Println("\nInjection Instructions:")
			for _, line := range pc.Instructions {
				fmt.Printf("  %s\n", line)
			}
		}

		switch {
		case output == "-":
		case viper.GetBool("dry-run"):
			log.Infof("Would write patch config to %s", output)
		default:
			if err := pc.WriteJSON(output); err != nil {
				return err
			}
			utils.Indent(log.Info, 1)(fmt.Sprintf("Patch configuration saved to %s", output))
		}
		return nil
	},
}
