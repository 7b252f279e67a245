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
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/blacktop/kextforge/internal/colors"
	"github.com/blacktop/kextforge/pkg/probe"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().Bool("json", false, "Output as JSON")
	viper.BindPFlag("probe.json", probeCmd.Flags().Lookup("json"))
}

// probeCmd represents the probe command
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Report OS version, SIP state, WLAN hardware and loaded kexts",
	Example: heredoc.Doc(`
		# Probe the running system
		❯ kextforge probe
		# Probe an offline system volume
		❯ kextforge probe --root /Volumes/Macintosh\ HD --json`),
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

		if viper.GetBool("probe.json") {
			dat, err := jsonIndent(snap.JSON())
			if err != nil {
				return err
			}
			return printJSON(dat)
		}

		v := snap.OSVersion()
		if v.IsZero() {
			fmt.Printf("macOS Version:  %s\n", colors.BoldRed().Sprint("unknown"))
		} else {
			fmt.Printf("macOS Version:  %s (Build %s)\n", v, v.Build)
		}
		fmt.Printf("macOS 26:       %s\n", colors.Status(v.AtLeast(cat.Companion.MinimumOS)))
		fmt.Printf("Architecture:   %s\n", snap.Arch())
		fmt.Printf("SIP Enabled:    %t\n", snap.SIPEnabled())
		fmt.Printf("Kext Signing:   %t\n", snap.KextSigningRequired())
		fmt.Printf("Hardware:       %s\n", colors.FaintHiCyan().Sprint(strings.Join(snap.Hardware(), ", ")))
		fmt.Println("Kexts:")
		for _, id := range cat.RequiredKexts {
			fmt.Printf("  %s %s\n", colors.Status(snap.HasKext(id)), id)
		}
		return nil
	},
}
