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
	"errors"
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/alecthomas/chroma/v2/quick"
	"github.com/apex/log"
	"github.com/blacktop/kextforge/internal/colors"
	"github.com/blacktop/kextforge/internal/commands/patch"
	"github.com/blacktop/kextforge/internal/utils"
	"github.com/caarlos0/ctrlc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(patchCmd)
	patchCmd.Flags().BoolP("force", "f", false, "Continue past OS version and tool checks")
	patchCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	patchCmd.Flags().Bool("skip-caches", false, "Do not rebuild the kext and dyld caches")
	patchCmd.Flags().Bool("framework", false, "Also install the companion framework")
	patchCmd.Flags().String("backup-dir", "", "Where to back up replaced components")
	patchCmd.Flags().String("report-dir", "", "Where to write the JSON config and text report")
	patchCmd.Flags().String("minimum-os", "", "Minimum macOS version to patch")
	viper.BindPFlag("patch.force", patchCmd.Flags().Lookup("force"))
	viper.BindPFlag("patch.yes", patchCmd.Flags().Lookup("yes"))
	viper.BindPFlag("patch.skip-caches", patchCmd.Flags().Lookup("skip-caches"))
	viper.BindPFlag("patch.framework", patchCmd.Flags().Lookup("framework"))
	viper.BindPFlag("patch.backup-dir", patchCmd.Flags().Lookup("backup-dir"))
	viper.BindPFlag("patch.report-dir", patchCmd.Flags().Lookup("report-dir"))
	viper.BindPFlag("patch.minimum-os", patchCmd.Flags().Lookup("minimum-os"))
}

// patchCmd represents the patch command
var patchCmd = &cobra.Command{
	Use:   "patch",
	Short: "Back up, install and verify the companion kext",
	Example: heredoc.Doc(`
		# See what would change
		❯ kextforge patch --dry-run
		# Install, including the framework, without prompting
		❯ sudo kextforge patch --framework -y`),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, cat, err := setup()
		if err != nil {
			return err
		}

		dryRun := viper.GetBool("dry-run")

		p := patch.New(newRunner(conf), cat, patch.Config{
			Root:       conf.Root,
			BackupDir:  conf.Patch.BackupDir,
			ReportDir:  conf.Patch.ReportDir,
			DryRun:     dryRun,
			Force:      viper.GetBool("patch.force"),
			SkipCaches: conf.Patch.SkipCaches,
			Framework:  conf.Patch.Framework,
			MinimumOS:  conf.Patch.MinimumOS,
		})

		if !dryRun && !viper.GetBool("patch.yes") && utils.StdinIsTerminal() {
			proceed := false
			prompt := &survey.Confirm{
				Message: fmt.Sprintf("Install %s into %s?", cat.Companion.Name, conf.Root),
			}
			if err := survey.AskOne(prompt, &proceed); err == terminal.InterruptErr {
				log.Warn("Exiting...")
				return nil
			}
			if !proceed {
				return nil
			}
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var res *patch.Result
		if err := ctrlc.Default.Run(ctx, func() error {
			var err error
			res, err = p.Run(ctx)
			return err
		}); err != nil {
			if errors.As(err, &ctrlc.ErrorCtrlC{}) {
				log.Warnf("Interrupted; run %s from the newest backup in %s to undo partial changes", patch.RestoreScript, p.Config.BackupDir)
				return err
			}
			if res != nil {
				printSteps(res)
				if res.RestoreScript != "" && !dryRun {
					utils.Indent(log.Warn, 1)(fmt.Sprintf("Undo partial changes with: sudo %s", res.RestoreScript))
				}
			}
			return err
		}

		printSteps(res)

		if res.Diff != "" {
			fmt.Println("\nInfo.plist changes:")
			if viper.GetBool("color") {
				quick.Highlight(os.Stdout, res.Diff, "diff", "terminal256", "nord")
			} else {
				fmt.Print(res.Diff)
			}
		}

		if dryRun {
			return nil
		}
		for _, bin := range res.Patched {
			utils.Indent(log.Info, 1)(fmt.Sprintf("Patched %s", bin))
		}
		if res.ReportPath != "" {
			utils.Indent(log.Info, 1)(fmt.Sprintf("Report written to %s", res.ReportPath))
		}
		if res.RestoreScript != "" {
			utils.Indent(log.Info, 1)(fmt.Sprintf("Restore with: sudo %s", res.RestoreScript))
		}
		if res.OK() {
			log.Info("Reboot to activate the changes")
		}
		return nil
	},
}

func printSteps(res *patch.Result) {
	fmt.Println()
	for _, s := range res.Steps {
		status := colors.Status(s.OK)
		if s.Skipped {
			status = colors.Faint().Sprint("SKIP")
		}
		fmt.Printf("%s %s\n", status, s.Name)
		if viper.GetBool("verbose") || !s.OK {
			for _, m := range s.Messages {
				fmt.Printf("       %s\n", m)
			}
		}
	}
}
