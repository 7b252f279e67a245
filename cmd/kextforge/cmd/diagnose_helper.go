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

	"github.com/blacktop/kextforge/internal/colors"
	"github.com/blacktop/kextforge/internal/commands/helper"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(diagnoseHelperCmd)
	diagnoseHelperCmd.Flags().String("name", "", "Helper file name")
	diagnoseHelperCmd.Flags().String("dir", "", "Privileged helper directory")
	diagnoseHelperCmd.Flags().Bool("json", false, "Output as JSON")
	viper.BindPFlag("helper.name", diagnoseHelperCmd.Flags().Lookup("name"))
	viper.BindPFlag("helper.dir", diagnoseHelperCmd.Flags().Lookup("dir"))
	viper.BindPFlag("diagnose-helper.json", diagnoseHelperCmd.Flags().Lookup("json"))
}

// diagnoseHelperCmd represents the diagnose-helper command
var diagnoseHelperCmd = &cobra.Command{
	Use:           "diagnose-helper",
	Short:         "Check the privileged helper installation",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, _, err := setup()
		if err != nil {
			return err
		}

		diag, err := helper.New(newRunner(conf), helper.Config{
			Dir:         conf.Helper.Dir,
			Name:        conf.Helper.Name,
			FindRoots:   conf.Helper.FindRoots,
			FindTimeout: conf.Helper.FindTimeout,
		}).Run(context.Background())
		if err != nil {
			return err
		}

		if viper.GetBool("diagnose-helper.json") {
			dat, err := jsonIndent(diag)
			if err != nil {
				return err
			}
			return printJSON(dat)
		}

		fmt.Printf("%s %s\n", colors.Status(diag.DirExists), diag.Dir)
		fmt.Printf("%s %s", colors.Status(diag.HelperExists), diag.HelperPath)
		if diag.HelperExists {
			fmt.Printf(" (%s)", diag.Mode)
		}
		fmt.Println()
		if diag.FileType != "" {
			fmt.Printf("     %s\n", colors.Faint().Sprint(diag.FileType))
		}
		if len(diag.Existing) > 0 {
			fmt.Println("\nInstalled helpers:")
			for _, e := range diag.Existing {
				fmt.Printf("  %s\n", e)
			}
		}
		if len(diag.Found) > 0 {
			fmt.Println("\nFound copies:")
			for _, f := range diag.Found {
				fmt.Printf("  %s\n", f)
			}
		}
		if len(diag.Suggestions) > 0 {
			fmt.Println("\nSuggestions:")
			for _, s := range diag.Suggestions {
				fmt.Printf("  - %s\n", s)
			}
		}
		return nil
	},
}
