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
	"github.com/blacktop/kextforge/internal/commands/selftest"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(selftestCmd)
}

// selftestCmd represents the selftest command
var selftestCmd = &cobra.Command{
	Use:           "selftest",
	Aliases:       []string{"test"},
	Short:         "Build throwaway bundles and check the host tooling",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, cat, err := setup()
		if err != nil {
			return err
		}

		st := &selftest.SelfTest{
			Runner:  newRunner(conf),
			Catalog: cat,
			Root:    conf.Root,
		}
		results, err := st.Run(context.Background())
		if err != nil {
			return err
		}

		for _, c := range results {
			status := colors.Status(c.OK)
			if !c.OK && c.Advisory {
				status = colors.Warn()
			}
			fmt.Printf("%s %s", status, c.Name)
			if c.Detail != "" {
				fmt.Printf(" %s", colors.Faint().Sprint(c.Detail))
			}
			fmt.Println()
		}

		passed, failed := results.Counts()
		fmt.Printf("\n%d passed, %d failed\n", passed, failed)
		if !results.Passed() {
			return fmt.Errorf("self-test failed")
		}
		return nil
	},
}
