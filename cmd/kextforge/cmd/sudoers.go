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

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/blacktop/kextforge/internal/colors"
	"github.com/blacktop/kextforge/internal/commands/sudoers"
	"github.com/blacktop/kextforge/internal/errs"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(sudoersCmd)
	sudoersCmd.Flags().Bool("configure", false, "Install the passwordless mount entry")
	sudoersCmd.Flags().Bool("remove", false, "Remove the entry")
	sudoersCmd.Flags().Bool("test", false, "Check passwordless mount works")
	sudoersCmd.Flags().Bool("status", false, "Show the current configuration")
	sudoersCmd.Flags().String("user", "", "User to grant (default $SUDO_USER)")
	sudoersCmd.MarkFlagsMutuallyExclusive("configure", "remove", "test", "status")
	sudoersCmd.MarkFlagsOneRequired("configure", "remove", "test", "status")
	viper.BindPFlag("sudoers.configure", sudoersCmd.Flags().Lookup("configure"))
	viper.BindPFlag("sudoers.remove", sudoersCmd.Flags().Lookup("remove"))
	viper.BindPFlag("sudoers.test", sudoersCmd.Flags().Lookup("test"))
	viper.BindPFlag("sudoers.status", sudoersCmd.Flags().Lookup("status"))
	viper.BindPFlag("sudoers.user", sudoersCmd.Flags().Lookup("user"))
}

// sudoersCmd represents the sudoers command
var sudoersCmd = &cobra.Command{
	Use:   "sudoers",
	Short: "Manage the sudoers entry that allows passwordless mounting",
	Example: heredoc.Doc(`
		# Allow the invoking user to mount without a password
		❯ sudo kextforge sudoers --configure
		# Check it works
		❯ kextforge sudoers --test`),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, _, err := setup()
		if err != nil {
			return err
		}

		f := sudoers.New(newRunner(conf), conf.Sudoers.Path, conf.Sudoers.User)
		ctx := context.Background()

		switch {
		case viper.GetBool("sudoers.configure"):
			if viper.GetBool("dry-run") {
				log.Infof("Would write %s:", f.Path)
				fmt.Println(f.Entry())
				return nil
			}
			if err := f.Configure(ctx); err != nil {
				return err
			}
			log.Infof("Configured passwordless mount for %s in %s", f.User, f.Path)
		case viper.GetBool("sudoers.remove"):
			if viper.GetBool("dry-run") {
				log.Infof("Would remove %s", f.Path)
				return nil
			}
			removed, err := f.Remove()
			if err != nil {
				return err
			}
			if removed {
				log.Infof("Removed %s", f.Path)
			} else {
				log.Infof("%s does not exist", f.Path)
			}
		case viper.GetBool("sudoers.test"):
			ok, err := f.Test(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%s passwordless mount\n", colors.Status(ok))
			if !ok {
				return errs.New(errs.Permission, "sudoers", "passwordless mount is not configured (run: sudo kextforge sudoers --configure)")
			}
		case viper.GetBool("sudoers.status"):
			st := f.Status(ctx)
			fmt.Printf("User:           %s\n", st.User)
			fmt.Printf("Running as root: %t\n", st.Root)
			fmt.Printf("Sudo access:    %s\n", colors.Status(st.SudoAccess))
			fmt.Printf("Config file:    %s %s\n", colors.Status(st.ConfigExists), st.Path)
			if st.Content != "" {
				fmt.Printf("\n%s\n", colors.Faint().Sprint(st.Content))
			}
		}
		return nil
	},
}
