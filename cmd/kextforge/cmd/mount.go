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

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/blacktop/kextforge/internal/colors"
	"github.com/blacktop/kextforge/internal/commands/mount"
	"github.com/blacktop/kextforge/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(mountCmd)
	mountCmd.Flags().BoolP("ask-password", "p", false, "Prompt for the sudo password")
	mountCmd.Flags().Bool("no-interactive", false, "Never fall back to an interactive sudo prompt")
	mountCmd.Flags().StringP("type", "t", "", "Filesystem type (default apfs)")
	mountCmd.Flags().StringSliceP("options", "o", []string{}, "Mount options (default nobrowse)")
	viper.BindPFlag("mount.ask-password", mountCmd.Flags().Lookup("ask-password"))
	viper.BindPFlag("mount.no-interactive", mountCmd.Flags().Lookup("no-interactive"))
	viper.BindPFlag("mount.type", mountCmd.Flags().Lookup("type"))
	viper.BindPFlag("mount.options", mountCmd.Flags().Lookup("options"))
}

// mountCmd represents the mount command
var mountCmd = &cobra.Command{
	Use:   "mount DEVICE MOUNTPOINT",
	Short: "Mount a system volume read-write using the best available privilege path",
	Example: heredoc.Doc(`
		# Mount the sealed system snapshot's device
		❯ kextforge mount /dev/disk3s1 /Volumes/System
		# Prompt for the sudo password up front
		❯ kextforge mount -p /dev/disk3s1 /Volumes/System`),
	Args:          cobra.ExactArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, _, err := setup()
		if err != nil {
			return err
		}

		device := args[0]
		mountPoint := filepath.Clean(args[1])

		opts := mount.Options{
			Type:        conf.Mount.Type,
			Options:     conf.Mount.Options,
			Interactive: !viper.GetBool("mount.no-interactive"),
		}

		if viper.GetBool("mount.ask-password") {
			prompt := &survey.Password{
				Message: "sudo password:",
			}
			if err := survey.AskOne(prompt, &opts.Password); err == terminal.InterruptErr {
				log.Warn("Exiting...")
				return nil
			}
		}

		if viper.GetBool("dry-run") {
			log.Infof("Would mount %s at %s (-t %s -o %v)", device, mountPoint, opts.Type, opts.Options)
			return nil
		}

		mc, err := mount.New(newRunner(conf)).Mount(context.Background(), device, mountPoint, opts)
		if mc != nil {
			for _, a := range mc.Attempts {
				fmt.Printf("%s %s%s%s\n", colors.Status(a.OK), a.Method, utils.Pad(20-len(a.Method)), a.Command)
				if a.Error != "" {
					utils.Indent(log.Debug, 2)(a.Error)
				}
			}
		}
		if err != nil {
			fmt.Println("\nTroubleshooting:")
			for _, s := range mount.Suggestions(device, mountPoint) {
				fmt.Printf("  - %s\n", s)
			}
			return err
		}
		log.Infof("Mounted %s at %s via %s", device, mountPoint, mc.Method)
		return nil
	},
}
