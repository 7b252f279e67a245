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
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/blacktop/kextforge/internal/utils"
	"github.com/blacktop/kextforge/pkg/bundle"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().Bool("companion", false, "Build the catalog's companion bundle")
	buildCmd.Flags().String("identifier", "", "CFBundleIdentifier")
	buildCmd.Flags().String("executable", "", "CFBundleExecutable")
	buildCmd.Flags().String("name", "", "CFBundleName (defaults to the executable)")
	buildCmd.Flags().String("bundle-version", "", "CFBundleVersion")
	buildCmd.Flags().String("short-version", "", "CFBundleShortVersionString")
	buildCmd.Flags().String("minimum-os", "", "LSMinimumSystemVersion")
	buildCmd.Flags().String("extra", "", "YAML file of extra Info.plist keys")
	buildCmd.Flags().StringArray("set", []string{}, "Extra Info.plist KEY=VALUE (repeatable)")
	buildCmd.Flags().StringP("output", "o", ".", "Directory to create the bundle in")
	viper.BindPFlag("build.companion", buildCmd.Flags().Lookup("companion"))
	viper.BindPFlag("build.identifier", buildCmd.Flags().Lookup("identifier"))
	viper.BindPFlag("build.executable", buildCmd.Flags().Lookup("executable"))
	viper.BindPFlag("build.name", buildCmd.Flags().Lookup("name"))
	viper.BindPFlag("build.bundle-version", buildCmd.Flags().Lookup("bundle-version"))
	viper.BindPFlag("build.short-version", buildCmd.Flags().Lookup("short-version"))
	viper.BindPFlag("build.minimum-os", buildCmd.Flags().Lookup("minimum-os"))
	viper.BindPFlag("build.extra", buildCmd.Flags().Lookup("extra"))
	viper.BindPFlag("build.output", buildCmd.Flags().Lookup("output"))
}

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build <kext|framework>",
	Short: "Create a kext or framework bundle skeleton",
	Example: heredoc.Doc(`
		# Build the companion kext into the current directory
		❯ kextforge build kext --companion
		# Build a framework from scratch
		❯ kextforge build framework --identifier com.example.Foo --executable Foo --bundle-version 1.0 -o /tmp/out
		# Add extra Info.plist keys
		❯ kextforge build kext --identifier com.example.Bar --executable Bar --set OSBundleRequired=Root --extra personalities.yml`),
	Args:          cobra.ExactArgs(1),
	ValidArgs:     []string{"kext", "framework"},
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cat, err := setup()
		if err != nil {
			return err
		}

		kind, err := bundle.ParseKind(args[0])
		if err != nil {
			return err
		}

		var desc bundle.Descriptor
		if viper.GetBool("build.companion") {
			if err := checkCompanionFlags(cmd.Flags()); err != nil {
				return err
			}
			desc = bundle.CompanionDescriptor(cat, kind)
		} else {
			desc = bundle.Descriptor{
				Identifier:   viper.GetString("build.identifier"),
				Executable:   viper.GetString("build.executable"),
				Name:         viper.GetString("build.name"),
				Kind:         kind,
				Version:      viper.GetString("build.bundle-version"),
				ShortVersion: viper.GetString("build.short-version"),
				MinimumOS:    viper.GetString("build.minimum-os"),
			}
		}

		if path := viper.GetString("build.extra"); path != "" {
			extra, err := bundle.ReadExtra(path)
			if err != nil {
				return err
			}
			desc.Extra = merge(desc.Extra, extra)
		}
		pairs, err := cmd.Flags().GetStringArray("set")
		if err != nil {
			return err
		}
		if len(pairs) > 0 {
			extra, err := bundle.ParseExtraPairs(pairs)
			if err != nil {
				return err
			}
			desc.Extra = merge(desc.Extra, extra)
		}

		output := viper.GetString("build.output")

		if viper.GetBool("dry-run") {
			paths, err := bundle.Plan(output, kind, desc)
			if err != nil {
				return err
			}
			log.Infof("Would create %s", paths[0])
			for _, p := range paths[1:] {
				utils.Indent(log.Info, 2)(p)
			}
			return nil
		}

		path, err := bundle.Build(output, kind, desc)
		if err != nil {
			return fmt.Errorf("failed to build %s: %w", kind, err)
		}
		log.Infof("Created %s", path)
		return nil
	},
}

func merge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

var descriptorFlags = []string{"identifier", "executable", "name", "bundle-version", "short-version", "minimum-os"}

// checkCompanionFlags rejects descriptor flags that --companion would ignore
func checkCompanionFlags(flags *pflag.FlagSet) error {
	var set []string
	flags.Visit(func(f *pflag.Flag) {
		if utils.StrSliceHas(descriptorFlags, f.Name) {
			set = append(set, "--"+f.Name)
		}
	})
	if len(set) > 0 {
		return fmt.Errorf("--companion builds the catalog descriptor; drop %s", strings.Join(set, ", "))
	}
	return nil
}
