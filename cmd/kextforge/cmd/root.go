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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/apex/log"
	clihander "github.com/apex/log/handlers/cli"
	"github.com/blacktop/kextforge/internal/colors"
	"github.com/blacktop/kextforge/internal/config"
	"github.com/blacktop/kextforge/internal/runner"
	"github.com/blacktop/kextforge/internal/utils"
	"github.com/blacktop/kextforge/pkg/catalog"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	// Verbose boolean flag for verbose logging
	Verbose bool
	// Color boolean flag for colorized output
	Color bool
	// AppVersion stores the plugin's version
	AppVersion string
	// AppBuildCommit stores the plugin's build commit
	AppBuildCommit string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kextforge",
	Short: "Probe, plan and install the Broadcom WLAN companion kext",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	log.SetHandler(clihander.Default)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/kextforge/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "V", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&Color, "color", false, "colorize output")
	rootCmd.PersistentFlags().StringP("root", "r", "/", "System root to operate on")
	rootCmd.PersistentFlags().Bool("dry-run", false, "Show what would be done without changing anything")
	rootCmd.PersistentFlags().Duration("timeout", config.DefaultTimeout, "Timeout for each external command")
	rootCmd.PersistentFlags().String("catalog", "", "YAML file overriding the built-in hardware/kext catalog")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("color", rootCmd.PersistentFlags().Lookup("color"))
	viper.BindPFlag("root", rootCmd.PersistentFlags().Lookup("root"))
	viper.BindPFlag("dry-run", rootCmd.PersistentFlags().Lookup("dry-run"))
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("catalog.file", rootCmd.PersistentFlags().Lookup("catalog"))
	viper.BindEnv("color", "CLICOLOR")
	// Settings
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(filepath.Join(home, ".config", "kextforge"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("kextforge")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	if viper.IsSet("color") {
		c := viper.GetBool("color")
		colors.Init(&c)
	}
}

// setup applies --verbose and loads the config and catalog every command needs
func setup() (*config.Config, *catalog.Catalog, error) {
	if viper.GetBool("verbose") {
		log.SetLevel(log.DebugLevel)
	}
	conf, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	cat, err := catalog.Load(conf.Catalog.File)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return conf, cat, nil
}

func newRunner(conf *config.Config) runner.Runner {
	return runner.NewExec(conf.Timeout)
}

// spin shows a spinner around fn when stdout is a terminal and logging is quiet
func spin(msg string, fn func()) {
	if !utils.IsTerminal() || viper.GetBool("verbose") {
		fn()
		return
	}
	s := spinner.New(spinner.CharSets[38], 100*time.Millisecond)
	s.Prefix = color.BlueString("   %s  ", msg)
	s.Start()
	defer s.Stop()
	fn()
}

// printJSON writes data to stdout, highlighted when --color is set
func printJSON(data []byte) error {
	if viper.GetBool("color") {
		return quick.Highlight(os.Stdout, string(data)+"\n", "json", "terminal256", "nord")
	}
	fmt.Println(strings.TrimRight(string(data), "\n"))
	return nil
}

func jsonIndent(v any) ([]byte, error) {
	dat, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %v", err)
	}
	return dat, nil
}
