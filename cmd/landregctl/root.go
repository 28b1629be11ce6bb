package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "landregctl",
	Short: "CLI for the land registry detection server",
	Long: `landregctl talks to the land registry detection server.

It triggers conflict and duplicate detection for applications, lists and
resolves the conflicts found, checks identity numbers against existing
applications and manages the similarity model and background jobs.

Settings are read from flags, LANDREGCTL_* environment variables and
$HOME/.landregctl.yaml, in that order of precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd.Root())
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default $HOME/.landregctl.yaml)")
	pf.String("server", "http://localhost:8080", "Land registry server URL")
	pf.StringP("output", "o", "table", "Output format: table, json, yaml")
	pf.String("user", "", "User name sent in the X-Remote-User header")
	pf.StringSlice("groups", nil, "Groups sent in the X-Remote-Group header")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(conflictsCmd)
	rootCmd.AddCommand(identityCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(modelCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(auditCmd)
}

// boundFlags are the persistent flags that can also come from the
// environment or the config file.
var boundFlags = []string{"server", "output", "user", "groups"}

func initConfig(root *cobra.Command) error {
	for _, name := range boundFlags {
		if err := viper.BindPFlag(name, root.PersistentFlags().Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	viper.SetEnvPrefix("LANDREGCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".landregctl")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func outputFormat() string {
	return viper.GetString("output")
}
