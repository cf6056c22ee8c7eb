package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/MeKo-Tech/codescan/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Print the effective configuration as YAML",
	Long:        `Print the configuration after merging defaults, the config file, .env, CODESCAN_* variables and flags.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{lenientConfig: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to render configuration: %w", err)
		}

		w := cmd.OutOrStdout()
		if sources, _ := cmd.Flags().GetBool("sources"); sources {
			GetConfigLoader().PrintConfigInfo(w)
			_, _ = fmt.Fprintln(w, "---")
		}
		_, _ = w.Write(data)

		if err := cfg.Validate(); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [FILE]",
	Short: "Write a config file with every default value",
	Long: `Write the default configuration to FILE (codescan.yaml by default) as a
starting point for local changes. An existing file is only replaced with --force.`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{lenientConfig: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ConfigFileName + ".yaml"
		if len(args) == 1 {
			path = args[0]
		}

		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		if err := config.GenerateDefaultConfigFile(path); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd)

	configShowCmd.Flags().Bool("sources", false, "also print the config file used and the search paths")
	configInitCmd.Flags().BoolP("force", "f", false, "overwrite an existing file")
}
