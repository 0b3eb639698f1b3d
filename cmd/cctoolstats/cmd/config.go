package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/cctoolstats/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Prints the configuration loaded from the config file, with defaults
filled in, followed by the file's path.

Command-line flags are not applied.

Examples:
  cctoolstats config        # Print effective config
  cctoolstats config init   # Write a default config file`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Writes the default configuration to the config file.

An existing file is left alone unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().Bool("force", false, "overwrite an existing config file")
}

func configFilePath() string {
	if flags.configPath != "" {
		return flags.configPath
	}
	return config.ConfigPath()
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	path := configFilePath()
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return err
	}
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	out.Write(data)
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(out, "# %s (not found, using defaults)\n", path)
	} else {
		fmt.Fprintf(out, "# %s\n", path)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	path := configFilePath()

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
	}
	if err := config.DefaultConfig().SaveTo(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
