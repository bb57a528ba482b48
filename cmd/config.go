package cmd

import (
	"fmt"
	"os"

	"github.com/andresmejia3/aegis/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create configuration files",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a commented sample configuration",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := "aegis.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			exitOn("Refusing to overwrite config", fmt.Errorf("%s already exists", path))
		}
		if err := config.CreateSample(path); err != nil {
			exitOn("Failed to write config", err)
		}
		fmt.Fprintf(os.Stderr, "📝 Wrote sample config to %s\n", path)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration after defaults and validation",
	Run: func(cmd *cobra.Command, args []string) {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(Cfg); err != nil {
			exitOn("Failed to encode config", err)
		}
		enc.Close()
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
