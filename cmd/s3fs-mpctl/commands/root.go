// Package commands implements the s3fs-mpctl CLI's subcommand tree.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soitun/s3fs-fuse/pkg/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "s3fs-mpctl",
	Short:         "Operate the s3fs multipart upload planner against a bucket",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: ./s3fs-mpctl.yaml)")
	rootCmd.AddCommand(planCmd, uploadCmd, configCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command, for testing.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyLogging(cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PrintErr writes an error to stderr in the CLI's standard form.
func PrintErr(err error) {
	fmt.Fprintf(os.Stderr, "s3fs-mpctl: %v\n", err)
}
