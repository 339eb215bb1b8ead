package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/soitun/s3fs-fuse/pkg/config"
)

var configOutPath string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or generate the s3fs-mpctl configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().StringVar(&configOutPath, "out", "s3fs-mpctl.yaml", "path to write the default config to")
	configCmd.AddCommand(configShowCmd, configInitCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	return yamlEncode(cmd.OutOrStdout(), cfg)
}

func yamlEncode(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(v)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configOutPath); err == nil {
		return fmt.Errorf("%s already exists, refusing to overwrite", configOutPath)
	}
	if err := config.Save(config.Default(), configOutPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote default configuration to %s\n", configOutPath)
	return nil
}
