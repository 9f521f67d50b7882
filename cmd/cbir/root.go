package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cytomine/cbir/config"
)

func NewRootCmd(version string, factory appFactory) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cbir",
		Short:         "Content-based image retrieval",
		Long:          `Index images by their features and search for the most similar ones.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().String("metrics-textfile", "", "Write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(
		NewIndexCmd(factory),
		NewRemoveCmd(factory),
		NewSearchCmd(factory),
		NewConfigCmd(),
	)
	return rootCmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// withApp builds the app, runs fn and releases everything afterwards.
func withApp(cmd *cobra.Command, factory appFactory, fn func(*app) error) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := factory(cmd.Context(), cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		metricsPath, _ := cmd.Flags().GetString("metrics-textfile")
		if merr := a.writeMetrics(metricsPath); merr != nil && err == nil {
			err = fmt.Errorf("write metrics: %w", merr)
		}
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}
