package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"arcsat.dev/satellite/config"
	"arcsat.dev/satellite/jobstore"
)

func newSetupCmd() *cobra.Command {
	var apiKey string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Initialize the job store and set the bearer API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			jobs, err := jobstore.Open(cfg.DBPath, log)
			if err != nil {
				return err
			}
			defer func() { _ = jobs.Close() }()

			if apiKey == "" {
				apiKey = cfg.APIKey
			}
			if apiKey == "" {
				return fmt.Errorf("an API key is required: pass --api-key or set SATELLITE_API_KEY")
			}
			if err := jobs.SetAPIKey(apiKey); err != nil {
				return err
			}
			fmt.Println("satellite: API key configured")
			return nil
		},
	}
	cmd.Flags().StringVar(&apiKey, "api-key", "", "bearer token clients must present")
	return cmd
}
