package main

import (
	"os"

	"github.com/spf13/cobra"

	"courtbook/internal/application"
)

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return application.New(cfg, logger).Scan(cmd.Context(), os.Stdout)
}
