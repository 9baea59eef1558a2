package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/sourcerer/config"
	srv "github.com/mohammad-safakhou/sourcerer/internal/server"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}
			return srv.Run(context.Background(), cfg)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return serve
}
