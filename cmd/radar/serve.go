package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/radarhq/radar/config"
	"github.com/radarhq/radar/internal/server"
	"github.com/radarhq/radar/internal/store"
)

func serveCMD() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic run scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}

			registry := prometheus.NewRegistry()
			eng, err := buildEngine(cfg, registry)
			if err != nil {
				return err
			}

			st, err := store.New(context.Background(), cfg.Storage)
			if err != nil {
				return err
			}
			defer st.Close()

			srv, err := server.New(cfg, st, eng, registry)
			if err != nil {
				return err
			}
			return srv.Start()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	return cmd
}
