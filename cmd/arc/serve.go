package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/arcreactor/workspace/internal/mockapi"
)

func newServeMockCommand(a *app) *cobra.Command {
	var (
		host, port, token string
		chunkSize         int
	)
	cmd := &cobra.Command{
		Use:   "serve-mock",
		Short: "Run a local mock backend with fixture runs and a scripted agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if host != "" {
				cfg.Server.Host = host
			}
			if port != "" {
				cfg.Server.Port = port
			}
			if token != "" {
				cfg.Server.Token = token
			}

			srv := mockapi.New(cfg, a.logger.Component("mockapi"), prometheus.NewRegistry()).
				WithChunkSize(chunkSize)
			return srv.Run(cmd.Context())
		},
	}
	f := cmd.Flags()
	f.StringVar(&host, "host", "", "listen host, overrides HOST")
	f.StringVar(&port, "port", "", "listen port, overrides PORT")
	f.StringVar(&token, "require-token", "", "bearer token required on REST routes")
	f.IntVar(&chunkSize, "chunk-size", 0, "split chat replies into socket messages of this many bytes")
	return cmd
}
