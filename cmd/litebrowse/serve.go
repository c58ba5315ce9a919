package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/litebrowse/litebrowse/internal/app"
)

func (c *cli) serveCmd() *cobra.Command {
	var httpAddr, grpcAddr string
	var noGRPC bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the database over HTTP and gRPC until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg
			if httpAddr != "" {
				cfg.Server.HTTPAddr = httpAddr
			}
			if grpcAddr != "" {
				cfg.Server.GRPCAddr = grpcAddr
			}
			if noGRPC {
				cfg.Server.GRPCEnabled = false
			}

			a, err := app.New(cfg, c.logger)
			if err != nil {
				return err
			}
			c.logger.Info("starting litebrowse server", "version", version, "commit", commit, "database", cfg.Database.Path)
			if err := a.Run(ctxOf(cmd)); err != nil {
				return fmt.Errorf("server stopped with error: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address (overrides server.http_addr)")
	cmd.Flags().StringVar(&grpcAddr, "grpc-addr", "", "gRPC listen address (overrides server.grpc_addr)")
	cmd.Flags().BoolVar(&noGRPC, "no-grpc", false, "serve HTTP only")
	return cmd
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(c.out, "litebrowse %s (%s)\n", version, commit)
			return nil
		},
	}
}
