// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sage Contributors

package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sageway/sage/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the sage HTTP server",
		Long:  "Load configuration, initialize all subsystems, and serve the query and pattern APIs.",
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("server.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := server.New(server.Config{
		ListenAddr:  a.cfg.Server.Listen,
		CORSOrigins: a.cfg.Server.AllowedOrigins,
	})
	if err != nil {
		return err
	}
	srv.RegisterServices(&server.Services{
		Config:   a.cfg,
		Pipeline: a.pipeline,
		Patterns: a.patterns,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "sage listening on %s\n", a.cfg.Server.Listen)
	return srv.Start(ctx)
}
