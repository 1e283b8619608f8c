package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the operational HTTP server (health, readiness, metrics, admin import/export)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, root)
			if err != nil {
				return err
			}
			if port == 0 {
				port = a.Config.Server.Port
			}

			srv := a.Server()
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(fmt.Sprintf(":%d", port)) }()

			select {
			case err = <-errCh:
			case <-cmd.Context().Done():
				ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), a.Config.Server.ShutdownTimeout)
				defer cancel()
				err = srv.Shutdown(ctx)
			}
			if cerr := a.Close(context.WithoutCancel(cmd.Context())); err == nil {
				err = cerr
			}
			return err
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default: server.port)")
	return cmd
}
