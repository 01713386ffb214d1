package main

import (
	"github.com/spf13/cobra"

	"github.com/zoravur/bookstore/internal/app"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and realtime channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, err := app.NewServer(cmd.Context(), c.cfg, c.log)
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	mustBind(c.v, "http.addr", cmd.Flags().Lookup("addr"))
	return cmd
}
