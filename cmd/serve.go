package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abhisek/skilltune/internal/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the difficulty API to browser games",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, _, closeAll, err := openService(ctx)
		if err != nil {
			return err
		}
		defer closeAll()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.HTTP.Addr
		}
		srv := httpapi.New(svc,
			httpapi.WithLogger(log.WithField("component", "http")),
			httpapi.WithAllowedOrigins(cfg.HTTP.AllowedOrigins),
			httpapi.WithVersion(version),
		)
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides SKILLTUNE_HTTP_ADDR)")
}
