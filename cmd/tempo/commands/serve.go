package commands

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/tempo/pulse"
	"github.com/teranos/tempo/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var addr string
	var withLoop bool
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server"},
		Short:   "Serve the job reporting API over HTTP",
		Long: `Serve the job reporting API.

  GET  /health
  GET  /api/jobs?date=YYYY-MM-DD&status=fail
  GET  /api/jobs/{id}
  GET  /api/jobs/{id}/status
  POST /api/jobs/{id}/redo
  POST /api/jobs                {"type": "...", "at": "...", "params": {...}}

With --loop, scheduler passes also run in this process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			srv := server.New(a.scheduler, server.Options{
				Addr:           addr,
				AllowedOrigins: a.cfg.GetServerAllowedOrigins(),
			}, a.log)

			ctx, cancel := interruptible(cmd.Context())
			defer cancel()

			if withLoop {
				ticker := pulse.NewTicker(a.scheduler, pulse.TickerConfig{Interval: a.cfg.LoopInterval()}, a.log)
				ticker.Start()
				defer ticker.Stop()
			}

			pterm.Info.Printfln("tempo API on http://%s (Ctrl+C to stop)", addr)
			if err := srv.ListenAndServe(ctx, shutdownTimeout); err != nil {
				return err
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default server.addr)")
	cmd.Flags().BoolVar(&withLoop, "loop", false, "Also run scheduler passes every loop interval")
	return cmd
}
