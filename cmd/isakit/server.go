package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nishad/isakit/internal/api"
)

func newServerCmd() *cobra.Command {
	var (
		port        int
		host        string
		dbPath      string
		indexPath   string
		enableCORS  bool
		withMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve the catalog and the converters over HTTP",
		Long: `Start the isakit HTTP API.

The server provides:
- catalog listing, lookup and deletion under /api/v1/investigations
- full-text search at /api/v1/search
- ISA-JSON to ISA-Tab conversion and document validation
- prometheus metrics at /metrics`,
		Example: `  isakit server
  isakit server --port 3000 --host 0.0.0.0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := env.Config
			if cmd.Flags().Changed("port") {
				c.Server.Port = port
			}
			if cmd.Flags().Changed("host") {
				c.Server.Host = host
			}
			if cmd.Flags().Changed("db") {
				c.Catalog.DBPath = dbPath
			}
			if cmd.Flags().Changed("index") {
				c.Catalog.IndexPath = indexPath
			}
			if cmd.Flags().Changed("enable-cors") {
				c.Server.EnableCORS = enableCORS
			}
			if cmd.Flags().Changed("metrics") {
				c.Server.EnableMetrics = withMetrics
			}
			if err := c.EnsureDirectories(); err != nil {
				return err
			}
			cfg, err := api.ConfigFrom(c)
			if err != nil {
				return err
			}
			server, err := api.NewServer(cfg, env.Logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			serverErr := make(chan error, 1)
			go func() {
				serverErr <- server.Start()
			}()
			printSuccess("Server ready at http://%s:%d", c.Server.Host, c.Server.Port)
			printInfo("Database: %s", c.Catalog.DBPath)
			printInfo("Index: %s", c.Catalog.IndexPath)

			select {
			case <-ctx.Done():
				printInfo("Shutting down server...")
			case err := <-serverErr:
				return err
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return err
			}
			printSuccess("Server stopped")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on (default from config)")
	cmd.Flags().StringVar(&host, "host", "localhost", "Host to bind to (default from config)")
	cmd.Flags().StringVar(&dbPath, "db", "", "Catalog database path")
	cmd.Flags().StringVar(&indexPath, "index", "", "Catalog index path")
	cmd.Flags().BoolVar(&enableCORS, "enable-cors", true, "Allow cross-origin requests")
	cmd.Flags().BoolVar(&withMetrics, "metrics", true, "Serve prometheus metrics at /metrics")
	return cmd
}
