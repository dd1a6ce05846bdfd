package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/netplace/internal/server"
)

// serveCommand creates the serve command that runs the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		cfg   server.Config
		cache cacheFlags
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the placement HTTP API",
		Long: `Serve the placement HTTP API.

Endpoints:

  POST /v1/place   place a netlist and optionally render artifacts
  POST /v1/eval    per-net wirelength of a placement
  GET  /healthz    liveness probe

Results are cached in the local cache directory, or in Redis with --redis
so several instances share them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runner, err := c.newRunner(ctx, cache)
			if err != nil {
				return fmt.Errorf("initialize runner: %w", err)
			}
			defer runner.Close()

			return server.New(runner, c.Logger, cfg).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&cfg.Addr, "addr", server.DefaultAddr, "listen address")
	cmd.Flags().Int64Var(&cfg.MaxBodyBytes, "max-body", server.DefaultMaxBodyBytes, "maximum request body in bytes")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", server.DefaultTimeout, "per-request timeout")
	cache.register(cmd)

	return cmd
}
