// File: cmd/serve.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taskpilot/internal/observability"
	"github.com/xkilldash9x/taskpilot/internal/service"
	"github.com/xkilldash9x/taskpilot/internal/transport/ws"
)

func newServeCmd(factory service.ComponentFactory) *cobra.Command {
	var (
		opts runOptions
		addr string
	)
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept controller requests over a WebSocket endpoint",
		Long: `Starts the page and listens on server.addr. Each WebSocket text frame is a
JSON request (processTasks, saveConfiguration, loadConfiguration,
deleteConfiguration, listConfigurationNames); each reply carries the request id.
Stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			if cmd.Flags().Changed("addr") {
				cfg.ServerCfg.Addr = addr
			}

			components, err := factory.Create(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown()

			server, err := ws.NewServer(cfg.Server(), components.Controller, logger)
			if err != nil {
				return err
			}
			logger.Info("Serving controller requests.", zap.String("address", cfg.Server().Addr))
			return server.Run(ctx)
		},
	}
	opts.register(serveCmd)
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return serveCmd
}
