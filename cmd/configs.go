// File: cmd/configs.go
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/taskpilot/api/schemas"
	"github.com/xkilldash9x/taskpilot/internal/observability"
	"github.com/xkilldash9x/taskpilot/internal/service"
	"github.com/xkilldash9x/taskpilot/internal/taskfile"
)

// newConfigCmd groups the named-configuration commands.
func newConfigCmd(factory service.ComponentFactory) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage named task configurations",
	}
	configCmd.AddCommand(
		newConfigSaveCmd(factory),
		newConfigLoadCmd(factory),
		newConfigDeleteCmd(factory),
		newConfigListCmd(factory),
	)
	return configCmd
}

// handleConfigRequest sends one configuration request through a store-only controller.
func handleConfigRequest(cmd *cobra.Command, factory service.ComponentFactory, req schemas.Request) (schemas.Response, error) {
	ctx := cmd.Context()
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return schemas.Response{}, err
	}
	components, err := factory.Create(ctx, cfg, observability.GetLogger(), service.WithoutPage())
	if err != nil {
		return schemas.Response{}, fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Shutdown()

	resp := components.Controller.Handle(ctx, req)
	if !resp.OK() {
		return resp, errors.New(resp.Message)
	}
	return resp, nil
}

func newConfigSaveCmd(factory service.ComponentFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "save <name> <task-file>",
		Short: "Store a task file under a name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read task file '%s': %w", args[1], err)
			}
			if err := taskfile.Validate(string(raw)); err != nil {
				return fmt.Errorf("refusing to save invalid task file: %w", err)
			}
			if _, err := handleConfigRequest(cmd, factory, schemas.Request{
				Kind:       schemas.RequestSaveConfiguration,
				Name:       args[0],
				RawContent: string(raw),
			}); err != nil {
				return err
			}
			cmd.Printf("Configuration %q saved.\n", args[0])
			return nil
		},
	}
}

func newConfigLoadCmd(factory service.ComponentFactory) *cobra.Command {
	var (
		run  bool
		opts runOptions
	)
	loadCmd := &cobra.Command{
		Use:   "load <name>",
		Short: "Print a stored configuration, or run it with --run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if run {
				cfg, err := getConfigFromContext(cmd.Context())
				if err != nil {
					return err
				}
				opts.apply(cmd, cfg)
				return runTasks(cmd.Context(), cmd.OutOrStdout(), observability.GetLogger(), cfg, factory, taskSource{name: args[0]})
			}

			resp, err := handleConfigRequest(cmd, factory, schemas.Request{Kind: schemas.RequestLoadConfiguration, Name: args[0]})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), resp.RawContent)
			return err
		},
	}
	loadCmd.Flags().BoolVar(&run, "run", false, "process the configuration instead of printing it")
	opts.register(loadCmd)
	return loadCmd
}

func newConfigDeleteCmd(factory service.ComponentFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a stored configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := handleConfigRequest(cmd, factory, schemas.Request{Kind: schemas.RequestDeleteConfiguration, Name: args[0]}); err != nil {
				return err
			}
			cmd.Printf("Configuration %q deleted.\n", args[0])
			return nil
		},
	}
}

func newConfigListCmd(factory service.ComponentFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored configuration names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := handleConfigRequest(cmd, factory, schemas.Request{Kind: schemas.RequestListConfigurationNames})
			if err != nil {
				return err
			}
			for _, name := range resp.Names {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
