// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taskpilot/api/schemas"
	"github.com/xkilldash9x/taskpilot/internal/config"
	"github.com/xkilldash9x/taskpilot/internal/controller"
	"github.com/xkilldash9x/taskpilot/internal/observability"
	"github.com/xkilldash9x/taskpilot/internal/service"
	"github.com/xkilldash9x/taskpilot/internal/taskfile"
)

// runOptions are the page overrides shared by run and config load --run.
type runOptions struct {
	engine   string
	startURL string
	headful  bool
	wait     string
}

func (o *runOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.engine, "engine", "", "page engine: chrome or static (overrides browser.engine)")
	cmd.Flags().StringVar(&o.startURL, "start-url", "", "page the browser opens before the first task (overrides browser.start_url)")
	cmd.Flags().BoolVar(&o.headful, "headful", false, "show the browser window")
	cmd.Flags().StringVar(&o.wait, "wait", "", "wait strategy between tasks: fixed or ready (overrides scheduler.wait_strategy)")
}

// apply copies the flags the user set onto cfg.
func (o *runOptions) apply(cmd *cobra.Command, cfg config.Interface) {
	if cmd.Flags().Changed("engine") {
		cfg.SetBrowserEngine(o.engine)
	}
	if cmd.Flags().Changed("start-url") {
		cfg.SetBrowserStartURL(o.startURL)
	}
	if cmd.Flags().Changed("headful") {
		cfg.SetBrowserHeadless(!o.headful)
	}
	if cmd.Flags().Changed("wait") {
		cfg.SetSchedulerWaitStrategy(o.wait)
	}
}

func newRunCmd(factory service.ComponentFactory) *cobra.Command {
	var (
		opts       runOptions
		configName string
	)

	runCmd := &cobra.Command{
		Use:   "run [task-file]",
		Short: "Execute a task file or a stored configuration against the page",
		Long: `Executes every <task> of an XML task file, or of the named configuration
given with --config-name, strictly in order. A failing task is recorded and the
run continues. The run outcome is printed as JSON.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (configName != "") {
				return errors.New("provide either a task file or --config-name")
			}

			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)

			source := taskSource{name: configName}
			if len(args) == 1 {
				source.path = args[0]
			}
			return runTasks(ctx, cmd.OutOrStdout(), observability.GetLogger(), cfg, factory, source)
		},
	}

	opts.register(runCmd)
	runCmd.Flags().StringVar(&configName, "config-name", "", "run the stored configuration with this name")
	return runCmd
}

// taskSource is either a task file path or a stored configuration name.
type taskSource struct {
	path string
	name string
}

// runTasks builds the components, resolves the task list and processes it.
func runTasks(ctx context.Context, out io.Writer, logger *zap.Logger, cfg config.Interface, factory service.ComponentFactory, source taskSource) error {
	components, err := factory.Create(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Shutdown()

	tasks, err := resolveTasks(ctx, components.Controller, source)
	if err != nil {
		return err
	}

	logger.Info("Processing tasks.", zap.Int("count", len(tasks)))
	resp := components.Controller.Handle(ctx, schemas.Request{Kind: schemas.RequestProcessTasks, Tasks: tasks})
	if err := printJSON(out, resp); err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("run failed: %s", resp.Message)
	}
	if resp.Outcome != nil && len(resp.Outcome.Failures) > 0 {
		logger.Warn("Run finished with failed tasks.", zap.Int("failed", len(resp.Outcome.Failures)))
	}
	return nil
}

func resolveTasks(ctx context.Context, ctrl *controller.Controller, source taskSource) ([]schemas.TaskDescriptor, error) {
	if source.path != "" {
		tasks, _, err := taskfile.ParseFile(source.path)
		return tasks, err
	}

	resp := ctrl.Handle(ctx, schemas.Request{Kind: schemas.RequestLoadConfiguration, Name: source.name})
	if !resp.OK() {
		return nil, errors.New(resp.Message)
	}
	tasks, err := taskfile.Parse(resp.RawContent)
	if err != nil {
		return nil, fmt.Errorf("stored configuration %q is invalid: %w", source.name, err)
	}
	return tasks, nil
}

func printJSON(out io.Writer, v interface{}) error {
	data, err := json.ConfigCompatibleWithStandardLibrary.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
