// Package controller routes trigger requests: task runs go to the run
// coordinator, configuration requests go to the store.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/taskpilot/api/schemas"
	"github.com/xkilldash9x/taskpilot/internal/store"
)

// ConfigPrefix namespaces named configurations in the store.
const ConfigPrefix = "config_"

// Runner processes a task list and reports the run's outcome.
type Runner interface {
	Process(ctx context.Context, tasks []schemas.TaskDescriptor) schemas.RunOutcome
}

// Controller answers every Request with exactly one Response.
type Controller struct {
	runner Runner
	store  store.KeyValue
	logger *zap.Logger
}

// New creates a Controller. runner may be nil for configuration-only use;
// processTasks then fails.
func New(runner Runner, kv store.KeyValue, logger *zap.Logger) (*Controller, error) {
	if kv == nil {
		return nil, errors.New("store cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Controller{
		runner: runner,
		store:  kv,
		logger: logger.With(zap.String("component", "controller")),
	}, nil
}

// Handle routes req by kind.
func (c *Controller) Handle(ctx context.Context, req schemas.Request) schemas.Response {
	c.logger.Debug("Handling request.", zap.String("kind", string(req.Kind)), zap.String("request_id", req.ID))

	var resp schemas.Response
	switch req.Kind {
	case schemas.RequestProcessTasks:
		resp = c.processTasks(ctx, req)
	case schemas.RequestSaveConfiguration:
		resp = c.saveConfiguration(ctx, req)
	case schemas.RequestLoadConfiguration:
		resp = c.loadConfiguration(ctx, req)
	case schemas.RequestDeleteConfiguration:
		resp = c.deleteConfiguration(ctx, req)
	case schemas.RequestListConfigurationNames:
		resp = c.listConfigurationNames(ctx)
	default:
		c.logger.Warn("Unhandled request.", zap.String("kind", string(req.Kind)))
		resp = schemas.ErrorResponse(fmt.Sprintf("unhandled request: %s", req.Kind))
	}
	resp.ID = req.ID
	return resp
}

func (c *Controller) processTasks(ctx context.Context, req schemas.Request) schemas.Response {
	if c.runner == nil {
		return schemas.ErrorResponse("task runner unavailable")
	}
	outcome := c.runner.Process(ctx, req.Tasks)
	return schemas.Response{
		Status:  outcome.Status,
		Message: outcome.Message,
		Outcome: &outcome,
	}
}

func (c *Controller) saveConfiguration(ctx context.Context, req schemas.Request) schemas.Response {
	if req.Name == "" || req.RawContent == "" {
		return schemas.ErrorResponse("name and rawContent are required")
	}
	if err := c.store.Set(ctx, configKey(req.Name), req.RawContent); err != nil {
		c.logger.Error("Failed to save configuration.", zap.String("name", req.Name), zap.Error(err))
		return schemas.ErrorResponse(err.Error())
	}
	c.logger.Info("Configuration saved.", zap.String("name", req.Name))
	return schemas.Response{Status: schemas.StatusSuccess}
}

func (c *Controller) loadConfiguration(ctx context.Context, req schemas.Request) schemas.Response {
	if req.Name == "" {
		return schemas.ErrorResponse("name is required")
	}
	raw, err := c.store.Get(ctx, configKey(req.Name))
	if errors.Is(err, store.ErrNotFound) {
		return schemas.ErrorResponse(fmt.Sprintf("configuration %q not found", req.Name))
	}
	if err != nil {
		c.logger.Error("Failed to load configuration.", zap.String("name", req.Name), zap.Error(err))
		return schemas.ErrorResponse(err.Error())
	}
	return schemas.Response{Status: schemas.StatusSuccess, RawContent: raw}
}

func (c *Controller) deleteConfiguration(ctx context.Context, req schemas.Request) schemas.Response {
	if req.Name == "" {
		return schemas.ErrorResponse("name is required")
	}
	if err := c.store.Delete(ctx, configKey(req.Name)); err != nil {
		c.logger.Error("Failed to delete configuration.", zap.String("name", req.Name), zap.Error(err))
		return schemas.ErrorResponse(err.Error())
	}
	c.logger.Info("Configuration deleted.", zap.String("name", req.Name))
	return schemas.Response{Status: schemas.StatusSuccess}
}

func (c *Controller) listConfigurationNames(ctx context.Context) schemas.Response {
	keys, err := c.store.Keys(ctx, ConfigPrefix)
	if err != nil {
		c.logger.Error("Failed to list configurations.", zap.Error(err))
		return schemas.ErrorResponse(err.Error())
	}
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		if name := strings.TrimPrefix(key, ConfigPrefix); name != key {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return schemas.Response{Status: schemas.StatusSuccess, Names: names}
}

func configKey(name string) string {
	return ConfigPrefix + name
}
