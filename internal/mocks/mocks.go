// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/taskpilot/api/schemas"
	"github.com/xkilldash9x/taskpilot/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Database() config.DatabaseConfig {
	args := m.Called()
	return args.Get(0).(config.DatabaseConfig)
}

func (m *MockConfig) Store() config.StoreConfig {
	args := m.Called()
	return args.Get(0).(config.StoreConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Scheduler() config.SchedulerConfig {
	args := m.Called()
	return args.Get(0).(config.SchedulerConfig)
}

func (m *MockConfig) Channel() config.ChannelConfig {
	args := m.Called()
	return args.Get(0).(config.ChannelConfig)
}

func (m *MockConfig) Server() config.ServerConfig {
	args := m.Called()
	return args.Get(0).(config.ServerConfig)
}

// --- Setters ---

func (m *MockConfig) SetBrowserEngine(engine string)           { m.Called(engine) }
func (m *MockConfig) SetBrowserHeadless(b bool)                { m.Called(b) }
func (m *MockConfig) SetBrowserStartURL(url string)            { m.Called(url) }
func (m *MockConfig) SetSchedulerWaitStrategy(strategy string) { m.Called(strategy) }

// -- Page Mock --

// MockPage mocks dispatcher.Page.
type MockPage struct {
	mock.Mock
}

func (m *MockPage) SetValue(ctx context.Context, selector, value string) error {
	return m.Called(ctx, selector, value).Error(0)
}

func (m *MockPage) Click(ctx context.Context, selector string) error {
	return m.Called(ctx, selector).Error(0)
}

func (m *MockPage) Read(ctx context.Context, selector, attribute string) (string, error) {
	args := m.Called(ctx, selector, attribute)
	return args.String(0), args.Error(1)
}

func (m *MockPage) SelectByText(ctx context.Context, selector, text string) error {
	return m.Called(ctx, selector, text).Error(0)
}

// -- Channel Mock --

// MockChannel mocks channel.Channel.
type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) Send(ctx context.Context, to string, req schemas.ExecuteTaskRequest) (schemas.TaskResponse, error) {
	args := m.Called(ctx, to, req)
	return args.Get(0).(schemas.TaskResponse), args.Error(1)
}

// -- Target Mocks --

// MockTarget mocks scheduler.Target.
type MockTarget struct {
	mock.Mock
}

func (m *MockTarget) Name() string { return m.Called().String(0) }

func (m *MockTarget) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

// MockReadyTarget is a MockTarget that can also signal readiness.
type MockReadyTarget struct {
	MockTarget
}

func (m *MockReadyTarget) Ready(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// -- Store Mock --

// MockKeyValueStore mocks store.KeyValue.
type MockKeyValueStore struct {
	mock.Mock
}

func (m *MockKeyValueStore) Set(ctx context.Context, key, value string) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *MockKeyValueStore) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockKeyValueStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockKeyValueStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// -- Runner Mock --

// MockRunner mocks controller.Runner.
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Process(ctx context.Context, tasks []schemas.TaskDescriptor) schemas.RunOutcome {
	return m.Called(ctx, tasks).Get(0).(schemas.RunOutcome)
}
