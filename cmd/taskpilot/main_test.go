package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetMocks restores the real function implementations.
func resetMocks() {
	osWriteFile = os.WriteFile
	osExit = os.Exit
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 0, exitCode(fmt.Errorf("run abandoned: %w", context.Canceled)))
	assert.Equal(t, 1, exitCode(errors.New("run failed: no tasks")))
}

func TestHandlePanic(t *testing.T) {
	defer resetMocks()

	var (
		written  []byte
		exitedAs = -1
	)
	osWriteFile = func(name string, data []byte, perm os.FileMode) error {
		assert.Equal(t, panicLogFile, name)
		written = data
		return nil
	}
	osExit = func(code int) { exitedAs = code }

	func() {
		defer handlePanic()
		panic("boom")
	}()

	require.NotNil(t, written)
	assert.Contains(t, string(written), "panic: boom")
	assert.Contains(t, string(written), "goroutine")
	assert.Equal(t, 2, exitedAs)
}

func TestHandlePanic_LogWriteFails(t *testing.T) {
	defer resetMocks()

	exitedAs := -1
	osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only fs") }
	osExit = func(code int) { exitedAs = code }

	func() {
		defer handlePanic()
		panic("boom")
	}()
	assert.Equal(t, 2, exitedAs)
}

func TestHandlePanic_NoPanic(t *testing.T) {
	defer resetMocks()

	called := false
	osExit = func(int) { called = true }
	func() {
		defer handlePanic()
	}()
	assert.False(t, called)
}
