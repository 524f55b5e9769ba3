/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dapengine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/dsmgr/dsm/pkg/process"

	"github.com/go-logr/logr"
)

// ErrInvalidAdapterConfig is returned when the debug adapter configuration is invalid.
var ErrInvalidAdapterConfig = errors.New("invalid debug adapter configuration: Args must have at least one element")

// LaunchedAdapter represents a running debug adapter process with its transport.
type LaunchedAdapter struct {
	// Transport provides DAP message I/O with the debug adapter.
	Transport Transport

	// pid is the process ID of the debug adapter.
	pid process.Pid_t

	// startTime is the process start time (used for process identity).
	startTime time.Time

	// executor is the process executor used for lifecycle management.
	executor process.Executor

	// done signals when the process has exited.
	done chan struct{}

	// exitCode contains the process exit code (if any).
	exitCode int32

	// exitErr contains the process exit error (if any).
	exitErr error

	// mu protects exitCode and exitErr.
	mu sync.Mutex
}

// Wait blocks until the debug adapter process exits.
// Returns the exit error if the process exited with an error.
func (la *LaunchedAdapter) Wait() error {
	<-la.done
	la.mu.Lock()
	defer la.mu.Unlock()
	return la.exitErr
}

// ExitCode returns the process exit code. Only valid after Wait() returns.
func (la *LaunchedAdapter) ExitCode() int32 {
	la.mu.Lock()
	defer la.mu.Unlock()
	return la.exitCode
}

// Pid returns the process ID of the debug adapter.
func (la *LaunchedAdapter) Pid() process.Pid_t {
	return la.pid
}

// Done returns a channel that is closed when the debug adapter process exits.
func (la *LaunchedAdapter) Done() <-chan struct{} {
	return la.done
}

// Close cleans up the adapter resources.
// This closes the transport, but does NOT stop the process.
// The process is stopped automatically when the context passed to LaunchDebugAdapter is cancelled.
func (la *LaunchedAdapter) Close() error {
	if la.Transport != nil {
		return la.Transport.Close()
	}
	return nil
}

// Stop explicitly stops the debug adapter process.
// This is typically not needed as the process is stopped automatically when the context is cancelled.
func (la *LaunchedAdapter) Stop() error {
	if la.executor != nil && la.pid != process.UnknownPID {
		return la.executor.StopProcess(la.pid, la.startTime)
	}
	return nil
}

// LaunchDebugAdapter launches a debug adapter process over stdio using the provided
// configuration. The process lifetime is tied to the provided context - when the
// context is cancelled, the process is killed by the executor.
//
// The returned LaunchedAdapter provides:
// - Transport: for DAP message I/O with the adapter
// - Wait(): to block until the process exits
// - Done(): a channel that closes when the process exits
// - Pid(): the process ID
//
// The caller must close the Transport when done.
func LaunchDebugAdapter(ctx context.Context, executor process.Executor, config *DebugAdapterConfig, log logr.Logger) (*LaunchedAdapter, error) {
	if config == nil || len(config.Args) == 0 {
		return nil, ErrInvalidAdapterConfig
	}

	cmd := exec.Command(config.Args[0], config.Args[1:]...)
	cmd.Env = buildEnv(config)

	stdin, stdinErr := cmd.StdinPipe()
	if stdinErr != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", stdinErr)
	}

	stdout, stdoutErr := cmd.StdoutPipe()
	if stdoutErr != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", stdoutErr)
	}

	stderr, stderrErr := cmd.StderrPipe()
	if stderrErr != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", stderrErr)
	}

	adapter := &LaunchedAdapter{
		executor: executor,
		done:     make(chan struct{}),
		exitCode: process.UnknownExitCode,
	}

	exitHandler := process.ProcessExitHandlerFunc(func(pid process.Pid_t, exitCode int32, err error) {
		adapter.mu.Lock()
		adapter.exitCode = exitCode
		adapter.exitErr = err
		adapter.mu.Unlock()
		close(adapter.done)

		if err != nil {
			log.V(1).Info("debug adapter process exited with error",
				"pid", pid,
				"exitCode", exitCode,
				"error", err)
		} else {
			log.V(1).Info("debug adapter process exited",
				"pid", pid,
				"exitCode", exitCode)
		}
	})

	pid, startTime, startWaitForExit, startErr := executor.StartProcess(ctx, cmd, exitHandler, process.CreationFlagEnsureKillOnDispose)
	if startErr != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("failed to start debug adapter: %w", startErr)
	}

	// Start waiting for process exit.
	startWaitForExit()

	go logStderr(stderr, log)

	log.Info("launched debug adapter process",
		"command", config.Args[0],
		"args", config.Args[1:],
		"pid", pid)

	adapter.Transport = NewStdioTransport(stdout, stdin)
	adapter.pid = pid
	adapter.startTime = startTime

	return adapter, nil
}

// buildEnv builds the environment for the adapter process.
func buildEnv(config *DebugAdapterConfig) []string {
	env := os.Environ()
	for _, e := range config.Env {
		env = append(env, e.Name+"="+e.Value)
	}
	return env
}

// logStderr reads and logs stderr from the adapter until it closes.
func logStderr(stderr interface{ Read([]byte) (int, error) }, log logr.Logger) {
	buf := make([]byte, 1024)
	for {
		n, readErr := stderr.Read(buf)
		if n > 0 {
			log.Info("debug adapter stderr", "output", string(buf[:n]))
		}
		if readErr != nil {
			return
		}
	}
}
