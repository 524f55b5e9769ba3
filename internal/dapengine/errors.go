/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dapengine

import (
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/go-logr/logr"
)

var (
	// ErrTransportClosed is returned when attempting to use a closed transport.
	ErrTransportClosed = errors.New("dapengine: transport is closed")

	// ErrRequestTimeout is returned when a request to the adapter times out waiting for a response.
	ErrRequestTimeout = errors.New("dapengine: request timeout")

	// ErrAdapterExited is returned when the adapter process exits before responding.
	ErrAdapterExited = errors.New("dapengine: adapter process exited")
)

// IsTransportError returns true if the error indicates a transport-related failure:
// a closed transport, a timed-out request, or an adapter that exited mid-request.
func IsTransportError(err error) bool {
	return errors.Is(err, ErrTransportClosed) ||
		errors.Is(err, ErrRequestTimeout) ||
		errors.Is(err, ErrAdapterExited)
}

// filterContextError filters out redundant context errors during shutdown.
// If err is a context.Canceled or context.DeadlineExceeded and ctx is already
// done, it is logged at debug level and nil is returned. An exec.ExitError from
// a process killed as a side effect of context cancellation is filtered the
// same way. Otherwise err is returned unchanged.
func filterContextError(err error, ctx context.Context, log logr.Logger) error {
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.V(1).Info("filtering redundant context error", "error", err)
			return nil
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && strings.Contains(exitErr.Error(), "signal: killed") {
			log.V(1).Info("filtering process killed error on context cancellation", "error", err)
			return nil
		}
	}

	return err
}
