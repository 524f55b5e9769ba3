/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dapengine

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/dsmgr/dsm/internal/session"
	"github.com/dsmgr/dsm/pkg/process"
)

// Provider is a session.EngineProvider that launches a DAP-speaking debug adapter process and
// wraps it in an Engine. It only accepts start options of type *DebugAdapterConfig; every other
// options value is declined so other providers get a chance at it.
//
// The process is launched here, synchronously, so that by the time Start is called on the
// resulting Engine the adapter is already running and its Transport is ready for the DAP
// handshake.
type Provider struct {
	ctx      context.Context
	kind     string
	priority int
	executor process.Executor
	log      logr.Logger
}

var _ session.EngineProvider = (*Provider)(nil)

// NewProvider constructs a Provider. ctx bounds the lifetime of every adapter process the
// provider launches: cancelling it kills any adapter still running.
func NewProvider(ctx context.Context, kind string, priority int, log logr.Logger) *Provider {
	name := "dapengine-provider"
	if kind != "" {
		name = kind
	}
	return &Provider{
		ctx:      ctx,
		kind:     kind,
		priority: priority,
		executor: process.NewOSExecutor(log.WithName(name)),
		log:      log.WithName(name),
	}
}

func (p *Provider) Priority() int { return p.priority }
func (p *Provider) Kind() string  { return p.kind }

// Create launches the adapter process described by options and returns an Engine wrapping it.
// It declines (returns nil, nil) for any options value that is not a *DebugAdapterConfig.
func (p *Provider) Create(mgr *session.Manager, options any) (session.Engine, error) {
	config, ok := options.(*DebugAdapterConfig)
	if !ok {
		return nil, nil
	}

	adapter, err := LaunchDebugAdapter(p.ctx, p.executor, config, p.log)
	if err != nil {
		return nil, fmt.Errorf("dapengine: failed to launch debug adapter: %w", err)
	}

	return NewEngine(adapter, config, p.log), nil
}
