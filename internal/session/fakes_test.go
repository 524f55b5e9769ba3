/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package session

import (
	"context"
	"sync/atomic"
)

// fakeEngine is a test double for Engine. Every control method just counts its calls; message
// delivery is driven explicitly by tests writing onto messages.
type fakeEngine struct {
	tags      []string
	startKind StartKind
	canDetach bool
	breakKind BreakKind

	startErr      error
	onConnectErr  error
	breakErr      error

	messages chan EngineMessage

	startCount       atomic.Int32
	runCount         atomic.Int32
	breakCount       atomic.Int32
	detachCount      atomic.Int32
	terminateCount   atomic.Int32
	closeCount       atomic.Int32
	onConnectCount   atomic.Int32
	preContinueCount atomic.Int32
}

func newFakeEngine(tags ...string) *fakeEngine {
	return &fakeEngine{
		tags:      tags,
		canDetach: true,
		messages:  make(chan EngineMessage, 16),
	}
}

func (e *fakeEngine) DebugTags() []string { return e.tags }
func (e *fakeEngine) StartKind() StartKind { return e.startKind }
func (e *fakeEngine) CanDetach() bool      { return e.canDetach }
func (e *fakeEngine) BreakKind() BreakKind  { return e.breakKind }

func (e *fakeEngine) Start(ctx context.Context, options any) error {
	e.startCount.Add(1)
	return e.startErr
}

func (e *fakeEngine) PreContinue(ctx context.Context) error {
	e.preContinueCount.Add(1)
	return nil
}

func (e *fakeEngine) Run() error {
	e.runCount.Add(1)
	return nil
}

func (e *fakeEngine) Break() error {
	e.breakCount.Add(1)
	return e.breakErr
}

func (e *fakeEngine) Detach() error {
	e.detachCount.Add(1)
	e.messages <- DisconnectedMessage{ExitCode: ProcessExitCodeUnknown}
	return nil
}

func (e *fakeEngine) Terminate() error {
	e.terminateCount.Add(1)
	e.messages <- DisconnectedMessage{ExitCode: 0}
	return nil
}

func (e *fakeEngine) OnConnected(ctx context.Context, factory *ObjectFactory, runtime *Runtime) error {
	e.onConnectCount.Add(1)
	return e.onConnectErr
}

func (e *fakeEngine) Close(ctx context.Context) error {
	e.closeCount.Add(1)
	return nil
}

func (e *fakeEngine) Messages() <-chan EngineMessage { return e.messages }

func (e *fakeEngine) send(msg EngineMessage) { e.messages <- msg }

var _ Engine = (*fakeEngine)(nil)

// fakeProvider hands out pre-built engines in order, one per Create call, for tests that need
// to control exactly which *fakeEngine instance backs a given Start call.
type fakeProvider struct {
	kind     string
	priority int
	engines  []*fakeEngine

	createCount atomic.Int32
	createErr   error
}

func (p *fakeProvider) Priority() int  { return p.priority }
func (p *fakeProvider) Kind() string   { return p.kind }

func (p *fakeProvider) Create(mgr *Manager, options any) (Engine, error) {
	n := p.createCount.Add(1)
	if p.createErr != nil {
		return nil, p.createErr
	}
	idx := int(n) - 1
	if idx >= len(p.engines) {
		return nil, nil
	}
	return p.engines[idx], nil
}

var _ EngineProvider = (*fakeProvider)(nil)
