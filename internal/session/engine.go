/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package session

import "context"

// StartKind distinguishes an engine that spawned its debuggee from one that attached to an
// already-running process.
type StartKind int

const (
	StartKindLaunch StartKind = iota
	StartKindAttach
)

// BreakKind names a distinguished event at which an engine should request an initial pause.
type BreakKind int

const (
	BreakKindNone BreakKind = iota
	BreakKindCreateProcess
)

// EngineState is the lifecycle state of a single attached engine.
type EngineState int

const (
	EngineStateStarting EngineState = iota
	EngineStateRunning
	EngineStatePaused
)

func (s EngineState) String() string {
	switch s {
	case EngineStateStarting:
		return "Starting"
	case EngineStateRunning:
		return "Running"
	case EngineStatePaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// Engine is the contract implemented by every concrete debugger backend. The manager treats
// an Engine as an opaque handle: it never inspects the debuggee, only routes messages and
// control calls.
type Engine interface {
	// DebugTags returns the immutable tag set contributed by this engine, captured once at
	// construction.
	DebugTags() []string

	// StartKind reports whether this engine attached to an existing process or launched one.
	StartKind() StartKind

	// CanDetach reports whether this engine supports detaching without terminating its
	// debuggee.
	CanDetach() bool

	// Start begins the engine's connection sequence. It must not block; the resulting
	// Connected/Disconnected message arrives later on Messages.
	Start(ctx context.Context, options any) error

	// PreContinue is invoked immediately before Run, whenever an engine is about to resume a
	// paused runtime. It exists for engine-specific state that only matters at resume time and
	// that the manager has no way to interpret itself, since it never inspects the debuggee;
	// most engines have nothing to do here.
	PreContinue(ctx context.Context) error

	Run() error
	Break() error
	Detach() error
	Terminate() error

	// OnConnected is invoked once, after the manager has constructed the Runtime and
	// ObjectFactory for this engine but before the runtime is attached to its process.
	OnConnected(ctx context.Context, factory *ObjectFactory, runtime *Runtime) error

	// Close releases any resources held by the engine. Called on the dispatcher thread.
	Close(ctx context.Context) error

	// Messages delivers engine-originated messages in the order the backend produced them.
	// The manager re-posts every value read from this channel onto the dispatcher.
	Messages() <-chan EngineMessage
}

// EngineProvider constructs an Engine for a given set of start options. Providers are walked
// in ascending Priority order; the first to return a non-nil engine wins.
type EngineProvider interface {
	// Priority orders providers relative to one another; lower runs first.
	Priority() int

	// Kind names the provider for diagnostics and case-insensitive provider lookup.
	Kind() string

	// Create attempts to build an engine for options, returning (nil, nil) to decline.
	Create(mgr *Manager, options any) (Engine, error)
}
