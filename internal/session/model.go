/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package session

import (
	"context"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ProcessState is the join of the states of every runtime attached to a Process.
type ProcessState int

const (
	ProcessStateRunning ProcessState = iota
	ProcessStatePaused
	ProcessStateTerminated
)

func (s ProcessState) String() string {
	switch s {
	case ProcessStateRunning:
		return "Running"
	case ProcessStatePaused:
		return "Paused"
	case ProcessStateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// DbgObject is anything the manager owns exclusively and that must be closed exactly once,
// asynchronously, through the close queue.
type DbgObject interface {
	Close(ctx context.Context) error
}

// Runtime is a single execution environment inside a Process that one Engine is attached to.
// A Process may host several Runtimes concurrently (e.g. mixed-mode debugging).
type Runtime struct {
	ID        string
	Process   *Process
	CreatedAt metav1.Time
}

func (r *Runtime) Close(ctx context.Context) error { return nil }

var _ DbgObject = (*Runtime)(nil)

// ObjectFactory is bound to a single (runtime, engine) pair and is the manager's handle for
// creating engine-specific debug objects (frames, values, and the like). Its concrete
// behavior is entirely engine-defined; the manager only owns its lifetime.
type ObjectFactory struct {
	Runtime *Runtime
	Engine  Engine
}

func (f *ObjectFactory) Close(ctx context.Context) error { return nil }

var _ DbgObject = (*ObjectFactory)(nil)

// Process is an OS process the manager is tracking, keyed by pid. At most one record exists
// per pid at a time.
type Process struct {
	Pid          int32
	ShouldDetach bool
	State        ProcessState
	ExitCode     int32
	CreatedAt    metav1.Time

	// runtimes currently attached to this process, keyed by runtime ID.
	runtimes map[string]*Runtime
}

func newProcess(pid int32, shouldDetach bool) *Process {
	return &Process{
		Pid:          pid,
		ShouldDetach: shouldDetach,
		State:        ProcessStateRunning,
		CreatedAt:    metav1.Now(),
		runtimes:     make(map[string]*Runtime),
	}
}

func (p *Process) attach(rt *Runtime) {
	p.runtimes[rt.ID] = rt
	rt.Process = p
}

func (p *Process) detach(runtimeID string) {
	delete(p.runtimes, runtimeID)
}

func (p *Process) runtimeCount() int {
	return len(p.runtimes)
}

// Runtimes returns a stable snapshot of the runtimes currently attached to this process.
func (p *Process) Runtimes() []*Runtime {
	rts := make([]*Runtime, 0, len(p.runtimes))
	for _, rt := range p.runtimes {
		rts = append(rts, rt)
	}
	return rts
}

// EngineInfo is the manager's record for a single attached engine (§3 Engine record).
type EngineInfo struct {
	Engine Engine

	Process       *Process
	Runtime       *Runtime
	ObjectFactory *ObjectFactory

	State     EngineState
	DebugTags []string
	BreakKind BreakKind

	delayedIsRunning bool
	exception        *Exception
	breakThread      string

	messageSub func() // cancels the message-pump subscription for this engine
}

func newStartingEngineInfo(engine Engine, breakKind BreakKind) *EngineInfo {
	return &EngineInfo{
		Engine:    engine,
		State:     EngineStateStarting,
		DebugTags: append([]string(nil), engine.DebugTags()...),
		BreakKind: breakKind,
	}
}
