/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

// Package session implements the Debug Session Manager: the coordination core that owns a
// set of attached debug engines, serializes their messages onto a single dispatcher thread,
// tracks derived run/pause state, and exposes a unified Start/Run/Break/Detach/Terminate
// control surface.
package session

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/dsmgr/dsm/pkg/concurrency"
	"github.com/go-logr/logr"
)

// Config carries the user-facing feature flags that change how messages are handled.
type Config struct {
	// BreakAllProcesses, when set, upgrades every per-process Run into RunAll and makes
	// every engine pause start a BreakAll, so a per-process Break ends as a break-all.
	BreakAllProcesses bool

	// IgnoreBreakInstructions, when false, forces a pause on ProgramBreak messages that
	// don't carry the Continue flag.
	IgnoreBreakInstructions bool
}

// Option configures a Manager at construction time.
type Option func(*Manager)

func WithLogger(log logr.Logger) Option {
	return func(m *Manager) { m.log = log }
}

func WithEngineProviders(providers ...EngineProvider) Option {
	return func(m *Manager) { m.providers = newProviderRegistry(providers) }
}

func WithBreakpointBinder(binder BreakpointBinder) Option {
	return func(m *Manager) { m.binder = binder }
}

// WithHostPid overrides the pid treated as "self" for canDebugRuntime's self-debug refusal.
// Defaults to the current process's pid.
func WithHostPid(pid int32) Option {
	return func(m *Manager) { m.hostPid = pid }
}

// Manager is the Debug Session Manager's public facade (§6).
type Manager struct {
	log         logr.Logger
	lifetimeCtx context.Context
	cancel      context.CancelFunc

	dispatcher *dispatcher
	events     *eventHub
	closeQ     *closeQueue

	config Config
	hostPid int32

	// lock guards every field below, for access from foreign (non-dispatcher) threads.
	// The dispatcher thread itself always holds it too, except while invoking external
	// callbacks (engine methods, observers) per §5 "External observers are invoked with no
	// locks held."
	lock sync.Mutex

	engines   *engineRegistry
	processes *processRegistry
	tags      *tagMultiset
	providers *providerRegistry
	binder    BreakpointBinder

	isDebugging    bool
	isRunning      IsRunning
	delayedRunning *delayedIsRunningNotifier

	restartOptions []any

	startJob         *concurrency.OneTimeJob[struct{}]
	startListeners   []func()
	moduleRefreshSub *moduleRefreshSubscription

	breakAllHelper     *breakAllHelper
	stopDebuggingHelper *stopDebuggingHelper

	currentProcess *Process
	currentRuntime *Runtime

	closed bool
}

// NewManager constructs a Manager. The returned Manager runs its dispatcher and close-queue
// drains until ctx is cancelled or Close is called.
func NewManager(ctx context.Context, config Config, opts ...Option) *Manager {
	lifetimeCtx, cancel := context.WithCancel(ctx)

	m := &Manager{
		log:         logr.Discard(),
		lifetimeCtx: lifetimeCtx,
		cancel:      cancel,
		config:      config,
		hostPid:     int32(os.Getpid()),
		engines:     newEngineRegistry(),
		processes:   newProcessRegistry(),
		tags:        newTagMultiset(),
		providers:   newProviderRegistry(nil),
		binder:      noopBreakpointBinder{},
		isRunning:   IsRunningFalse,
		startJob:    concurrency.NewOneTimeJob[struct{}](),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.dispatcher = newDispatcher(lifetimeCtx, m.log)
	m.events = newEventHub(lifetimeCtx)
	m.closeQ = newCloseQueue(m.dispatcher.post, m.dispatcher.dbgThreadContext(), m.log)
	m.delayedRunning = newDelayedIsRunningNotifier(lifetimeCtx, m.onDelayedIsRunningSettled)

	context.AfterFunc(lifetimeCtx, m.shutdown)

	return m
}

func (m *Manager) shutdown() {
	m.lock.Lock()
	sub := m.moduleRefreshSub
	m.closed = true
	m.lock.Unlock()

	sub.Cancel()
}

// Close cancels the manager's lifetime context, tearing down the dispatcher, any in-flight
// helper state machines, and every attached engine's message subscription.
func (m *Manager) Close() {
	m.cancel()
}

// Subscribe registers sink to receive every discrete lifecycle Event until the returned
// cancel func is called.
func (m *Manager) Subscribe(sink chan<- Event) func() {
	return m.events.Subscribe(sink)
}

// OnMessage registers a synchronous observer for the broad Message channel; observers may
// set MessageEvent.Pause to request that the pump keep the engine stopped.
func (m *Manager) OnMessage(observer MessageObserver) {
	m.events.OnMessage(observer)
}

// OnStart registers a listener invoked once, on the very first Start call, after the
// bound-breakpoint subsystem has been initialized (§4.4 step 2).
func (m *Manager) OnStart(listener func()) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.startListeners = append(m.startListeners, listener)
}

// IsDebugging reports whether any engine is currently attached.
func (m *Manager) IsDebugging() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.isDebugging
}

// IsRunningState reports the current ternary running state.
func (m *Manager) IsRunningState() IsRunning {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.isRunning
}

// DebugTags returns a snapshot of the currently-present tags.
func (m *Manager) DebugTags() []string {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.tags.snapshot()
}

// Processes returns a snapshot of the currently-tracked processes.
func (m *Manager) Processes() []*Process {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.processes.snapshot()
}

// CanRestart reports whether Restart is currently callable (§6, scenario 3).
func (m *Manager) CanRestart() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.canRestartLocked()
}

func (m *Manager) canRestartLocked() bool {
	return m.breakAllHelper == nil && m.stopDebuggingHelper == nil && len(m.restartOptions) > 0
}

// CanDetachWithoutTerminating is the conjunction over engines of their CanDetach.
func (m *Manager) CanDetachWithoutTerminating() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	for _, info := range m.engines.snapshot() {
		if !info.Engine.CanDetach() {
			return false
		}
	}
	return true
}

// CanDebugRuntime reports whether (pid, runtimeID) is eligible to be attached: false if pid
// is the hosting process, or the pair is already under debugging.
func (m *Manager) CanDebugRuntime(pid int32, runtimeID string) bool {
	if pid == m.hostPid {
		return false
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	return !m.processes.isDebugged(pid, runtimeID)
}

// WriteMessage emits a DbgManagerMessage event for logging consumers (§6).
func (m *Manager) WriteMessage(kind UserMessageKind, text string) {
	m.events.emit(Event{
		Kind: EventDbgManagerMessage,
		DbgManagerMessage: &DbgManagerMessagePayload{Kind: kind, Text: text},
	})
}

// CloseObject enqueues a single DbgObject for asynchronous, dispatcher-ordered closing.
func (m *Manager) CloseObject(obj DbgObject) {
	invariant(obj != nil, "CloseObject called with a nil object")
	m.closeQ.close(obj)
}

// CloseObjects enqueues a batch of DbgObjects for asynchronous, dispatcher-ordered closing.
func (m *Manager) CloseObjects(objs []DbgObject) {
	m.closeQ.closeAll(objs)
}

func (m *Manager) post(f func()) {
	m.dispatcher.post(f)
}

func (m *Manager) err(format string, args ...any) error {
	return fmt.Errorf("session: "+format, args...)
}
