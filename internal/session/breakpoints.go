/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package session

// BreakpointBinder is the external collaborator that resolves bound breakpoints against
// modules loaded by a runtime. Address resolution and symbol lookup are entirely its
// concern; the manager only invokes its lifecycle hooks (§4.8, and §1's explicit exclusion
// of "the bound-breakpoint binding logic").
type BreakpointBinder interface {
	// InitializeForEngine binds every currently-configured breakpoint against the engine's
	// runtime, once it has connected.
	InitializeForEngine(engine Engine, runtime *Runtime) error

	// RemoveForRuntime unbinds everything associated with runtime, once its engine has
	// disconnected.
	RemoveForRuntime(runtime *Runtime)

	// AddForModules binds breakpoints newly resolvable against the given modules.
	AddForModules(runtime *Runtime, moduleIDs []string) error

	// RemoveForModules unbinds breakpoints that referenced the given modules.
	RemoveForModules(runtime *Runtime, moduleIDs []string)

	// SubscribeModuleRefresh registers onRefresh to be called whenever an external
	// module-refresh notifier reports that the given modules on the given runtime may now
	// resolve bindings that didn't resolve the first time around (§4.8 "On external
	// module-refresh notification"). The returned cancel func stops the subscription. A binder
	// with no such external notifier source returns a no-op cancel.
	SubscribeModuleRefresh(onRefresh func(runtime *Runtime, moduleIDs []string)) (cancel func())
}

// noopBreakpointBinder is used when the manager is constructed without a binder: every hook
// is a no-op, so bound-breakpoint maintenance is simply skipped.
type noopBreakpointBinder struct{}

func (noopBreakpointBinder) InitializeForEngine(Engine, *Runtime) error { return nil }
func (noopBreakpointBinder) RemoveForRuntime(*Runtime)                  {}
func (noopBreakpointBinder) AddForModules(*Runtime, []string) error     { return nil }
func (noopBreakpointBinder) RemoveForModules(*Runtime, []string)        {}

func (noopBreakpointBinder) SubscribeModuleRefresh(func(*Runtime, []string)) func() {
	return func() {}
}

var _ BreakpointBinder = noopBreakpointBinder{}

// moduleRefreshSubscription wraps the cancel func returned by BreakpointBinder.
// SubscribeModuleRefresh so the manager can tear it down on shutdown.
type moduleRefreshSubscription struct {
	cancel func()
}

func (s *moduleRefreshSubscription) Cancel() {
	if s != nil && s.cancel != nil {
		s.cancel()
	}
}

// subscribeModuleRefresh registers the manager's own re-add handler with the configured
// binder, once, as part of Start's one-time initialization (§4.4 step 2).
func (m *Manager) subscribeModuleRefresh() {
	cancel := m.binder.SubscribeModuleRefresh(m.onModuleRefresh)

	m.lock.Lock()
	m.moduleRefreshSub = &moduleRefreshSubscription{cancel: cancel}
	m.lock.Unlock()
}

// onModuleRefresh re-adds bindings for moduleIDs against runtime in response to an external
// module-refresh notification (§4.8). The binder call is posted onto the dispatcher, since the
// notifier may fire from any goroutine.
func (m *Manager) onModuleRefresh(runtime *Runtime, moduleIDs []string) {
	if runtime == nil || len(moduleIDs) == 0 {
		return
	}
	m.post(func() {
		if err := m.binder.AddForModules(runtime, moduleIDs); err != nil {
			m.log.Error(err, "failed to re-add bindings for external module refresh")
		}
	})
}
