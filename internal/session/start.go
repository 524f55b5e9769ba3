/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package session

import "context"

// cloner lets start options defend against being mutated by the caller after Start returns;
// options that don't implement it are passed through as-is (value types are already copied by
// Go's assignment semantics).
type cloner interface {
	Clone() any
}

func cloneOptions(options any) any {
	if c, ok := options.(cloner); ok {
		return c.Clone()
	}
	return options
}

// breakKindProvider lets an Engine request an initial pause at a distinguished event; most
// engines don't need it, so it's optional.
type breakKindProvider interface {
	BreakKind() BreakKind
}

// Start begins attaching or launching a new engine for options (§4.4).
func (m *Manager) Start(options any) error {
	select {
	case <-m.lifetimeCtx.Done():
		return ErrManagerClosed
	default:
	}

	if m.startJob.TryTake() {
		m.subscribeModuleRefresh()
		m.runStartListeners()
		m.startJob.Complete(struct{}{})
	} else if !m.startJob.IsDone() {
		invariant(false, "Start called reentrantly while one-time initialization is still running")
	}

	// Clone twice: the factory gets its own clone to mutate freely; the canonical clone is
	// kept as the restart snapshot (§4.4 step 1).
	factoryOptions := cloneOptions(options)
	canonicalOptions := cloneOptions(options)

	engine, createErr := m.createEngine(factoryOptions)
	if createErr != nil {
		return m.err("engine construction failed: %v", createErr)
	}
	if engine == nil {
		return ErrNoProviderAccepted
	}

	m.lock.Lock()
	m.restartOptions = append(m.restartOptions, canonicalOptions)
	m.lock.Unlock()

	m.post(func() {
		m.startOnDbgThread(engine, factoryOptions)
	})

	return nil
}

func (m *Manager) runStartListeners() {
	m.lock.Lock()
	listeners := append([]func(){}, m.startListeners...)
	m.lock.Unlock()

	for _, listener := range listeners {
		listener()
	}
}

// createEngine walks the configured providers in ascending priority order; the first to
// return a non-nil engine wins (§4.4 step 3).
func (m *Manager) createEngine(factoryOptions any) (Engine, error) {
	return m.providers.walk(func(p EngineProvider) (Engine, error, bool) {
		engine, err := p.Create(m, factoryOptions)
		if err != nil {
			return nil, err, true
		}
		if engine != nil {
			return engine, nil, true
		}
		return nil, nil, false
	})
}

// startOnDbgThread appends the engine to the registry, raises the Start-order events, and
// only then subscribes to the engine's messages and invokes its Start method, so observers
// always see the engine in the registry before any message from it arrives (§4.4).
func (m *Manager) startOnDbgThread(engine Engine, factoryOptions any) {
	breakKind := BreakKindNone
	if bkp, ok := engine.(breakKindProvider); ok {
		breakKind = bkp.BreakKind()
	}

	info := newStartingEngineInfo(engine, breakKind)

	p := &pendingEmission{}
	m.lock.Lock()
	m.engines.add(info)
	p.tagsAdded = m.tags.add(info.DebugTags)
	m.recomputeLocked(p)
	m.lock.Unlock()

	if !p.empty() {
		m.flushStartOrder(p)
	}

	info.messageSub = m.subscribeEngineMessages(engine)

	if err := engine.Start(m.dispatcher.dbgThreadContext(), factoryOptions); err != nil {
		m.WriteMessage(UserMessageCouldNotConnect, err.Error())
		m.handleEngineGone(engine, ProcessExitCodeUnknown)
	}
}

// ProcessExitCodeUnknown is used when an engine disappears without ever reporting an exit
// code for its process.
const ProcessExitCodeUnknown int32 = -1

// subscribeEngineMessages re-posts every value read from engine.Messages() onto the
// dispatcher, preserving the order the backend produced them in (§5 "Ordering guarantees").
func (m *Manager) subscribeEngineMessages(engine Engine) func() {
	ctx, cancel := context.WithCancel(m.lifetimeCtx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-engine.Messages():
				if !ok {
					return
				}
				m.post(func() { m.handleMessage(engine, msg) })
			}
		}
	}()
	return cancel
}
