/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package session

import (
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/dsmgr/dsm/pkg/pointers"
)

// handleMessage is the entry point for every message re-posted onto the dispatcher by
// subscribeEngineMessages. It runs the "is still one of ours" check before doing anything
// else: a disconnect racing an in-flight message is a normal condition, not an error (§4.5,
// §7 "Lifecycle mis-match").
func (m *Manager) handleMessage(engine Engine, msg EngineMessage) {
	m.lock.Lock()
	info, found := m.engines.find(engine)
	m.lock.Unlock()
	if !found {
		return
	}

	switch typed := msg.(type) {
	case ConnectedMessage:
		m.handleConnected(engine, info, typed)
	case DisconnectedMessage:
		m.handleDisconnected(engine, info, typed)
	case BreakMessage:
		m.handleBreak(engine, info, typed)
	case *ConditionalBreakMessage:
		m.handleConditionalBreak(engine, info, typed)
	default:
		// Unknown engine message: a programmer error in a backend implementation, not user
		// input, but not worth crashing a running debug session over either.
		m.log.Error(nil, "unknown engine message kind", "kind", msg.Kind())
	}
}

func (m *Manager) emitObserverMessage(evt *MessageEvent) bool {
	return m.events.dispatchMessage(m.dispatcher.dbgThreadContext(), evt)
}

// handleConnected implements §4.5 "Connected".
func (m *Manager) handleConnected(engine Engine, info *EngineInfo, msg ConnectedMessage) {
	if msg.Error != "" {
		m.WriteMessage(UserMessageCouldNotConnect, msg.Error)
		m.handleEngineGone(engine, ProcessExitCodeUnknown)
		return
	}

	shouldDetach := engine.StartKind() == StartKindAttach

	m.lock.Lock()
	proc, created := m.processes.getOrCreate(msg.Pid, shouldDetach)
	runtime := &Runtime{ID: msg.RuntimeID, CreatedAt: metav1.Now()}
	factory := &ObjectFactory{Runtime: runtime, Engine: engine}
	info.Runtime = runtime
	info.ObjectFactory = factory
	isNewRuntime := m.processes.addDebuggedRuntime(msg.Pid, msg.RuntimeID)
	m.lock.Unlock()

	invariant(isNewRuntime, "Connected reported an already-debugged (pid, runtimeId) pair")

	// The engine callback runs before the runtime is attached to its process, so engine-
	// supplied runtime data is visible when RuntimeCreated is raised (§5).
	if err := engine.OnConnected(m.dispatcher.dbgThreadContext(), factory, runtime); err != nil {
		m.WriteMessage(UserMessageCouldNotConnect, err.Error())
		m.handleEngineGone(engine, ProcessExitCodeUnknown)
		return
	}

	m.lock.Lock()
	proc.attach(runtime)
	info.Process = proc
	info.State = EngineStatePaused
	info.delayedIsRunning = false
	info.breakThread = ""
	m.lock.Unlock()

	if err := m.binder.InitializeForEngine(engine, runtime); err != nil {
		m.log.Error(err, "failed to initialize bound breakpoints for engine")
	}

	pcVote := false
	if created {
		m.events.emit(Event{
			Kind:             EventProcessesChanged,
			ProcessesChanged: &ProcessesChangedPayload{Diff: DiffAdded, Processes: []*Process{proc}},
		})
		pcVote = m.emitObserverMessage(&MessageEvent{Kind: ObserverMsgProcessCreated, Process: proc})
	}
	rcVote := m.emitObserverMessage(&MessageEvent{Kind: ObserverMsgRuntimeCreated, Runtime: runtime, Process: proc})

	m.lock.Lock()
	breakAllActive := m.breakAllHelper != nil
	m.lock.Unlock()

	pauseProgram := msg.Flags.Pause || info.BreakKind == BreakKindCreateProcess || breakAllActive || pcVote || rcVote

	if pauseProgram {
		m.onEnginePaused(engine, info, true)
		return
	}

	m.resumeAfterConnect(engine, info)
}

func (m *Manager) resumeAfterConnect(engine Engine, info *EngineInfo) {
	m.lock.Lock()
	info.State = EngineStateRunning
	p := &pendingEmission{}
	m.recomputeLocked(p)
	m.lock.Unlock()

	if !p.empty() {
		m.flushStartOrder(p)
	}

	if err := engine.Run(); err != nil {
		m.log.Error(err, "engine.Run failed after Connected")
	}
}

// handleDisconnected implements §4.5 "Disconnected (and failure-Connected)".
func (m *Manager) handleDisconnected(engine Engine, info *EngineInfo, msg DisconnectedMessage) {
	m.handleEngineGone(engine, msg.ExitCode)
}

// handleEngineGone is the shared teardown path for both a reported Disconnected message and
// a Connected message that carried a failure string.
func (m *Manager) handleEngineGone(engine Engine, exitCode int32) {
	m.lock.Lock()
	info, found := m.engines.remove(engine)
	if !found {
		m.lock.Unlock()
		return
	}

	p := &pendingEmission{}
	p.tagsRemoved = m.tags.remove(info.DebugTags)

	var exitedProcess *Process
	if info.Process != nil && info.Runtime != nil {
		info.Process.detach(info.Runtime.ID)
		m.processes.removeDebuggedRuntime(info.Process.Pid, info.Runtime.ID)

		if info.Process.runtimeCount() == 0 {
			info.Process.State = ProcessStateTerminated
			info.Process.ExitCode = exitCode
			m.processes.remove(info.Process.Pid)
			exitedProcess = info.Process
			p.processesRemoved = []*Process{info.Process}
		} else {
			info.Process.State = recomputeProcessState(info.Process, m.engines.forProcess(info.Process))
		}
	}

	m.recomputeLocked(p)

	reselect := m.currentProcess == info.Process && info.Process != nil
	if reselect {
		m.currentProcess = nil
		m.currentRuntime = nil
	}
	m.lock.Unlock()

	if info.messageSub != nil {
		info.messageSub()
	}

	if info.Runtime != nil {
		m.binder.RemoveForRuntime(info.Runtime)
		m.emitObserverMessage(&MessageEvent{Kind: ObserverMsgRuntimeExited, Runtime: info.Runtime, Process: info.Process})
	}
	if exitedProcess != nil {
		m.emitObserverMessage(&MessageEvent{
			Kind:    ObserverMsgProcessExited,
			Process: exitedProcess,
			Text:    fmt.Sprintf("exit=%d", exitCode),
		})
	}

	if info.exception != nil {
		m.CloseObject(info.exception)
		info.exception = nil
	}

	if !p.empty() {
		m.flushStopOrder(p)
	}

	if reselect {
		m.reselectCurrentProcess()
	}

	m.breakAllOnEngineGone(engine)
	m.stopDebuggingHelperOnEngineGone(engine)

	m.CloseObject(engine)
}

// handleBreak implements §4.5 "Break".
func (m *Manager) handleBreak(engine Engine, info *EngineInfo, msg BreakMessage) {
	if msg.ErrorMessage != "" {
		m.WriteMessage(UserMessageCouldNotBreak, msg.ErrorMessage)
		return
	}

	m.lock.Lock()
	info.State = EngineStatePaused
	info.breakThread = msg.ThreadID
	p := &pendingEmission{}
	m.recomputeLocked(p)
	m.lock.Unlock()

	if !p.empty() {
		m.flushStartOrder(p)
	}

	m.onEnginePaused(engine, info, true)
}

// handleConditionalBreak implements §4.5's "Conditional-break family".
func (m *Manager) handleConditionalBreak(engine Engine, info *EngineInfo, msg *ConditionalBreakMessage) {
	evt := &MessageEvent{
		Kind:      observerKindFor(msg.kind),
		Engine:    engine,
		Process:   info.Process,
		Runtime:   info.Runtime,
		ModuleIDs: msg.ModuleIDs,
		ThreadID:  msg.ThreadID,
		Exception: msg.Exception,
		Text:      msg.Text,
		Pause:     msg.Pause,
	}
	switch msg.kind {
	case MsgModuleLoaded:
		if info.Runtime != nil && len(msg.ModuleIDs) > 0 {
			if err := m.binder.AddForModules(info.Runtime, msg.ModuleIDs); err != nil {
				m.log.Error(err, "failed to bind breakpoints for newly loaded modules")
			}
		}
	case MsgModuleUnloaded:
		if info.Runtime != nil && len(msg.ModuleIDs) > 0 {
			m.binder.RemoveForModules(info.Runtime, msg.ModuleIDs)
		}
	}

	observerVote := m.emitObserverMessage(evt)

	m.lock.Lock()
	wasPaused := info.State == EngineStatePaused
	breakAllActive := m.breakAllHelper != nil
	ignoreBreakInstructions := m.config.IgnoreBreakInstructions
	m.lock.Unlock()

	pauseProgram := msg.Flags.Pause || observerVote || evt.Pause || breakAllActive
	if wasPaused && !msg.Flags.Continue {
		pauseProgram = true
	}
	switch msg.kind {
	case MsgProgramBreak:
		if !ignoreBreakInstructions && !msg.Flags.Continue {
			pauseProgram = true
		}
	case MsgSetIPComplete:
		if !msg.Flags.Continue {
			pauseProgram = true
		}
	}

	if pauseProgram {
		m.lock.Lock()
		info.State = EngineStatePaused
		info.breakThread = msg.ThreadID
		if msg.Exception != nil && info.exception == nil {
			// The manager's DbgObject slot must be exclusively its own (model.go's DbgObject
			// contract), distinct from the instance handed to external observers above via
			// evt.Exception, so it owns a duplicate rather than aliasing the same pointer.
			info.exception = pointers.Duplicate(msg.Exception)
		}
		p := &pendingEmission{}
		m.recomputeLocked(p)
		m.lock.Unlock()

		if !p.empty() {
			m.flushStartOrder(p)
		}

		m.onEnginePaused(engine, info, pauseProgram && !wasPaused)
		return
	}

	if info.exception != nil {
		m.CloseObject(info.exception)
		info.exception = nil
	}

	if wasPaused {
		if err := engine.PreContinue(m.dispatcher.dbgThreadContext()); err != nil {
			m.log.Error(err, "engine.PreContinue failed before conditional-break continue")
		}

		m.lock.Lock()
		info.State = EngineStateRunning
		p := &pendingEmission{}
		m.recomputeLocked(p)
		m.lock.Unlock()

		if !p.empty() {
			m.flushStartOrder(p)
		}
	}

	if err := engine.Run(); err != nil {
		m.log.Error(err, "engine.Run failed after conditional-break continue")
	}
}

func observerKindFor(kind MessageKind) ObserverMessageKind {
	switch kind {
	case MsgEntryPointBreak:
		return ObserverMsgEntryPointBreak
	case MsgProgramMessage:
		return ObserverMsgProgramMessage
	case MsgBreakpoint:
		return ObserverMsgBreakpointHit
	case MsgProgramBreak:
		return ObserverMsgProgramBreak
	case MsgSetIPComplete:
		return ObserverMsgSetIPComplete
	case MsgAppDomainLoaded:
		return ObserverMsgAppDomainLoaded
	case MsgAppDomainUnloaded:
		return ObserverMsgAppDomainUnloaded
	case MsgModuleLoaded:
		return ObserverMsgModuleLoaded
	case MsgModuleUnloaded:
		return ObserverMsgModuleUnloaded
	case MsgThreadLoaded:
		return ObserverMsgThreadLoaded
	case MsgThreadUnloaded:
		return ObserverMsgThreadUnloaded
	case MsgExceptionThrown:
		return ObserverMsgExceptionThrown
	default:
		return ObserverMsgUserMessage
	}
}

// onEnginePaused implements §4.5 "onEnginePaused": adopt process focus if none exists,
// reconcile isRunning, optionally initiate a BreakAll fence, and raise ProcessPaused only
// when focus was actually adopted.
func (m *Manager) onEnginePaused(engine Engine, info *EngineInfo, setCurrentProcess bool) {
	m.breakAllHelperResolve(engine)

	m.lock.Lock()
	if info.Process != nil {
		info.Process.State = recomputeProcessState(info.Process, m.engines.forProcess(info.Process))
	}
	adoptedFocus := false
	if setCurrentProcess && m.currentProcess == nil && info.Process != nil {
		m.currentProcess = info.Process
		m.currentRuntime = info.Runtime
		adoptedFocus = true
	}
	breakAllOnPause := m.config.BreakAllProcesses
	m.lock.Unlock()

	if breakAllOnPause {
		m.breakAll()
	}

	if adoptedFocus {
		m.events.emit(Event{
			Kind:          EventProcessPaused,
			ProcessPaused: &ProcessPausedPayload{Process: info.Process, Runtime: info.Runtime},
		})
	}
}
