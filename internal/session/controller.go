/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package session

import "time"

const stopDebuggingTimeout = 10 * time.Second

// breakAllHelper tracks outstanding Break requests issued by a single BreakAll fence; it
// completes once every engine it targeted has reported Paused or disconnected (§4.6).
type breakAllHelper struct {
	pending map[Engine]struct{}
}

// stopDebuggingHelper drives graceful termination/detach of every engine for Restart. Once
// every engine has disconnected, the snapshot of start options is replayed; if the timeout
// fires first, the user is notified and nothing is replayed (§4.6, §5 "Cancellation / timeouts").
type stopDebuggingHelper struct {
	pending         map[Engine]struct{}
	snapshotOptions []any
	timer           *time.Timer
}

// RunAll runs every engine currently Paused (§4.6).
func (m *Manager) RunAll() {
	m.post(func() {
		m.lock.Lock()
		infos := m.engines.snapshot()
		m.lock.Unlock()
		m.runEngines(infos)
	})
}

// Run runs only engines targeting process, unless BreakAllProcesses is set, in which case it
// is upgraded to RunAll (§4.6).
func (m *Manager) Run(process *Process) {
	m.post(func() {
		m.lock.Lock()
		upgrade := m.config.BreakAllProcesses
		var infos []*EngineInfo
		if upgrade {
			infos = m.engines.snapshot()
		} else {
			infos = m.engines.forProcess(process)
		}
		m.lock.Unlock()
		m.runEngines(infos)
	})
}

// runEngines resumes every Paused engine in infos. The whole batch is aborted, with nothing
// resumed, if a BreakAll fence is active at entry.
func (m *Manager) runEngines(infos []*EngineInfo) {
	m.lock.Lock()
	if m.breakAllHelper != nil {
		m.lock.Unlock()
		return
	}
	var paused []*EngineInfo
	for _, info := range infos {
		if info.State == EngineStatePaused {
			paused = append(paused, info)
		}
	}
	m.lock.Unlock()

	for _, info := range paused {
		if info.exception != nil {
			m.CloseObject(info.exception)
			info.exception = nil
		}

		m.lock.Lock()
		info.State = EngineStateRunning
		if info.Process != nil {
			info.Process.State = recomputeProcessState(info.Process, m.engines.forProcess(info.Process))
		}
		m.lock.Unlock()

		if err := info.Engine.PreContinue(m.dispatcher.dbgThreadContext()); err != nil {
			m.log.Error(err, "engine.PreContinue failed")
		}

		if err := info.Engine.Run(); err != nil {
			m.log.Error(err, "engine.Run failed")
		}
	}

	m.lock.Lock()
	p := &pendingEmission{}
	m.recomputeLocked(p)
	m.lock.Unlock()
	if !p.empty() {
		m.flushStartOrder(p)
	}
}

// Break requests a pause of every Running engine targeting process (§4.6 per-process
// controller operations).
func (m *Manager) Break(process *Process) {
	m.post(func() {
		m.lock.Lock()
		infos := m.engines.forProcess(process)
		m.lock.Unlock()

		for _, info := range infos {
			if info.State == EngineStateRunning {
				if err := info.Engine.Break(); err != nil {
					m.log.Error(err, "engine.Break failed")
				}
			}
		}
	})
}

// BreakAll instantiates (at most one) breakAllHelper that Breaks every currently-Running
// engine and steers newly-Connected engines into Paused until it completes (§4.6).
func (m *Manager) BreakAll() {
	m.post(m.breakAll)
}

func (m *Manager) breakAll() {
	m.lock.Lock()
	if m.breakAllHelper != nil {
		m.lock.Unlock()
		return
	}
	var targets []*EngineInfo
	for _, info := range m.engines.snapshot() {
		if info.State != EngineStatePaused {
			targets = append(targets, info)
		}
	}
	if len(targets) == 0 {
		m.lock.Unlock()
		return
	}
	helper := &breakAllHelper{pending: make(map[Engine]struct{}, len(targets))}
	for _, info := range targets {
		helper.pending[info.Engine] = struct{}{}
	}
	m.breakAllHelper = helper
	m.lock.Unlock()

	for _, info := range targets {
		if err := info.Engine.Break(); err != nil {
			m.log.Error(err, "engine.Break failed during BreakAll")
		}
	}
}

// breakAllHelperResolve drops engine from the active BreakAll fence's pending set, if any,
// clearing the fence once every target has reported Paused or disconnected.
func (m *Manager) breakAllHelperResolve(engine Engine) {
	m.lock.Lock()
	defer m.lock.Unlock()

	helper := m.breakAllHelper
	if helper == nil {
		return
	}
	delete(helper.pending, engine)
	if len(helper.pending) == 0 {
		m.breakAllHelper = nil
	}
}

func (m *Manager) breakAllOnEngineGone(engine Engine) {
	m.breakAllHelperResolve(engine)
}

// DetachAll detaches every attached engine.
func (m *Manager) DetachAll() {
	m.post(func() {
		m.lock.Lock()
		infos := m.engines.snapshot()
		m.lock.Unlock()
		m.detachEngines(infos)
	})
}

// TerminateAll terminates every attached engine.
func (m *Manager) TerminateAll() {
	m.post(func() {
		m.lock.Lock()
		infos := m.engines.snapshot()
		m.lock.Unlock()
		m.terminateEngines(infos)
	})
}

// Detach detaches every engine targeting process.
func (m *Manager) Detach(process *Process) {
	m.post(func() {
		m.lock.Lock()
		infos := m.engines.forProcess(process)
		m.lock.Unlock()
		m.detachEngines(infos)
	})
}

// TerminateProcess terminates every engine targeting process.
func (m *Manager) TerminateProcess(process *Process) {
	m.post(func() {
		m.lock.Lock()
		infos := m.engines.forProcess(process)
		m.lock.Unlock()
		m.terminateEngines(infos)
	})
}

func (m *Manager) detachEngines(infos []*EngineInfo) {
	for _, info := range infos {
		if err := info.Engine.Detach(); err != nil {
			m.log.Error(err, "engine.Detach failed")
		}
	}
}

func (m *Manager) terminateEngines(infos []*EngineInfo) {
	for _, info := range infos {
		if err := info.Engine.Terminate(); err != nil {
			m.log.Error(err, "engine.Terminate failed")
		}
	}
}

// StopDebuggingAll detaches engines that shouldn't terminate their debuggee and terminates
// the rest (§4.6).
func (m *Manager) StopDebuggingAll() {
	m.post(func() {
		m.lock.Lock()
		infos := m.engines.snapshot()
		m.lock.Unlock()
		for _, info := range infos {
			m.stopDebuggingEngine(info)
		}
	})
}

func (m *Manager) stopDebuggingEngine(info *EngineInfo) {
	shouldDetach := info.Engine.StartKind() == StartKindAttach
	if info.Process != nil {
		shouldDetach = info.Process.ShouldDetach
	}

	var err error
	if shouldDetach {
		err = info.Engine.Detach()
	} else {
		err = info.Engine.Terminate()
	}
	if err != nil {
		m.log.Error(err, "failed to stop debugging for engine")
	}
}

// Restart is valid only when no BreakAll or StopDebugging helper is active and there is at
// least one restart option snapshot (§4.6, §8 scenario 3).
func (m *Manager) Restart() error {
	m.lock.Lock()
	if !m.canRestartLocked() {
		m.lock.Unlock()
		return ErrRestartNotAvailable
	}
	snapshot := append([]any(nil), m.restartOptions...)
	helper := &stopDebuggingHelper{snapshotOptions: snapshot}
	m.stopDebuggingHelper = helper
	m.lock.Unlock()

	m.post(func() { m.runStopDebuggingHelper(helper) })
	return nil
}

func (m *Manager) runStopDebuggingHelper(helper *stopDebuggingHelper) {
	m.lock.Lock()
	infos := m.engines.snapshot()
	if len(infos) == 0 {
		m.stopDebuggingHelper = nil
		m.lock.Unlock()
		m.completeRestart(helper.snapshotOptions)
		return
	}

	helper.pending = make(map[Engine]struct{}, len(infos))
	for _, info := range infos {
		helper.pending[info.Engine] = struct{}{}
	}
	m.lock.Unlock()

	helper.timer = time.AfterFunc(stopDebuggingTimeout, func() {
		m.post(func() { m.stopDebuggingHelperTimeout(helper) })
	})

	for _, info := range infos {
		m.stopDebuggingEngine(info)
	}
}

func (m *Manager) stopDebuggingHelperOnEngineGone(engine Engine) {
	m.lock.Lock()
	helper := m.stopDebuggingHelper
	if helper == nil {
		m.lock.Unlock()
		return
	}
	delete(helper.pending, engine)
	if len(helper.pending) != 0 {
		m.lock.Unlock()
		return
	}
	helper.timer.Stop()
	m.stopDebuggingHelper = nil
	m.lock.Unlock()

	m.completeRestart(helper.snapshotOptions)
}

func (m *Manager) stopDebuggingHelperTimeout(helper *stopDebuggingHelper) {
	m.lock.Lock()
	if m.stopDebuggingHelper != helper {
		m.lock.Unlock()
		return
	}
	m.stopDebuggingHelper = nil
	m.lock.Unlock()

	m.WriteMessage(UserMessageStopDebuggingTimeout, "timed out waiting for engines to stop debugging; engines remain attached")
}

// completeRestart posts a Start call for each snapshotted option, rather than calling Start
// inline, to avoid reentering ProcessesChanged emission from inside the helper's completion
// path (§4.6).
func (m *Manager) completeRestart(snapshotOptions []any) {
	for _, opt := range snapshotOptions {
		opt := opt
		m.post(func() {
			if err := m.Start(opt); err != nil {
				m.WriteMessage(UserMessageInfo, "restart failed to start an engine: "+err.Error())
			}
		})
	}
}

// reselectCurrentProcess adopts any remaining attached process/runtime as the new focus after
// the previous focus disconnected (§4.5 "If the disconnected engine was the current
// process/thread focus, reselect").
func (m *Manager) reselectCurrentProcess() {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, info := range m.engines.snapshot() {
		if info.Process != nil {
			m.currentProcess = info.Process
			m.currentRuntime = info.Runtime
			return
		}
	}
}
