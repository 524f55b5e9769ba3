/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProcessRegistry_GetOrCreateReportsCreationOnce(t *testing.T) {
	t.Parallel()

	reg := newProcessRegistry()

	proc, created := reg.getOrCreate(100, false)
	require.True(t, created)
	require.Equal(t, int32(100), proc.Pid)

	same, created := reg.getOrCreate(100, true)
	require.False(t, created)
	require.Same(t, proc, same)
}

func TestProcessRegistry_DebuggedRuntimesRejectsDuplicates(t *testing.T) {
	t.Parallel()

	reg := newProcessRegistry()
	require.True(t, reg.addDebuggedRuntime(100, "r1"))
	require.False(t, reg.addDebuggedRuntime(100, "r1"))
	require.True(t, reg.isDebugged(100, "r1"))

	reg.removeDebuggedRuntime(100, "r1")
	require.False(t, reg.isDebugged(100, "r1"))
	require.True(t, reg.addDebuggedRuntime(100, "r1"))
}

func TestRecomputeProcessState(t *testing.T) {
	t.Parallel()

	proc := newProcess(1, false)

	require.Equal(t, ProcessStateTerminated, recomputeProcessState(proc, nil))

	running := []*EngineInfo{{State: EngineStateRunning}, {State: EngineStatePaused}}
	require.Equal(t, ProcessStateRunning, recomputeProcessState(proc, running))

	allPaused := []*EngineInfo{{State: EngineStatePaused}, {State: EngineStatePaused}}
	require.Equal(t, ProcessStatePaused, recomputeProcessState(proc, allPaused))
}

func TestProcess_AttachDetach(t *testing.T) {
	t.Parallel()

	proc := newProcess(1, false)
	rt := &Runtime{ID: "r1"}

	proc.attach(rt)
	require.Same(t, proc, rt.Process)
	require.Equal(t, 1, proc.runtimeCount())

	proc.detach("r1")
	require.Equal(t, 0, proc.runtimeCount())
}
