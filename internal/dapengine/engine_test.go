/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dapengine

import (
	"io"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-dap"
	"github.com/stretchr/testify/require"

	"github.com/dsmgr/dsm/internal/session"
	"github.com/dsmgr/dsm/internal/testutil"
)

// fakeTransport is an in-memory Transport: toAdapter carries what the engine thinks it is
// sending to a real adapter process, fromAdapter lets the test play the adapter's part.
type fakeTransport struct {
	toAdapter   chan dap.Message
	fromAdapter chan dap.Message
	closed      chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		toAdapter:   make(chan dap.Message, 16),
		fromAdapter: make(chan dap.Message, 16),
		closed:      make(chan struct{}),
	}
}

func (t *fakeTransport) ReadMessage() (dap.Message, error) {
	select {
	case msg, ok := <-t.fromAdapter:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	case <-t.closed:
		return nil, io.EOF
	}
}

func (t *fakeTransport) WriteMessage(msg dap.Message) error {
	select {
	case t.toAdapter <- msg:
		return nil
	case <-t.closed:
		return ErrTransportClosed
	}
}

func (t *fakeTransport) Close() error {
	select {
	case <-t.closed:
	default:
		close(t.closed)
	}
	return nil
}

func newTestAdapter(transport Transport) *LaunchedAdapter {
	return &LaunchedAdapter{
		Transport: transport,
		done:      make(chan struct{}),
	}
}

// autoRespond plays a minimal, always-succeeding debug adapter: every request written to
// transport.toAdapter gets a matching success response back on fromAdapter. It stops once the
// transport is closed.
func autoRespond(t *testing.T, transport *fakeTransport) {
	t.Helper()
	go func() {
		for {
			select {
			case req, ok := <-transport.toAdapter:
				if !ok {
					return
				}
				if resp := fakeResponseFor(req); resp != nil {
					select {
					case transport.fromAdapter <- resp:
					case <-transport.closed:
						return
					}
				}
			case <-transport.closed:
				return
			}
		}
	}()
}

func fakeResponseFor(msg dap.Message) dap.Message {
	switch r := msg.(type) {
	case *dap.InitializeRequest:
		return &dap.InitializeResponse{Response: fakeSuccess(r.Seq, r.Command)}
	case *dap.LaunchRequest:
		return &dap.LaunchResponse{Response: fakeSuccess(r.Seq, r.Command)}
	case *dap.AttachRequest:
		return &dap.AttachResponse{Response: fakeSuccess(r.Seq, r.Command)}
	case *dap.ConfigurationDoneRequest:
		return &dap.ConfigurationDoneResponse{Response: fakeSuccess(r.Seq, r.Command)}
	case *dap.ContinueRequest:
		return &dap.ContinueResponse{Response: fakeSuccess(r.Seq, r.Command)}
	case *dap.PauseRequest:
		return &dap.PauseResponse{Response: fakeSuccess(r.Seq, r.Command)}
	case *dap.DisconnectRequest:
		return &dap.DisconnectResponse{Response: fakeSuccess(r.Seq, r.Command)}
	default:
		return nil
	}
}

func fakeSuccess(requestSeq int, command string) dap.Response {
	return dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Type: "response"},
		RequestSeq:      requestSeq,
		Success:         true,
		Command:         command,
	}
}

func requireMessage(t *testing.T, ch <-chan session.EngineMessage, timeout time.Duration) session.EngineMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatal("timed out waiting for an engine message")
		return nil
	}
}

func TestEngineHandshakeEmitsConnected(t *testing.T) {
	t.Parallel()

	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	transport := newFakeTransport()
	autoRespond(t, transport)
	adapter := newTestAdapter(transport)
	config := &DebugAdapterConfig{StartKind: session.StartKindLaunch, Tags: []string{"go"}}
	eng := NewEngine(adapter, config, logr.Discard())

	require.NoError(t, eng.Start(ctx, map[string]string{"program": "/bin/true"}))

	// The adapter backend reports the debuggee's pid via a spontaneous "process" event, not
	// through any of the handshake responses.
	transport.fromAdapter <- &dap.ProcessEvent{
		Event: dap.Event{ProtocolMessage: dap.ProtocolMessage{Type: "event"}, Event: "process"},
		Body:  dap.ProcessEventBody{Name: "true", SystemProcessId: 4242},
	}

	msg := requireMessage(t, eng.Messages(), 5*time.Second)
	connected, ok := msg.(session.ConnectedMessage)
	require.True(t, ok, "expected a ConnectedMessage, got %T", msg)
	require.Empty(t, connected.Error)
	require.Equal(t, int32(4242), connected.Pid)
	require.NotEmpty(t, connected.RuntimeID)
}

func TestEngineHandshakeFailurePropagatesError(t *testing.T) {
	t.Parallel()

	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	transport := newFakeTransport()
	go func() {
		req := <-transport.toAdapter
		initReq, ok := req.(*dap.InitializeRequest)
		if !ok {
			return
		}
		transport.fromAdapter <- &dap.InitializeResponse{Response: dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Type: "response"},
			RequestSeq:      initReq.Seq,
			Success:         false,
			Message:         "adapter refused to initialize",
		}}
	}()
	adapter := newTestAdapter(transport)
	config := &DebugAdapterConfig{StartKind: session.StartKindLaunch}
	eng := NewEngine(adapter, config, logr.Discard())

	require.NoError(t, eng.Start(ctx, nil))

	msg := requireMessage(t, eng.Messages(), 5*time.Second)
	connected, ok := msg.(session.ConnectedMessage)
	require.True(t, ok, "expected a ConnectedMessage, got %T", msg)
	require.NotEmpty(t, connected.Error)
}

func TestEngineStoppedEventReasonsMapToMessageKinds(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport()
	adapter := newTestAdapter(transport)
	config := &DebugAdapterConfig{StartKind: session.StartKindAttach}
	eng := NewEngine(adapter, config, logr.Discard())

	cases := []struct {
		reason string
		want   session.MessageKind
	}{
		{"breakpoint", session.MsgBreakpoint},
		{"entry", session.MsgEntryPointBreak},
		{"step", session.MsgProgramBreak},
		{"exception", session.MsgExceptionThrown},
	}

	for _, c := range cases {
		transport.fromAdapter <- &dap.StoppedEvent{
			Event: dap.Event{ProtocolMessage: dap.ProtocolMessage{Type: "event"}, Event: "stopped"},
			Body:  dap.StoppedEventBody{Reason: c.reason, ThreadId: 7, Description: "boom"},
		}
		msg := requireMessage(t, eng.Messages(), 5*time.Second)
		cbm, ok := msg.(*session.ConditionalBreakMessage)
		require.True(t, ok, "expected a *ConditionalBreakMessage for reason %q, got %T", c.reason, msg)
		require.Equal(t, c.want, cbm.Kind())
		require.Equal(t, "7", cbm.ThreadID)
	}
}

func TestEngineRunTargetsLastStoppedThread(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport()
	adapter := newTestAdapter(transport)
	config := &DebugAdapterConfig{StartKind: session.StartKindLaunch}
	eng := NewEngine(adapter, config, logr.Discard())

	transport.fromAdapter <- &dap.StoppedEvent{
		Event: dap.Event{ProtocolMessage: dap.ProtocolMessage{Type: "event"}, Event: "stopped"},
		Body:  dap.StoppedEventBody{Reason: "breakpoint", ThreadId: 9},
	}
	_ = requireMessage(t, eng.Messages(), 5*time.Second)

	require.NoError(t, eng.Run())

	select {
	case msg := <-transport.toAdapter:
		contReq, ok := msg.(*dap.ContinueRequest)
		require.True(t, ok, "expected a ContinueRequest, got %T", msg)
		require.Equal(t, 9, contReq.Arguments.ThreadId)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for continue request")
	}
}

func TestEngineTerminateRequestsDebuggeeTermination(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport()
	adapter := newTestAdapter(transport)
	config := &DebugAdapterConfig{StartKind: session.StartKindLaunch}
	eng := NewEngine(adapter, config, logr.Discard())

	require.NoError(t, eng.Terminate())

	select {
	case msg := <-transport.toAdapter:
		discReq, ok := msg.(*dap.DisconnectRequest)
		require.True(t, ok, "expected a DisconnectRequest, got %T", msg)
		require.True(t, discReq.Arguments.TerminateDebuggee)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for disconnect request")
	}
}

func TestEngineDetachDoesNotRequestDebuggeeTermination(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport()
	adapter := newTestAdapter(transport)
	config := &DebugAdapterConfig{StartKind: session.StartKindAttach}
	eng := NewEngine(adapter, config, logr.Discard())
	require.True(t, eng.CanDetach())

	require.NoError(t, eng.Detach())

	select {
	case msg := <-transport.toAdapter:
		discReq, ok := msg.(*dap.DisconnectRequest)
		require.True(t, ok, "expected a DisconnectRequest, got %T", msg)
		require.False(t, discReq.Arguments.TerminateDebuggee)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for disconnect request")
	}
}

func TestEngineModuleEventsReportLoadAndUnload(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport()
	adapter := newTestAdapter(transport)
	config := &DebugAdapterConfig{StartKind: session.StartKindLaunch}
	eng := NewEngine(adapter, config, logr.Discard())

	transport.fromAdapter <- &dap.ModuleEvent{
		Event: dap.Event{ProtocolMessage: dap.ProtocolMessage{Type: "event"}, Event: "module"},
		Body:  dap.ModuleEventBody{Reason: "new", Module: dap.Module{Id: "mod-1", Name: "mod-1.so"}},
	}
	msg := requireMessage(t, eng.Messages(), 5*time.Second)
	cbm, ok := msg.(*session.ConditionalBreakMessage)
	require.True(t, ok)
	require.Equal(t, session.MsgModuleLoaded, cbm.Kind())
	require.Equal(t, []string{"mod-1"}, cbm.ModuleIDs)

	transport.fromAdapter <- &dap.ModuleEvent{
		Event: dap.Event{ProtocolMessage: dap.ProtocolMessage{Type: "event"}, Event: "module"},
		Body:  dap.ModuleEventBody{Reason: "removed", Module: dap.Module{Id: "mod-1", Name: "mod-1.so"}},
	}
	msg = requireMessage(t, eng.Messages(), 5*time.Second)
	cbm, ok = msg.(*session.ConditionalBreakMessage)
	require.True(t, ok)
	require.Equal(t, session.MsgModuleUnloaded, cbm.Kind())
}

func TestEngineClosePreventsFurtherEmission(t *testing.T) {
	t.Parallel()

	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	transport := newFakeTransport()
	adapter := newTestAdapter(transport)
	config := &DebugAdapterConfig{StartKind: session.StartKindLaunch}
	eng := NewEngine(adapter, config, logr.Discard())

	require.NoError(t, eng.Close(ctx))

	_, open := <-eng.messages
	require.False(t, open, "messages channel should be closed once the transport's read loop unwinds")
}
