/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dapengine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/google/go-dap"
	"github.com/google/uuid"

	"github.com/dsmgr/dsm/internal/session"
)

// Engine adapts a LaunchedAdapter to the session.Engine contract: it runs the DAP
// initialize/launch-or-attach handshake, translates the adapter's events into
// session.EngineMessage values, and turns session-issued control calls into DAP requests.
type Engine struct {
	adapter *LaunchedAdapter
	config  *DebugAdapterConfig
	log     logr.Logger

	seq atomic.Int32

	pendingMu sync.Mutex
	pending   map[int]chan dap.Message

	messages       chan session.EngineMessage
	done           chan struct{}
	closeOnce      sync.Once
	disconnectOnce sync.Once

	mu         sync.Mutex
	lastThread int
	runtimeID  string
}

var _ session.Engine = (*Engine)(nil)

// NewEngine wraps a launched debug adapter process as a session.Engine. config supplies the
// debug tags and start kind the manager uses to classify this engine.
func NewEngine(adapter *LaunchedAdapter, config *DebugAdapterConfig, log logr.Logger) *Engine {
	e := &Engine{
		adapter:  adapter,
		config:   config,
		log:      log.WithName("dap-engine"),
		pending:  make(map[int]chan dap.Message),
		messages: make(chan session.EngineMessage, 32),
		done:     make(chan struct{}),
	}
	go e.readLoop()
	return e
}

func (e *Engine) DebugTags() []string { return e.config.Tags }

func (e *Engine) StartKind() session.StartKind { return e.config.StartKind }

// CanDetach reports false for launched debuggees, since disconnecting from a process this
// engine started also terminates it; attached engines can be left running.
func (e *Engine) CanDetach() bool { return e.config.StartKind == session.StartKindAttach }

func (e *Engine) Messages() <-chan session.EngineMessage { return e.messages }

// Start kicks off the initialize/launch-or-attach handshake in the background and returns
// immediately; the outcome arrives as a ConnectedMessage on Messages.
func (e *Engine) Start(ctx context.Context, options any) error {
	go e.runHandshake(ctx, options)
	return nil
}

func (e *Engine) runHandshake(ctx context.Context, options any) {
	ctx, cancel := context.WithTimeout(ctx, e.config.GetConnectionTimeout())
	defer cancel()

	initArgs := dap.InitializeRequestArguments{
		ClientID:        "dsmgr",
		ClientName:      "dsmgr debug session manager",
		AdapterID:       "dapengine",
		Locale:          "en-US",
		LinesStartAt1:   true,
		ColumnsStartAt1: true,
		PathFormat:      "path",
	}
	if _, err := e.request(ctx, "initialize", initArgs); err != nil {
		e.fail(fmt.Errorf("initialize failed: %w", err))
		return
	}

	argsJSON, err := marshalStartOptions(options)
	if err != nil {
		e.fail(fmt.Errorf("invalid start options: %w", err))
		return
	}

	command := "launch"
	if e.config.StartKind == session.StartKindAttach {
		command = "attach"
	}
	if _, err := e.request(ctx, command, argsJSON); err != nil {
		e.fail(fmt.Errorf("%s failed: %w", command, err))
		return
	}

	if _, err := e.request(ctx, "configurationDone", struct{}{}); err != nil {
		// Not every adapter requires (or even implements) configurationDone; its absence
		// isn't reported through capabilities in a way we bother checking here, so a
		// failure here is logged but does not fail the connection.
		e.log.V(1).Info("configurationDone request did not succeed", "error", err)
	}
}

func marshalStartOptions(options any) (json.RawMessage, error) {
	if options == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(options)
}

func (e *Engine) fail(err error) {
	e.emit(session.ConnectedMessage{Error: err.Error()})
}

// PreContinue is a no-op: the DAP "continue" request Run sends already fully encapsulates
// this adapter's resume semantics, so there is no engine-specific state to apply beforehand.
func (e *Engine) PreContinue(ctx context.Context) error {
	return nil
}

// Run resumes execution. It does not wait for the adapter's response; the resulting
// Continued/Stopped events drive the session state transition.
func (e *Engine) Run() error {
	threadID := e.currentThread()
	return e.fireAndForget("continue", dap.ContinueArguments{ThreadId: threadID})
}

// Break requests a pause of the given thread (or, since callers never pin one down
// themselves, of whichever thread last reported a stop).
func (e *Engine) Break() error {
	threadID := e.currentThread()
	return e.fireAndForget("pause", dap.PauseArguments{ThreadId: threadID})
}

// Detach disconnects without asking the adapter to terminate its debuggee.
func (e *Engine) Detach() error {
	return e.fireAndForget("disconnect", dap.DisconnectArguments{TerminateDebuggee: false})
}

// Terminate disconnects and asks the adapter to terminate its debuggee.
func (e *Engine) Terminate() error {
	return e.fireAndForget("disconnect", dap.DisconnectArguments{TerminateDebuggee: true})
}

func (e *Engine) fireAndForget(command string, arguments any) error {
	req, _, err := e.buildRequest(command, arguments)
	if err != nil {
		return err
	}
	if err := e.adapter.Transport.WriteMessage(req); err != nil {
		return fmt.Errorf("dapengine: failed to send %s request: %w", command, err)
	}
	return nil
}

func (e *Engine) currentThread() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastThread
}

// OnConnected records the runtime this engine was matched against. The bound-breakpoint
// binder reacts to module load/unload events separately; this engine does not interpret
// breakpoint state itself.
func (e *Engine) OnConnected(ctx context.Context, factory *session.ObjectFactory, runtime *session.Runtime) error {
	e.mu.Lock()
	e.runtimeID = runtime.ID
	e.mu.Unlock()
	return nil
}

// Close tears down the request-matching machinery and the underlying transport. It does not
// stop the adapter process; callers that launched it are responsible for that via
// LaunchedAdapter.Stop.
func (e *Engine) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		close(e.done)
	})
	if e.adapter != nil {
		return filterContextError(e.adapter.Close(), ctx, e.log)
	}
	return nil
}

// request sends a DAP request and blocks until the matching response arrives, the context
// is cancelled, or the adapter process exits.
func (e *Engine) request(ctx context.Context, command string, arguments any) (dap.Message, error) {
	req, seq, err := e.buildRequest(command, arguments)
	if err != nil {
		return nil, err
	}

	ch := make(chan dap.Message, 1)
	e.pendingMu.Lock()
	e.pending[seq] = ch
	e.pendingMu.Unlock()
	defer func() {
		e.pendingMu.Lock()
		delete(e.pending, seq)
		e.pendingMu.Unlock()
	}()

	if err := e.adapter.Transport.WriteMessage(req); err != nil {
		return nil, fmt.Errorf("failed to send %s request: %w", command, err)
	}

	select {
	case resp := <-ch:
		if ok, respErr := responseError(resp); !ok {
			return nil, respErr
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.done:
		return nil, ErrAdapterExited
	case <-e.adapter.Done():
		return nil, ErrAdapterExited
	}
}

func (e *Engine) buildRequest(command string, arguments any) (dap.Message, int, error) {
	seq := int(e.seq.Add(1))
	base := dap.Request{
		ProtocolMessage: dap.ProtocolMessage{Seq: seq, Type: "request"},
		Command:         command,
	}

	switch args := arguments.(type) {
	case dap.InitializeRequestArguments:
		return &dap.InitializeRequest{Request: base, Arguments: args}, seq, nil
	case dap.ContinueArguments:
		return &dap.ContinueRequest{Request: base, Arguments: args}, seq, nil
	case dap.PauseArguments:
		return &dap.PauseRequest{Request: base, Arguments: args}, seq, nil
	case dap.DisconnectArguments:
		return &dap.DisconnectRequest{Request: base, Arguments: &args}, seq, nil
	case json.RawMessage:
		switch command {
		case "launch":
			return &dap.LaunchRequest{Request: base, Arguments: args}, seq, nil
		case "attach":
			return &dap.AttachRequest{Request: base, Arguments: args}, seq, nil
		default:
			return nil, 0, fmt.Errorf("dapengine: unexpected raw-argument command %q", command)
		}
	case struct{}:
		return &dap.ConfigurationDoneRequest{Request: base}, seq, nil
	default:
		return nil, 0, fmt.Errorf("dapengine: unsupported request argument type %T for %q", arguments, command)
	}
}

// responseError extracts the (success, error) pair common to every DAP response type dsmgr
// sends requests for. Adapters are free to reply with types outside this set; those are
// treated as a protocol violation and surfaced as an error.
func responseError(msg dap.Message) (bool, error) {
	switch r := msg.(type) {
	case *dap.InitializeResponse:
		return checkSuccess(r.Success, r.Message)
	case *dap.LaunchResponse:
		return checkSuccess(r.Success, r.Message)
	case *dap.AttachResponse:
		return checkSuccess(r.Success, r.Message)
	case *dap.ConfigurationDoneResponse:
		return checkSuccess(r.Success, r.Message)
	case *dap.ContinueResponse:
		return checkSuccess(r.Success, r.Message)
	case *dap.PauseResponse:
		return checkSuccess(r.Success, r.Message)
	case *dap.DisconnectResponse:
		return checkSuccess(r.Success, r.Message)
	case *dap.ErrorResponse:
		return checkSuccess(r.Success, r.Message)
	default:
		return false, fmt.Errorf("dapengine: unexpected response type %T", msg)
	}
}

func checkSuccess(success bool, message string) (bool, error) {
	if success {
		return true, nil
	}
	if message == "" {
		message = "request failed"
	}
	return false, fmt.Errorf("dapengine: %s", message)
}

// responseRequestSeq returns the RequestSeq carried by a response message, if msg is one of
// the response types dsmgr issues requests for.
func responseRequestSeq(msg dap.Message) (int, bool) {
	switch r := msg.(type) {
	case *dap.InitializeResponse:
		return r.RequestSeq, true
	case *dap.LaunchResponse:
		return r.RequestSeq, true
	case *dap.AttachResponse:
		return r.RequestSeq, true
	case *dap.ConfigurationDoneResponse:
		return r.RequestSeq, true
	case *dap.ContinueResponse:
		return r.RequestSeq, true
	case *dap.PauseResponse:
		return r.RequestSeq, true
	case *dap.DisconnectResponse:
		return r.RequestSeq, true
	case *dap.ErrorResponse:
		return r.RequestSeq, true
	default:
		return 0, false
	}
}

// readLoop pumps DAP messages off the transport for the lifetime of the adapter, routing
// responses to whichever request() call is waiting on them and translating events into
// session.EngineMessage values.
func (e *Engine) readLoop() {
	defer close(e.messages)

	for {
		msg, err := e.adapter.Transport.ReadMessage()
		if err != nil {
			e.reportDisconnected(e.adapter.ExitCode())
			return
		}

		if seq, ok := responseRequestSeq(msg); ok {
			e.pendingMu.Lock()
			ch, found := e.pending[seq]
			e.pendingMu.Unlock()
			if found {
				ch <- msg
			}
			continue
		}

		evt, ok := msg.(dap.EventMessage)
		if !ok {
			continue
		}
		e.handleEvent(evt)
	}
}

func (e *Engine) handleEvent(evt dap.EventMessage) {
	switch ev := evt.(type) {
	case *dap.ProcessEvent:
		e.handleProcessEvent(ev)
	case *dap.StoppedEvent:
		e.handleStoppedEvent(ev)
	case *dap.ContinuedEvent:
		// Purely informational; the manager's own state already tracks Running once Run()
		// returns, so there is nothing further to translate.
	case *dap.ExitedEvent:
		e.reportDisconnected(int32(ev.Body.ExitCode))
	case *dap.TerminatedEvent:
		e.reportDisconnected(e.adapter.ExitCode())
	case *dap.OutputEvent:
		out := session.NewConditionalBreakMessage(session.MsgProgramMessage, session.MessageFlags{})
		out.Text = ev.Body.Output
		e.emit(out)
	case *dap.ModuleEvent:
		e.handleModuleEvent(ev)
	case *dap.ThreadEvent:
		e.handleThreadEvent(ev)
	}
}

func (e *Engine) handleProcessEvent(ev *dap.ProcessEvent) {
	e.mu.Lock()
	if e.runtimeID == "" {
		e.runtimeID = uuid.NewString()
	}
	runtimeID := e.runtimeID
	e.mu.Unlock()

	e.emit(session.ConnectedMessage{
		Pid:       int32(ev.Body.SystemProcessId),
		RuntimeID: runtimeID,
	})
}

func (e *Engine) handleStoppedEvent(ev *dap.StoppedEvent) {
	threadID := fmt.Sprintf("%d", ev.Body.ThreadId)
	e.mu.Lock()
	e.lastThread = ev.Body.ThreadId
	e.mu.Unlock()

	switch ev.Body.Reason {
	case "exception":
		msg := session.NewConditionalBreakMessage(session.MsgExceptionThrown, session.MessageFlags{})
		msg.ThreadID = threadID
		msg.Exception = &session.Exception{Description: ev.Body.Description, Fatal: !ev.Body.AllThreadsStopped}
		e.emit(msg)
	case "entry":
		msg := session.NewConditionalBreakMessage(session.MsgEntryPointBreak, session.MessageFlags{})
		msg.ThreadID = threadID
		e.emit(msg)
	case "breakpoint", "function breakpoint", "data breakpoint", "instruction breakpoint":
		msg := session.NewConditionalBreakMessage(session.MsgBreakpoint, session.MessageFlags{})
		msg.ThreadID = threadID
		e.emit(msg)
	default:
		msg := session.NewConditionalBreakMessage(session.MsgProgramBreak, session.MessageFlags{})
		msg.ThreadID = threadID
		e.emit(msg)
	}
}

func (e *Engine) handleModuleEvent(ev *dap.ModuleEvent) {
	id := fmt.Sprintf("%v", ev.Body.Module.Id)
	kind := session.MsgModuleLoaded
	if ev.Body.Reason == "removed" {
		kind = session.MsgModuleUnloaded
	}
	msg := session.NewConditionalBreakMessage(kind, session.MessageFlags{})
	msg.ModuleIDs = []string{id}
	e.emit(msg)
}

func (e *Engine) handleThreadEvent(ev *dap.ThreadEvent) {
	threadID := fmt.Sprintf("%d", ev.Body.ThreadId)
	kind := session.MsgThreadLoaded
	if ev.Body.Reason == "exited" {
		kind = session.MsgThreadUnloaded
	}
	msg := session.NewConditionalBreakMessage(kind, session.MessageFlags{})
	msg.ThreadID = threadID
	e.emit(msg)
}

// reportDisconnected delivers exactly one DisconnectedMessage, no matter which of the several
// signals (a TerminatedEvent, an ExitedEvent, or the transport simply closing) gets there first.
func (e *Engine) reportDisconnected(exitCode int32) {
	e.disconnectOnce.Do(func() {
		e.emit(session.DisconnectedMessage{ExitCode: exitCode})
	})
}

func (e *Engine) emit(msg session.EngineMessage) {
	select {
	case <-e.done:
		return
	default:
	}
	select {
	case e.messages <- msg:
	case <-e.done:
	}
}
