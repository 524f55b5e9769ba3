/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package session

import "context"

// MessageKind tags the variant carried by an EngineMessage. The pump switches on this instead
// of using reflection.
type MessageKind int

const (
	MsgConnected MessageKind = iota
	MsgDisconnected
	MsgBreak
	MsgEntryPointBreak
	MsgProgramMessage
	MsgBreakpoint
	MsgProgramBreak
	MsgSetIPComplete
	MsgAppDomainLoaded
	MsgAppDomainUnloaded
	MsgModuleLoaded
	MsgModuleUnloaded
	MsgThreadLoaded
	MsgThreadUnloaded
	MsgExceptionThrown
)

// MessageFlags accompanies conditional-break messages; Pause is the engine's own request,
// Continue instructs the pump to keep running even if it would otherwise pause.
type MessageFlags struct {
	Pause    bool
	Continue bool
}

// EngineMessage is the tagged union of everything an Engine can deliver on its Messages
// channel. Every concrete type below implements it.
type EngineMessage interface {
	Kind() MessageKind
}

// ConnectedMessage reports a successful (or failed) engine connection. A non-empty Error
// means the connection failed and the message is treated as an immediate disconnect.
type ConnectedMessage struct {
	Pid       int32
	RuntimeID string
	Error     string
	Flags     MessageFlags
}

func (ConnectedMessage) Kind() MessageKind { return MsgConnected }

// DisconnectedMessage reports that an engine has gone away, with the exit code observed for
// its process, if any.
type DisconnectedMessage struct {
	ExitCode int32
}

func (DisconnectedMessage) Kind() MessageKind { return MsgDisconnected }

// BreakMessage reports an unconditional break. A non-empty ErrorMessage means the break
// itself failed; no state transition occurs.
type BreakMessage struct {
	ThreadID     string
	ErrorMessage string
}

func (BreakMessage) Kind() MessageKind { return MsgBreak }

// Exception is the payload captured at a Paused transition triggered by ExceptionThrown.
type Exception struct {
	Description string
	Fatal       bool
}

func (e *Exception) Close(ctx context.Context) error { return nil }

var _ DbgObject = (*Exception)(nil)

// ConditionalBreakMessage is the shared shape of every message in the "conditional-break
// family" (§4.5): observers see it first and may request a pause through their MessageEvent,
// then the pump combines that vote with engine flags and any active BreakAll fence.
type ConditionalBreakMessage struct {
	kind      MessageKind
	Flags     MessageFlags
	ThreadID  string
	ModuleIDs []string
	Exception *Exception
	Text      string

	// Pause starts as Flags.Pause and seeds MessageEvent.Pause before observers run;
	// observers vote through the MessageEvent and do not change this field.
	Pause bool
}

func (m ConditionalBreakMessage) Kind() MessageKind { return m.kind }

func newConditionalBreak(kind MessageKind, flags MessageFlags) *ConditionalBreakMessage {
	return &ConditionalBreakMessage{kind: kind, Flags: flags, Pause: flags.Pause}
}

// NewConditionalBreakMessage constructs a ConditionalBreakMessage of the given kind. Engine
// implementations outside this package use it to report anything in the conditional-break
// family (module/thread load and unload, breakpoint hits, program breaks, output, and
// exceptions) since the kind field itself is not exported.
func NewConditionalBreakMessage(kind MessageKind, flags MessageFlags) *ConditionalBreakMessage {
	return newConditionalBreak(kind, flags)
}
