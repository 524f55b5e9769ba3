/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package session

import (
	"context"
	"sync"

	"github.com/dsmgr/dsm/internal/pubsub"
)

// EventKind tags the outward events raised on the manager's observer channel (§6 Events).
type EventKind int

const (
	EventProcessesChanged EventKind = iota
	EventDebugTagsChanged
	EventProcessPaused
	EventIsDebuggingChanged
	EventIsRunningChanged
	EventDelayedIsRunningChanged
	EventDbgManagerMessage
)

// DiffKind distinguishes an added-set event from a removed-set event, used by
// ProcessesChanged and DebugTagsChanged.
type DiffKind int

const (
	DiffAdded DiffKind = iota
	DiffRemoved
)

// UserMessageKind names the kind of a DbgManagerMessage (§7's user-facing diagnostics).
type UserMessageKind int

const (
	UserMessageInfo UserMessageKind = iota
	UserMessageCouldNotConnect
	UserMessageCouldNotBreak
	UserMessageStopDebuggingTimeout
)

// Event is the outward notification delivered to Manager observers. Exactly one of the
// typed fields below is meaningful, selected by Kind.
type Event struct {
	Kind EventKind

	ProcessesChanged *ProcessesChangedPayload
	DebugTagsChanged *DebugTagsChangedPayload
	ProcessPaused    *ProcessPausedPayload
	IsDebugging      bool
	IsRunning        IsRunning
	DbgManagerMessage *DbgManagerMessagePayload
}

type ProcessesChangedPayload struct {
	Diff      DiffKind
	Processes []*Process
}

type DebugTagsChangedPayload struct {
	Diff DiffKind
	Tags []string
}

type ProcessPausedPayload struct {
	Process *Process
	Runtime *Runtime
}

type DbgManagerMessagePayload struct {
	Kind UserMessageKind
	Text string
}

// ObserverMessageKind tags the payload variant of the broad "Message(event)" observer
// channel (§6). It is distinct from MessageKind, which tags messages flowing the other way,
// from an Engine into the manager.
type ObserverMessageKind int

const (
	ObserverMsgProcessCreated ObserverMessageKind = iota
	ObserverMsgProcessExited
	ObserverMsgRuntimeCreated
	ObserverMsgRuntimeExited
	ObserverMsgModuleLoaded
	ObserverMsgModuleUnloaded
	ObserverMsgAppDomainLoaded
	ObserverMsgAppDomainUnloaded
	ObserverMsgThreadLoaded
	ObserverMsgThreadUnloaded
	ObserverMsgBreakpointHit
	ObserverMsgEntryPointBreak
	ObserverMsgProgramBreak
	ObserverMsgProgramMessage
	ObserverMsgSetIPComplete
	ObserverMsgUserMessage
	ObserverMsgExceptionThrown
)

// MessageEvent is the broad "Message(event)" channel (§6): observers may set Pause on the
// payload to request that the pump keep the engine stopped. One value covers every variant;
// only the fields relevant to Kind are populated.
type MessageEvent struct {
	Kind    ObserverMessageKind
	Engine  Engine
	Process *Process
	Runtime *Runtime

	ModuleIDs []string
	ThreadID  string
	Exception *Exception
	Text      string

	Pause bool
}

// MessageObserver receives the broad Message channel synchronously, on the dispatcher
// thread, in registration order, before the pump decides whether to pause.
type MessageObserver func(ctx context.Context, event *MessageEvent)

// eventHub owns the manager's two observer surfaces: the async pubsub.SubscriptionSet for
// discrete lifecycle events, and a synchronous callback list for the broad Message channel
// where observers can vote to pause.
type eventHub struct {
	events *pubsub.SubscriptionSet[Event]

	observerLock sync.Mutex
	observers    []MessageObserver
}

func newEventHub(lifetimeCtx context.Context) *eventHub {
	return &eventHub{
		events: pubsub.NewSubscriptionSet[Event](nil, lifetimeCtx),
	}
}

// Subscribe registers sink to receive every discrete Event. The returned cancel func must be
// called to stop delivery.
func (h *eventHub) Subscribe(sink chan<- Event) func() {
	sub := h.events.Subscribe(sink)
	return sub.Cancel
}

func (h *eventHub) emit(e Event) {
	h.events.Notify(e)
}

// OnMessage registers a synchronous observer for the broad Message channel.
func (h *eventHub) OnMessage(observer MessageObserver) {
	h.observerLock.Lock()
	defer h.observerLock.Unlock()
	h.observers = append(h.observers, observer)
}

// dispatchMessage invokes every registered observer in order, on the dispatcher thread, and
// returns whether any observer requested a pause.
func (h *eventHub) dispatchMessage(ctx context.Context, event *MessageEvent) bool {
	h.observerLock.Lock()
	observers := append([]MessageObserver(nil), h.observers...)
	h.observerLock.Unlock()

	for _, obs := range observers {
		obs(ctx, event)
	}
	return event.Pause
}
