/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package session

import (
	"context"
	"time"

	"github.com/dsmgr/dsm/internal/resiliency"
)

// IsRunning is the ternary running state of the whole session (§3, §4.7).
type IsRunning int

const (
	IsRunningFalse IsRunning = iota
	IsRunningTrue
	IsRunningPartial
)

func (r IsRunning) String() string {
	switch r {
	case IsRunningFalse:
		return "False"
	case IsRunningTrue:
		return "True"
	case IsRunningPartial:
		return "Partial"
	default:
		return "Unknown"
	}
}

// calculateIsRunning implements §4.7: empty or all-Paused is False, all non-Paused is True,
// a mix is Partial.
func calculateIsRunning(engines []*EngineInfo) IsRunning {
	if len(engines) == 0 {
		return IsRunningFalse
	}
	sawPaused, sawNonPaused := false, false
	for _, info := range engines {
		if info.State == EngineStatePaused {
			sawPaused = true
		} else {
			sawNonPaused = true
		}
	}
	switch {
	case sawNonPaused && !sawPaused:
		return IsRunningTrue
	case sawPaused && !sawNonPaused:
		return IsRunningFalse
	default:
		return IsRunningPartial
	}
}

const delayedIsRunningQuiescence = 500 * time.Millisecond

// delayedIsRunningNotifier debounces the noisy sequence of step operations into a single
// DelayedIsRunningChanged event once isRunning settles at True (§4.7, GLOSSARY DelayedIsRunning).
type delayedIsRunningNotifier struct {
	lifetimeCtx context.Context
	debounce    resiliency.DebounceLast[struct{}, struct{}, func(struct{}) (struct{}, error)]

	sessionCancel context.CancelFunc
	onSettled     func()
}

func newDelayedIsRunningNotifier(lifetimeCtx context.Context, onSettled func()) *delayedIsRunningNotifier {
	n := &delayedIsRunningNotifier{lifetimeCtx: lifetimeCtx, onSettled: onSettled}
	n.debounce = resiliency.NewDebounceLast[struct{}, struct{}](
		func(struct{}) (struct{}, error) { return struct{}{}, nil },
		delayedIsRunningQuiescence,
	)
	return n
}

// notifyRunning should be called every time a recompute observes IsRunningTrue. Repeated
// calls extend the quiescence window instead of firing immediately.
func (n *delayedIsRunningNotifier) notifyRunning() {
	if n.sessionCancel == nil {
		ctx, cancel := context.WithCancel(n.lifetimeCtx)
		n.sessionCancel = cancel

		go func() {
			if _, err := n.debounce.Run(ctx, struct{}{}); err == nil {
				n.onSettled()
			}
		}()
		return
	}

	go func() {
		_, _ = n.debounce.Run(n.lifetimeCtx, struct{}{})
	}()
}

// notifyNotRunning cancels any in-flight quiescence window; called whenever a recompute
// observes anything other than IsRunningTrue.
func (n *delayedIsRunningNotifier) notifyNotRunning() {
	if n.sessionCancel != nil {
		n.sessionCancel()
		n.sessionCancel = nil
	}
}
