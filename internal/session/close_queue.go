/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package session

import (
	"context"
	"sync"

	"github.com/dsmgr/dsm/pkg/queue"
	"github.com/go-logr/logr"
)

const closeQueueCapacity = 256

// closeQueue coalesces DbgObject.Close calls: appending to an empty queue posts a single
// drain task onto the dispatcher, which snapshots and clears the queue before closing each
// object (§4.9).
type closeQueue struct {
	lock    sync.Mutex
	pending *queue.ConcurrentBoundedQueue[DbgObject]
	empty   bool

	post func(func())
	ctx  context.Context
	log  logr.Logger
}

func newCloseQueue(post func(func()), dbgCtx context.Context, log logr.Logger) *closeQueue {
	return &closeQueue{
		pending: queue.NewConcurrentBoundedQueue[DbgObject](closeQueueCapacity),
		empty:   true,
		post:    post,
		ctx:     dbgCtx,
		log:     log,
	}
}

// close enqueues a single object for closing.
func (q *closeQueue) close(obj DbgObject) {
	if obj == nil {
		return
	}
	q.enqueueAndMaybeDrain([]DbgObject{obj})
}

// closeAll enqueues a batch of objects for closing.
func (q *closeQueue) closeAll(objs []DbgObject) {
	if len(objs) == 0 {
		return
	}
	q.enqueueAndMaybeDrain(objs)
}

func (q *closeQueue) enqueueAndMaybeDrain(objs []DbgObject) {
	q.lock.Lock()
	wasEmpty := q.empty
	for _, obj := range objs {
		if obj != nil {
			q.pending.Enqueue(obj)
			q.empty = false
		}
	}
	q.lock.Unlock()

	if wasEmpty {
		q.post(q.drain)
	}
}

// drain runs on the dispatcher: it snapshots and clears the queue under the lock, then closes
// each object with no lock held.
func (q *closeQueue) drain() {
	q.lock.Lock()
	var objs []DbgObject
	for {
		obj, ok := q.pending.Dequeue()
		if !ok {
			break
		}
		objs = append(objs, obj)
	}
	q.empty = true
	q.lock.Unlock()

	for _, obj := range objs {
		if err := obj.Close(q.ctx); err != nil {
			q.log.Error(err, "error closing debug object")
		}
	}
}
