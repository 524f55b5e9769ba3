/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package session

import (
	pq "github.com/emirpasic/gods/queues/priorityqueue"

	"github.com/dsmgr/dsm/pkg/maps"
)

// engineRegistry is the list of currently attached EngineInfo records, keyed by their Engine
// handle. Callers hold the manager lock around every method.
type engineRegistry struct {
	byEngine map[Engine]*EngineInfo
}

func newEngineRegistry() *engineRegistry {
	return &engineRegistry{byEngine: make(map[Engine]*EngineInfo)}
}

func (r *engineRegistry) add(info *EngineInfo) {
	r.byEngine[info.Engine] = info
}

// remove drops the record for engine, returning it if present. find returning absent is a
// normal condition: the engine may have disconnected between message post and dispatch.
func (r *engineRegistry) remove(engine Engine) (*EngineInfo, bool) {
	info, found := r.byEngine[engine]
	if !found {
		return nil, false
	}
	delete(r.byEngine, engine)
	return info, true
}

func (r *engineRegistry) find(engine Engine) (*EngineInfo, bool) {
	info, found := r.byEngine[engine]
	return info, found
}

func (r *engineRegistry) snapshot() []*EngineInfo {
	infos := make([]*EngineInfo, 0, len(r.byEngine))
	for _, info := range r.byEngine {
		infos = append(infos, info)
	}
	return infos
}

func (r *engineRegistry) count() int {
	return len(r.byEngine)
}

// forProcess returns every engine record currently targeting process.
func (r *engineRegistry) forProcess(process *Process) []*EngineInfo {
	var infos []*EngineInfo
	for _, info := range r.byEngine {
		if info.Process == process {
			infos = append(infos, info)
		}
	}
	return infos
}

// providerRegistry holds the configured EngineProviders, ordered by ascending priority for
// the Start walk (§4.4 step 3), and exposes case-insensitive lookup by provider kind for
// diagnostics and future kind-scoped restart options.
type providerRegistry struct {
	ordered []EngineProvider
	byKind  maps.StringKeyMap[EngineProvider]
}

func newProviderRegistry(providers []EngineProvider) *providerRegistry {
	byKind := maps.NewStringKeyMap[EngineProvider](maps.StringMapModeCaseInsensitive)

	queue := pq.NewWith(func(a, b any) int {
		return a.(EngineProvider).Priority() - b.(EngineProvider).Priority()
	})
	for _, p := range providers {
		queue.Enqueue(p)
		byKind.Set(p.Kind(), p)
	}

	ordered := make([]EngineProvider, 0, len(providers))
	for {
		v, ok := queue.Dequeue()
		if !ok {
			break
		}
		ordered = append(ordered, v.(EngineProvider))
	}

	return &providerRegistry{ordered: ordered, byKind: byKind}
}

// walk invokes fn for each provider in ascending priority order until fn returns true,
// mirroring "walk the engine providers in ascending metadata-order; the first that returns a
// non-null engine wins."
func (r *providerRegistry) walk(fn func(EngineProvider) (Engine, error, bool)) (Engine, error) {
	for _, p := range r.ordered {
		engine, err, handled := fn(p)
		if handled {
			return engine, err
		}
	}
	return nil, nil
}

func (r *providerRegistry) byKindName(kind string) (EngineProvider, bool) {
	return r.byKind.Get(kind)
}
