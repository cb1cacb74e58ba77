// Process-wide memory pool directory
// https://github.com/flowplane/ixgo
//
// Copyright (c) The ixgo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mempool

import "sync"

var (
	registryMu sync.Mutex
	nextID     uint64
	registry   = make(map[uint64]*Pool)
)

// allocateID returns the next process-wide monotonically increasing pool
// id and registers the pool under it. Only called at pool construction, a
// startup-time path, never from the RX/TX fast path.
func allocateID(p *Pool) uint64 {
	registryMu.Lock()
	defer registryMu.Unlock()

	nextID++
	id := nextID
	registry[id] = p

	return id
}

// Find returns the pool registered under id, if any.
func Find(id uint64) (*Pool, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()

	p, ok := registry[id]
	return p, ok
}

// FindOwner returns the pool that owns buf, as reported by its
// mempool_handle header field.
func FindOwner(handle uint64) (*Pool, bool) {
	return Find(handle)
}
