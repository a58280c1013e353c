// Copyright 2025 The calltrace Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package calltrace

import "bytes"

// Pool sizing for formatter scratch buffers. Buffers that grow beyond
// maxRetainedBufferSize are discarded on release rather than retained.
const (
	bufferPoolCapacity    = 16
	maxRetainedBufferSize = 1 << 16
)

// BufferPool is a bounded free-list of byte buffers shared across
// concurrently enriching goroutines. Unlike sync.Pool it enforces a hard
// capacity and a maximum retained buffer size, so memory held between
// bursts of logging stays bounded. Reset keeps a buffer's storage, so a
// reacquired buffer starts with the capacity its previous use grew.
type BufferPool struct {
	free        chan *bytes.Buffer
	maxRetained int
}

// NewBufferPool constructs a pool retaining at most capacity buffers of
// at most maxRetained bytes each. Non-positive arguments fall back to the
// package defaults.
func NewBufferPool(capacity, maxRetained int) *BufferPool {
	if capacity <= 0 {
		capacity = bufferPoolCapacity
	}
	if maxRetained <= 0 {
		maxRetained = maxRetainedBufferSize
	}
	return &BufferPool{
		free:        make(chan *bytes.Buffer, capacity),
		maxRetained: maxRetained,
	}
}

// Get pops a reusable buffer or allocates a fresh one.
func (p *BufferPool) Get() *bytes.Buffer {
	select {
	case b := <-p.free:
		return b
	default:
		return &bytes.Buffer{}
	}
}

// Put returns a buffer to the pool, emptied but with its storage intact.
// Oversized buffers are dropped so a single pathological stack cannot pin
// memory; buffers beyond the pool's capacity are dropped as well.
func (p *BufferPool) Put(b *bytes.Buffer) {
	if b == nil || b.Cap() > p.maxRetained {
		return
	}
	b.Reset()
	select {
	case p.free <- b:
	default:
	}
}

// sharedBufferPool serves all enrichers that are not constructed with an
// isolated pool. Process-wide by design.
var sharedBufferPool = NewBufferPool(bufferPoolCapacity, maxRetainedBufferSize)
