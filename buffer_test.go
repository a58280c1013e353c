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

import (
	"strings"
	"testing"
)

// TestBufferPoolRetainsStorage verifies a released buffer comes back
// empty but keeps the capacity its previous use grew, so steady-state
// formatting stops allocating.
func TestBufferPoolRetainsStorage(t *testing.T) {
	t.Parallel()

	pool := NewBufferPool(2, 1<<12)
	b := pool.Get()
	b.WriteString(strings.Repeat("x", 512))
	grown := b.Cap()
	if grown < 512 {
		t.Fatalf("buffer cap = %d after writing 512 bytes", grown)
	}
	pool.Put(b)

	got := pool.Get()
	if got != b {
		t.Fatal("expected the released buffer back")
	}
	if got.Len() != 0 {
		t.Fatalf("reacquired buffer not emptied, len = %d", got.Len())
	}
	if got.Cap() < grown {
		t.Fatalf("reacquired buffer cap = %d, want at least %d (storage was discarded)", got.Cap(), grown)
	}
}

// TestBufferPoolDiscardsOversized: buffers grown past the retained
// limit are dropped instead of pinned.
func TestBufferPoolDiscardsOversized(t *testing.T) {
	t.Parallel()

	pool := NewBufferPool(2, 32)
	b := pool.Get()
	b.WriteString(strings.Repeat("x", 128))
	pool.Put(b)

	if got := pool.Get(); got == b {
		t.Fatal("oversized buffer was retained")
	}
}

// TestBufferPoolCapacityBound: releases beyond capacity are dropped.
func TestBufferPoolCapacityBound(t *testing.T) {
	t.Parallel()

	pool := NewBufferPool(1, 1<<12)
	first := pool.Get()
	second := pool.Get()
	first.WriteString("a")
	second.WriteString("b")
	pool.Put(first)
	pool.Put(second) // over capacity, discarded

	if got := pool.Get(); got != first {
		t.Fatal("expected the first released buffer")
	}
	if got := pool.Get(); got == second {
		t.Fatal("over-capacity buffer was retained")
	}
}

// TestBufferPoolNilPut is a no-op.
func TestBufferPoolNilPut(t *testing.T) {
	t.Parallel()

	pool := NewBufferPool(1, 1<<12)
	pool.Put(nil)
	if b := pool.Get(); b == nil {
		t.Fatal("Get returned nil after nil Put")
	}
}

// TestBufferPoolDefaults applies sane bounds for non-positive sizing.
func TestBufferPoolDefaults(t *testing.T) {
	t.Parallel()

	pool := NewBufferPool(0, 0)
	if cap(pool.free) != bufferPoolCapacity {
		t.Fatalf("default capacity = %d, want %d", cap(pool.free), bufferPoolCapacity)
	}
	if pool.maxRetained != maxRetainedBufferSize {
		t.Fatalf("default maxRetained = %d, want %d", pool.maxRetained, maxRetainedBufferSize)
	}
}
