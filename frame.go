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
	"runtime"
	"sync"
)

// defaultCaptureDepth bounds how many program counters a single enrichment
// call collects. Deep stacks beyond this are truncated, not an error.
const defaultCaptureDepth = 64

// maxCaptureDepth caps user-configured capture depth so pooled PC buffers
// stay reusable.
const maxCaptureDepth = 256

var framePCPool = sync.Pool{
	New: func() any {
		buf := make([]uintptr, maxCaptureDepth)
		return &buf
	},
}

// frameIterator abstracts runtime.CallersFrames so tests can supply
// synthetic frame sequences.
type frameIterator interface {
	Next() (runtime.Frame, bool)
}

// Indirection points for the runtime facilities used during capture.
// Tests replace these to exercise paths the live runtime cannot produce.
var (
	runtimeCallersFunc = runtime.Callers
	callersFramesFunc  = func(pcs []uintptr) frameIterator { return runtime.CallersFrames(pcs) }
)

// captureFrames snapshots the current goroutine stack, skipping skip
// activation records below the caller, and materializes up to depth frames
// innermost-first. It returns nil when the runtime yields no frames.
func captureFrames(skip, depth int) []runtime.Frame {
	if depth <= 0 {
		depth = defaultCaptureDepth
	}
	if depth > maxCaptureDepth {
		depth = maxCaptureDepth
	}

	bufPtr := framePCPool.Get().(*[]uintptr)
	pcs := (*bufPtr)[:depth]

	n := runtimeCallersFunc(skip+2, pcs)
	if n == 0 {
		framePCPool.Put(bufPtr)
		return nil
	}

	frames := make([]runtime.Frame, 0, n)
	iter := callersFramesFunc(pcs[:n])
	for {
		frame, more := iter.Next()
		if frame.PC != 0 || frame.Function != "" {
			frames = append(frames, frame)
		}
		if !more || len(frames) >= depth {
			break
		}
	}

	framePCPool.Put(bufPtr)
	return frames
}
