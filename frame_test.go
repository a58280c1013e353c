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

// TestCaptureFramesInnermostFirst captures the live test stack and
// verifies the caller of captureFrames is the first frame.
func TestCaptureFramesInnermostFirst(t *testing.T) {
	frames := captureFrames(0, 0)
	if len(frames) < 2 {
		t.Fatalf("captured %d frames, want at least the test and the harness", len(frames))
	}
	if got := frames[0].Function; !strings.HasSuffix(got, "TestCaptureFramesInnermostFirst") {
		t.Fatalf("frames[0] = %q, want the calling test function", got)
	}

	var sawHarness bool
	for _, f := range frames[1:] {
		if strings.HasPrefix(f.Function, "testing.") {
			sawHarness = true
			break
		}
	}
	if !sawHarness {
		t.Errorf("no testing harness frame above the test: %v", functionNames(frames))
	}
}

// TestCaptureFramesSkipDropsNearFrames: skip moves the first frame up
// the stack past the test function.
func TestCaptureFramesSkipDropsNearFrames(t *testing.T) {
	frames := captureFrames(1, 0)
	if len(frames) == 0 {
		t.Fatal("captured no frames")
	}
	if got := frames[0].Function; strings.HasSuffix(got, "TestCaptureFramesSkipDropsNearFrames") {
		t.Fatalf("frames[0] = %q, want the test's caller", got)
	}
}

// TestCaptureFramesDepthBound truncates instead of failing on shallow
// limits.
func TestCaptureFramesDepthBound(t *testing.T) {
	frames := captureFrames(0, 2)
	if len(frames) == 0 || len(frames) > 2 {
		t.Fatalf("captured %d frames with depth 2", len(frames))
	}

	// Excessive depths clamp to the pooled buffer size rather than
	// allocating per call.
	deep := captureFrames(0, maxCaptureDepth*4)
	if len(deep) > maxCaptureDepth {
		t.Fatalf("captured %d frames, beyond the buffer cap", len(deep))
	}
}

// TestCaptureFramesEmptyRuntime returns nil when the runtime yields no
// program counters.
func TestCaptureFramesEmptyRuntime(t *testing.T) {
	stubCapture(t, nil)

	if frames := captureFrames(0, 0); frames != nil {
		t.Fatalf("captureFrames() = %v, want nil", functionNames(frames))
	}
}
