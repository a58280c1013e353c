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

import "errors"

// Construction-time errors. These report programmer mistakes in wiring and
// are returned immediately by constructors; they are never subject to the
// runtime error-suppression policy.
var (
	// ErrNilInner is returned by NewHandler when the wrapped handler is nil.
	ErrNilInner = errors.New("calltrace: inner handler must not be nil")

	// ErrNilCallback is returned when WithErrorCallback is given a nil
	// function. Passing no callback at all is valid; passing nil explicitly
	// is treated as a wiring mistake.
	ErrNilCallback = errors.New("calltrace: error callback must not be nil")

	// ErrNilSink is returned by EnrichSink when the sink is nil.
	ErrNilSink = errors.New("calltrace: property sink must not be nil")

	// ErrNilRecord is returned by Enrich when the record is nil.
	ErrNilRecord = errors.New("calltrace: record must not be nil")
)
