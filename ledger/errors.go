// Copyright 2025 LandmarkLens
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

package ledger

import "errors"

var (
	// ErrInvalidIdentifier is returned when the user identifier is empty
	// after trimming. No store call is made in that case.
	ErrInvalidIdentifier = errors.New("ledger: invalid user identifier")

	// ErrStoreUnavailable is returned when Redis cannot be reached or the
	// operation times out. Callers must treat this as a denial for the
	// quota gate; it is never an implicit allow.
	ErrStoreUnavailable = errors.New("ledger: store unavailable")
)
