/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package viewstate holds selection and playhead state. It is never recorded in history.
package viewstate

import "math"

// State is the per-session view of a document.
type State struct {
	// SelectedID is the selected entity or clip id; empty means no selection.
	SelectedID string
	Playhead   float64
	Playing    bool
}

func (s *State) Select(id string) { s.SelectedID = id }
func (s *State) ClearSelection()  { s.SelectedID = "" }

// HasSelection reports whether anything is selected.
func (s State) HasSelection() bool { return s.SelectedID != "" }

// Seek moves the playhead to t clamped into [0, total]. NaN seeks to 0.
func (s *State) Seek(t, total float64) {
	s.Playhead = Clamp(t, total)
}

// Clamp limits t to [0, total].
func Clamp(t, total float64) float64 {
	if math.IsNaN(t) || t < 0 || !(total > 0) {
		return 0
	}
	return math.Min(t, total)
}

func (s *State) Play()   { s.Playing = true }
func (s *State) Pause()  { s.Playing = false }
func (s *State) Toggle() { s.Playing = !s.Playing }

// Reconcile brings the state in line with a new document snapshot: a selection
// whose id no longer exists is cleared and the playhead is clamped to total.
// It reports whether anything changed.
func (s *State) Reconcile(contains func(id string) bool, total float64) bool {
	before := *s
	if s.SelectedID != "" && (contains == nil || !contains(s.SelectedID)) {
		s.SelectedID = ""
	}
	s.Playhead = Clamp(s.Playhead, total)
	return before != *s
}
