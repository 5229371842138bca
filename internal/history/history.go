/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package history keeps a linear undo/redo timeline of immutable document snapshots.
package history

import (
	"sync"
	"time"
)

// Snapshot is a document value that can produce an independent deep copy of itself.
type Snapshot[D any] interface {
	Clone() D
}

// Entry is one point on the timeline.
type Entry[D any] struct {
	Doc   D
	Label string
	// Seq increases by one per recorded entry and is never reused, even after truncation.
	Seq int64
	At  time.Time
}

// Config controls depth caps and coalescing.
type Config struct {
	// MaxEntries caps the timeline length (0 means unlimited). The initial
	// entry is always kept; the oldest entries after it are dropped first.
	MaxEntries int
	// MinInterval lets CommitCoalesced replace the newest entry when it carries the
	// same label and was recorded less than MinInterval ago. Zero disables coalescing.
	MinInterval time.Duration
}

// Stats is a diagnostic summary of a History.
type Stats struct {
	Entries   int
	Cursor    int
	Pruned    int
	Coalesced int
}

// History is an append-only list of snapshots with a cursor. Committing while the
// cursor is not at the end discards everything after it. It is safe for concurrent use.
type History[D Snapshot[D]] struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	entries   []Entry[D]
	cursor    int
	seq       int64
	pruned    int
	coalesced int
}

// New returns a history whose single entry is initial.
func New[D Snapshot[D]](initial D, cfg Config) *History[D] {
	if cfg.MaxEntries < 0 {
		cfg.MaxEntries = 0
	}
	if cfg.MaxEntries == 1 {
		cfg.MaxEntries = 2
	}
	h := &History[D]{cfg: cfg, now: time.Now}
	h.resetLocked(initial)
	return h
}

// SetClock replaces the wall clock used for entry timestamps.
func (h *History[D]) SetClock(now func() time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = now
}

func (h *History[D]) resetLocked(doc D) {
	h.seq++
	h.entries = []Entry[D]{{Doc: doc.Clone(), Label: "initial", Seq: h.seq, At: h.now()}}
	h.cursor = 0
}

// Reset drops the whole timeline and starts over from doc.
func (h *History[D]) Reset(doc D) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resetLocked(doc)
}

// Commit truncates any redo tail, appends doc and moves the cursor onto it.
// It returns the new cursor.
func (h *History[D]) Commit(doc D, label string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.appendLocked(doc, label)
}

// CommitCoalesced behaves like Commit, except that it replaces the newest entry when
// that entry is the cursor, is not the initial entry, carries the same label and
// lies within Config.MinInterval.
func (h *History[D]) CommitCoalesced(doc D, label string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	last := len(h.entries) - 1
	if h.cfg.MinInterval > 0 && h.cursor == last && last > 0 {
		top := &h.entries[last]
		now := h.now()
		if top.Label == label && now.Sub(top.At) < h.cfg.MinInterval {
			top.Doc = doc.Clone()
			top.At = now
			h.coalesced++
			return h.cursor
		}
	}
	return h.appendLocked(doc, label)
}

func (h *History[D]) appendLocked(doc D, label string) int {
	h.entries = h.entries[:h.cursor+1]
	h.seq++
	h.entries = append(h.entries, Entry[D]{Doc: doc.Clone(), Label: label, Seq: h.seq, At: h.now()})
	h.cursor = len(h.entries) - 1
	h.enforceCapLocked()
	return h.cursor
}

func (h *History[D]) enforceCapLocked() {
	if h.cfg.MaxEntries <= 0 || len(h.entries) <= h.cfg.MaxEntries {
		return
	}
	drop := len(h.entries) - h.cfg.MaxEntries
	kept := make([]Entry[D], 0, h.cfg.MaxEntries)
	kept = append(kept, h.entries[0])
	kept = append(kept, h.entries[1+drop:]...)
	h.entries = kept
	h.cursor -= drop
	h.pruned += drop
}

// Undo moves the cursor back one entry and returns the snapshot there.
// At the first entry it is a no-op and reports false.
func (h *History[D]) Undo() (D, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor == 0 {
		return h.entries[h.cursor].Doc.Clone(), false
	}
	h.cursor--
	return h.entries[h.cursor].Doc.Clone(), true
}

// Redo moves the cursor forward one entry and returns the snapshot there.
// At the last entry it is a no-op and reports false.
func (h *History[D]) Redo() (D, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor == len(h.entries)-1 {
		return h.entries[h.cursor].Doc.Clone(), false
	}
	h.cursor++
	return h.entries[h.cursor].Doc.Clone(), true
}

// Current returns a copy of the snapshot at the cursor.
func (h *History[D]) Current() D {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.cursor].Doc.Clone()
}

// CurrentEntry returns the entry at the cursor with its own copy of the snapshot.
func (h *History[D]) CurrentEntry() Entry[D] {
	h.mu.Lock()
	defer h.mu.Unlock()
	e := h.entries[h.cursor]
	e.Doc = e.Doc.Clone()
	return e
}

func (h *History[D]) Cursor() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor
}

func (h *History[D]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func (h *History[D]) CanUndo() bool { return h.Cursor() > 0 }

func (h *History[D]) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor < len(h.entries)-1
}

// Entries returns a deep copy of the timeline.
func (h *History[D]) Entries() []Entry[D] {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Entry[D], len(h.entries))
	for i, e := range h.entries {
		e.Doc = e.Doc.Clone()
		out[i] = e
	}
	return out
}

// Stats returns current sizes for diagnostics.
func (h *History[D]) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{Entries: len(h.entries), Cursor: h.cursor, Pruned: h.pruned, Coalesced: h.coalesced}
}
