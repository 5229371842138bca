/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package editor ties a document history to its view state. An Editor is the
// single place where commands, undo/redo, loading and async insertions meet.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gocomposer/internal/domain"
	"gocomposer/internal/history"
	applog "gocomposer/internal/log"
	"gocomposer/internal/mutate"
	"gocomposer/internal/viewstate"
)

var (
	// ErrStaleRequest is returned for insertions issued before the document was closed or reloaded.
	ErrStaleRequest = errors.New("stale request")
	// ErrExternalService wraps failures of persistence or generation collaborators.
	ErrExternalService = errors.New("external service failed")
	// ErrClosed is returned by edits on a closed editor.
	ErrClosed = errors.New("editor is closed")
	// ErrWrongType is returned when a loaded document is not of the editor's type.
	ErrWrongType = errors.New("document has the wrong type")
)

// Document is what an Editor can hold.
type Document[D any] interface {
	history.Snapshot[D]
	domain.Document
	Contains(id string) bool
}

type timeline interface{ TotalDuration() float64 }

// Persistence loads and stores whole documents.
type Persistence interface {
	Load(ctx context.Context, id string) (domain.Document, error)
	Save(ctx context.Context, doc domain.Document) error
}

// Checkpointer records committed snapshots, e.g. for crash recovery.
type Checkpointer interface {
	Checkpoint(ctx context.Context, doc domain.Document, seq int64, label string) error
}

// Options configure an Editor.
type Options struct {
	History history.Config
	// Coalesce records repeated commands of the same name within History.MinInterval as one step.
	Coalesce     bool
	Checkpointer Checkpointer
	Logger       *slog.Logger
}

// Token identifies the document generation an async request was issued against.
type Token struct {
	docID string
	epoch uint64
}

func (t Token) DocID() string { return t.docID }

// Editor is safe for concurrent use.
type Editor[D Document[D]] struct {
	opts Options

	mu     sync.Mutex
	hist   *history.History[D]
	view   viewstate.State
	epoch  uint64
	closed bool
}

// New opens an editor on doc. doc must satisfy its invariants.
func New[D Document[D]](doc D, opts Options) (*Editor[D], error) {
	if err := doc.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("%w: %w", mutate.ErrValidation, err)
	}
	e := &Editor[D]{opts: opts, hist: history.New(doc, opts.History), epoch: 1}
	return e, nil
}

func (e *Editor[D]) logger() *slog.Logger {
	if e.opts.Logger != nil {
		return e.opts.Logger
	}
	return applog.WithComponent("editor")
}

// Current returns a copy of the snapshot at the history cursor.
func (e *Editor[D]) Current() D { return e.hist.Current() }

// View returns a copy of the selection and playback state.
func (e *Editor[D]) View() viewstate.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view
}

// Dispatch applies cmd to the current snapshot and commits the result.
// A rejected command leaves history and view state untouched.
func (e *Editor[D]) Dispatch(cmd mutate.Command[D]) (D, error) {
	next, entry, err := e.dispatchLocked(cmd)
	if err != nil {
		return next, err
	}
	e.checkpoint(next, entry)
	return next, nil
}

func (e *Editor[D]) dispatchLocked(cmd mutate.Command[D]) (D, history.Entry[D], error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return e.hist.Current(), history.Entry[D]{}, ErrClosed
	}
	return e.commitLocked(cmd)
}

// commitLocked applies cmd against the current snapshot. e.mu must be held.
func (e *Editor[D]) commitLocked(cmd mutate.Command[D]) (D, history.Entry[D], error) {
	cur := e.hist.Current()
	name := "nil"
	if cmd != nil {
		name = cmd.Name()
	}
	l := applog.WithOperation(e.logger(), name)
	next, err := mutate.Apply(cur, cmd)
	if err != nil {
		l.Debug("command rejected", slog.String("doc", cur.DocID()), slog.Any("err", err))
		return cur, history.Entry[D]{}, err
	}
	if e.opts.Coalesce {
		e.hist.CommitCoalesced(next, name)
	} else {
		e.hist.Commit(next, name)
	}
	e.reconcileLocked(next)
	entry := e.hist.CurrentEntry()
	l.Debug("command committed", slog.String("doc", next.DocID()), slog.Int64("rev", next.Revision()), slog.Int64("seq", entry.Seq))
	return next, entry, nil
}

func (e *Editor[D]) checkpoint(doc D, entry history.Entry[D]) {
	if e.opts.Checkpointer == nil {
		return
	}
	if err := e.opts.Checkpointer.Checkpoint(context.Background(), doc, entry.Seq, entry.Label); err != nil {
		e.logger().Warn("checkpoint failed", slog.String("doc", doc.DocID()), slog.Int64("seq", entry.Seq), slog.Any("err", err))
	}
}

func (e *Editor[D]) reconcileLocked(doc D) {
	var total float64
	if tl, ok := any(doc).(timeline); ok {
		total = tl.TotalDuration()
	}
	e.view.Reconcile(doc.Contains, total)
}

// Undo steps back one history entry. At the first entry or on a closed editor
// it is a no-op and reports false.
func (e *Editor[D]) Undo() (D, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return e.hist.Current(), false
	}
	doc, ok := e.hist.Undo()
	if ok {
		e.reconcileLocked(doc)
	}
	return doc, ok
}

// Redo steps forward one history entry. At the last entry or on a closed editor
// it is a no-op and reports false.
func (e *Editor[D]) Redo() (D, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return e.hist.Current(), false
	}
	doc, ok := e.hist.Redo()
	if ok {
		e.reconcileLocked(doc)
	}
	return doc, ok
}

func (e *Editor[D]) CanUndo() bool { return !e.isClosed() && e.hist.CanUndo() }
func (e *Editor[D]) CanRedo() bool { return !e.isClosed() && e.hist.CanRedo() }

func (e *Editor[D]) Entries() []history.Entry[D] { return e.hist.Entries() }
func (e *Editor[D]) Stats() history.Stats        { return e.hist.Stats() }

func (e *Editor[D]) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Select marks id as the active entity or clip. The id must exist in the current snapshot.
func (e *Editor[D]) Select(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.hist.Current().Contains(id) {
		return fmt.Errorf("select %s: %w", id, mutate.ErrNotFound)
	}
	e.view.Select(id)
	return nil
}

func (e *Editor[D]) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.view.ClearSelection()
}

// Seek moves the playhead, clamped into [0, total duration]. Projects have no
// timeline, so their playhead always stays at 0.
func (e *Editor[D]) Seek(t float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	var total float64
	if tl, ok := any(e.hist.Current()).(timeline); ok {
		total = tl.TotalDuration()
	}
	e.view.Seek(t, total)
	return e.view.Playhead
}

// TogglePlayback flips play/pause and returns the new playing state.
func (e *Editor[D]) TogglePlayback() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.view.Toggle()
	return e.view.Playing
}

// Load replaces the document, starts a fresh history and invalidates all outstanding tokens.
func (e *Editor[D]) Load(doc D) error {
	if err := doc.CheckInvariants(); err != nil {
		return fmt.Errorf("load %s: %w: %w", doc.DocID(), mutate.ErrValidation, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hist.Reset(doc)
	e.epoch++
	e.closed = false
	e.view = viewstate.State{}
	e.logger().Info("document loaded", slog.String("doc", doc.DocID()), slog.String("type", string(doc.DocType())))
	return nil
}

// Open loads id from p and replaces the current document with it.
func (e *Editor[D]) Open(ctx context.Context, p Persistence, id string) error {
	raw, err := p.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrExternalService, id, err)
	}
	doc, ok := raw.(D)
	if !ok {
		return fmt.Errorf("open %s: %w: got %s", id, ErrWrongType, raw.DocType())
	}
	return e.Load(doc)
}

// Save stores the current snapshot through p.
func (e *Editor[D]) Save(ctx context.Context, p Persistence) error {
	doc := e.Current()
	if err := p.Save(ctx, doc); err != nil {
		e.logger().Error("save failed", slog.String("doc", doc.DocID()), slog.Any("err", err))
		return fmt.Errorf("%w: save %s: %w", ErrExternalService, doc.DocID(), err)
	}
	e.logger().Info("document saved", slog.String("doc", doc.DocID()), slog.Int64("rev", doc.Revision()))
	return nil
}

// Close ends the session. Outstanding tokens become stale and further edits fail.
func (e *Editor[D]) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.epoch++
}

// Begin returns a token for an async request against the currently open document.
func (e *Editor[D]) Begin() Token {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Token{docID: e.hist.Current().DocID(), epoch: e.epoch}
}

// Stale reports whether tok was issued before the last Close or Load.
func (e *Editor[D]) Stale(tok Token) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed || tok.epoch != e.epoch
}

// Insert builds a command against the snapshot current at resolution time and commits it.
// It fails with ErrStaleRequest when tok no longer matches the open document.
func (e *Editor[D]) Insert(tok Token, build func(cur D) (mutate.Command[D], error)) (D, error) {
	next, entry, err := e.insertLocked(tok, build)
	if err != nil {
		return next, err
	}
	e.checkpoint(next, entry)
	return next, nil
}

func (e *Editor[D]) insertLocked(tok Token, build func(cur D) (mutate.Command[D], error)) (D, history.Entry[D], error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || tok.epoch != e.epoch {
		return e.hist.Current(), history.Entry[D]{}, fmt.Errorf("%w: document %s was closed or reloaded", ErrStaleRequest, tok.docID)
	}
	cmd, err := build(e.hist.Current())
	if err != nil {
		return e.hist.Current(), history.Entry[D]{}, err
	}
	return e.commitLocked(cmd)
}
