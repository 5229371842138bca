/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package notify reports async generation outcomes to the user and to optional webhooks.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	applog "gocomposer/internal/log"
)

// Kind classifies an Event.
type Kind string

const (
	GenerationStarted   Kind = "generation.started"
	GenerationInserted  Kind = "generation.inserted"
	GenerationFailed    Kind = "generation.failed"
	GenerationDiscarded Kind = "generation.discarded"
)

// Event is a user-facing notification.
type Event struct {
	Kind    Kind      `json:"kind"`
	Ticket  string    `json:"ticket,omitempty"`
	DocID   string    `json:"doc,omitempty"`
	Message string    `json:"message,omitempty"`
	Err     string    `json:"error,omitempty"`
	TS      time.Time `json:"ts"`
}

// Notifier receives events. Implementations must not block for long.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// LogNotifier writes events to the application log. Failures log at warn level,
// discarded results at debug level.
type LogNotifier struct{ Logger *slog.Logger }

func (n LogNotifier) Notify(ctx context.Context, ev Event) {
	l := n.Logger
	if l == nil {
		l = applog.WithComponent("notify")
	}
	attrs := []any{slog.String("kind", string(ev.Kind)), slog.String("ticket", ev.Ticket), slog.String("doc", ev.DocID)}
	if ev.Err != "" {
		attrs = append(attrs, slog.String("err", ev.Err))
	}
	msg := ev.Message
	if msg == "" {
		msg = string(ev.Kind)
	}
	switch ev.Kind {
	case GenerationFailed:
		l.WarnContext(ctx, msg, attrs...)
	case GenerationDiscarded:
		l.DebugContext(ctx, msg, attrs...)
	default:
		l.InfoContext(ctx, msg, attrs...)
	}
}

// Multi fans an event out to every non-nil notifier in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, ev)
		}
	}
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the kinds of the recorded events in order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}
