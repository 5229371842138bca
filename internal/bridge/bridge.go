/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package bridge runs content generation requests in the background and inserts
// their results into whatever document snapshot is current when they complete.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"gocomposer/internal/editor"
	applog "gocomposer/internal/log"
	"gocomposer/internal/mutate"
	"gocomposer/internal/notify"
)

var (
	ErrStaleRequest    = editor.ErrStaleRequest
	ErrExternalService = editor.ErrExternalService
	// ErrBusy is returned by Request when the in-flight limit is reached.
	ErrBusy = errors.New("too many generations in flight")
)

// GenerateRequest describes the content to generate.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
	// Media is "image", "video" or "audio".
	Media  string `json:"media"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	// Track is the timeline track for composition insertions.
	Track int `json:"track,omitempty"`
}

// GenerateResult is what a generation service returns.
type GenerateResult struct {
	URL      string  `json:"url"`
	MIME     string  `json:"mime,omitempty"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	// Data optionally carries the encoded asset; it is used to size images without metadata.
	Data []byte `json:"-"`
}

// GenerationClient calls an external generation service.
type GenerationClient interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}

// Target is the document session results are inserted into.
type Target[D any] interface {
	Begin() editor.Token
	Insert(tok editor.Token, build func(cur D) (mutate.Command[D], error)) (D, error)
}

// Placer turns a generation result into a command against the current snapshot.
type Placer[D any] func(cur D, req GenerateRequest, res GenerateResult) (mutate.Command[D], error)

// Ticket identifies one generation request.
type Ticket struct {
	ID     string
	Token  editor.Token
	Req    GenerateRequest
	Issued time.Time
}

// Outcome is reported once per ticket.
type Outcome[D any] struct {
	Ticket Ticket
	Doc    D
	Err    error
}

// Options configure a Bridge.
type Options[D any] struct {
	// MaxInFlight limits concurrent generations; 0 means 4.
	MaxInFlight int
	// Timeout bounds each generation call; 0 means 60s.
	Timeout  time.Duration
	Notifier notify.Notifier
	// OnDone is called after every request finished, from the request goroutine.
	OnDone func(Outcome[D])
	// OnPanic receives a panic raised on a request goroutine. Without it the
	// panic propagates and takes the process down.
	OnPanic func(v any)
}

// Bridge is safe for concurrent use.
type Bridge[D any] struct {
	target Target[D]
	client GenerationClient
	place  Placer[D]
	opts   Options[D]
	log    *slog.Logger

	g *errgroup.Group

	mu       sync.Mutex
	inFlight map[string]Ticket
}

func New[D any](target Target[D], client GenerationClient, place Placer[D], opts Options[D]) *Bridge[D] {
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.LogNotifier{}
	}
	g := new(errgroup.Group)
	g.SetLimit(opts.MaxInFlight)
	return &Bridge[D]{
		target:   target,
		client:   client,
		place:    place,
		opts:     opts,
		log:      applog.WithComponent("bridge"),
		g:        g,
		inFlight: map[string]Ticket{},
	}
}

// Request starts a generation for req against the currently open document and
// returns immediately. ctx bounds the generation call, not the call to Request.
func (b *Bridge[D]) Request(ctx context.Context, req GenerateRequest) (Ticket, error) {
	tk := Ticket{ID: uuid.NewString(), Token: b.target.Begin(), Req: req, Issued: time.Now()}
	b.mu.Lock()
	b.inFlight[tk.ID] = tk
	b.mu.Unlock()
	started := b.g.TryGo(func() error {
		defer func() {
			if b.opts.OnPanic == nil {
				return
			}
			if r := recover(); r != nil {
				b.opts.OnPanic(r)
			}
		}()
		b.run(ctx, tk)
		return nil
	})
	if !started {
		b.forget(tk.ID)
		return Ticket{}, ErrBusy
	}
	return tk, nil
}

// InFlight returns the tickets still waiting for a result.
func (b *Bridge[D]) InFlight() []Ticket {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Ticket, 0, len(b.inFlight))
	for _, tk := range b.inFlight {
		out = append(out, tk)
	}
	return out
}

// Wait blocks until every started request finished.
func (b *Bridge[D]) Wait() { _ = b.g.Wait() }

func (b *Bridge[D]) forget(id string) {
	b.mu.Lock()
	delete(b.inFlight, id)
	b.mu.Unlock()
}

func (b *Bridge[D]) run(ctx context.Context, tk Ticket) {
	defer b.forget(tk.ID)
	l := b.log.With(slog.String("ticket", tk.ID), slog.String("doc", tk.Token.DocID()))
	out := Outcome[D]{Ticket: tk}
	defer func() {
		if b.opts.OnDone != nil {
			b.opts.OnDone(out)
		}
	}()

	b.notify(ctx, tk, notify.GenerationStarted, "generation started", nil)
	cctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	res, err := b.client.Generate(cctx, tk.Req)
	cancel()
	if err != nil {
		out.Err = fmt.Errorf("%w: generate: %w", ErrExternalService, err)
		l.Warn("generation failed", slog.Any("err", err))
		b.notify(ctx, tk, notify.GenerationFailed, "generation failed", out.Err)
		return
	}

	doc, err := b.target.Insert(tk.Token, func(cur D) (mutate.Command[D], error) {
		return b.place(cur, tk.Req, res)
	})
	out.Doc = doc
	switch {
	case err == nil:
		l.Info("generation inserted", slog.Duration("took", time.Since(tk.Issued)))
		b.notify(ctx, tk, notify.GenerationInserted, "generation inserted", nil)
	case errors.Is(err, ErrStaleRequest):
		out.Err = err
		l.Debug("generation discarded", slog.Any("err", err))
		b.notify(ctx, tk, notify.GenerationDiscarded, "generation discarded", err)
	default:
		out.Err = err
		l.Warn("generation could not be inserted", slog.Any("err", err))
		b.notify(ctx, tk, notify.GenerationFailed, "generation could not be inserted", err)
	}
}

func (b *Bridge[D]) notify(ctx context.Context, tk Ticket, kind notify.Kind, msg string, err error) {
	ev := notify.Event{Kind: kind, Ticket: tk.ID, DocID: tk.Token.DocID(), Message: msg, TS: time.Now().UTC()}
	if err != nil {
		ev.Err = err.Error()
	}
	b.opts.Notifier.Notify(context.WithoutCancel(ctx), ev)
}
