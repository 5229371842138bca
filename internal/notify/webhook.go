/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	applog "gocomposer/internal/log"
	"gocomposer/internal/version"
)

// Config holds runtime configuration for webhook delivery and crash uploads.
// Delivery is disabled unless a URL is set.
//
// Environment variables (read by FromEnv):
// - GCM_NOTIFY_URL: URL to POST JSON events to
// - GCM_CRASH_UPLOAD_URL: URL to POST crash reports to
// - GCM_NOTIFY_TIMEOUT_MS: optional request timeout, default 1500ms
// - GCM_NOTIFY_DEBUG: if set, logs send attempts
type Config struct {
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

func FromEnv() Config {
	cfg := Config{
		EventsURL:    strings.TrimSpace(os.Getenv("GCM_NOTIFY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("GCM_CRASH_UPLOAD_URL")),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv("GCM_NOTIFY_DEBUG") != "",
	}
	if ms := strings.TrimSpace(os.Getenv("GCM_NOTIFY_TIMEOUT_MS")); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil {
			cfg.Timeout = v
		}
	}
	return cfg
}

// Webhook is an async sender with a bounded queue. It never blocks callers and
// drops events when the queue is full or delivery fails.
type Webhook struct {
	cfg    Config
	log    *slog.Logger
	cli    *http.Client
	q      chan Event
	once   sync.Once
	closed chan struct{}
	queued atomic.Int64
}

var defaultWebhook *Webhook
var defaultOnce sync.Once

// InitDefault installs the package-level webhook from env when first used.
func InitDefault() {
	defaultOnce.Do(func() {
		if defaultWebhook == nil {
			defaultWebhook = NewWebhook(FromEnv())
		}
	})
}

// SetDefault installs w as the package-level webhook.
func SetDefault(w *Webhook) {
	defaultOnce.Do(func() {})
	defaultWebhook = w
}

// NewWebhook starts a sender for cfg.
func NewWebhook(cfg Config) *Webhook {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 1500 * time.Millisecond
	}
	w := &Webhook{
		cfg:    cfg,
		log:    applog.WithComponent("notify"),
		cli:    &http.Client{Timeout: cfg.Timeout},
		q:      make(chan Event, 64),
		closed: make(chan struct{}),
	}
	go w.loop()
	return w
}

// Enabled reports whether an events endpoint is configured.
func (w *Webhook) Enabled() bool { return w != nil && w.cfg.EventsURL != "" }

// Notify queues ev for delivery.
func (w *Webhook) Notify(_ context.Context, ev Event) {
	if !w.Enabled() || ev.Kind == "" {
		return
	}
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	w.queued.Add(1)
	select {
	case w.q <- ev:
	default:
		w.queued.Add(-1)
		if w.cfg.DebugLogging {
			w.log.Debug("event dropped, queue full", slog.String("kind", string(ev.Kind)))
		}
	}
}

// Flush waits until queued events and crash uploads finished, ctx is done or two seconds passed.
func (w *Webhook) Flush(ctx context.Context) {
	deadline := time.Now().Add(2 * time.Second)
	for w.queued.Load() > 0 && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Close stops the background goroutine. Queued events are dropped.
func (w *Webhook) Close() { w.once.Do(func() { close(w.closed) }) }

func (w *Webhook) loop() {
	for {
		select {
		case <-w.closed:
			return
		case ev := <-w.q:
			w.send(ev)
			w.queued.Add(-1)
		}
	}
}

type payload struct {
	Event
	Version string `json:"version"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
}

func (w *Webhook) send(ev Event) {
	buf, _ := json.Marshal(payload{Event: ev, Version: version.String(), OS: runtime.GOOS, Arch: runtime.GOARCH})
	req, err := http.NewRequest(http.MethodPost, w.cfg.EventsURL, bytes.NewReader(buf))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.cli.Do(req)
	if err != nil {
		if w.cfg.DebugLogging {
			w.log.Debug("event send failed", slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
	if w.cfg.DebugLogging {
		w.log.Debug("event sent", slog.String("kind", string(ev.Kind)), slog.Int("status", resp.StatusCode))
	}
}

// UploadCrash posts an already serialized crash report to the crash URL, if configured.
func (w *Webhook) UploadCrash(report []byte) {
	if w == nil || w.cfg.CrashURL == "" {
		return
	}
	w.queued.Add(1)
	go func(b []byte) {
		defer w.queued.Add(-1)
		req, err := http.NewRequest(http.MethodPost, w.cfg.CrashURL, bytes.NewReader(b))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
		resp, err := w.cli.Do(req)
		if err != nil {
			if w.cfg.DebugLogging {
				w.log.Debug("crash upload failed", slog.Any("err", err))
			}
			return
		}
		_ = resp.Body.Close()
	}(append([]byte(nil), report...))
}

// UploadCrash using the default webhook.
func UploadCrash(report []byte) { InitDefault(); defaultWebhook.UploadCrash(report) }
