/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"gocomposer/internal/domain"
	applog "gocomposer/internal/log"
	"gocomposer/internal/notify"
	"gocomposer/internal/storage"
	"gocomposer/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Saver persists a document, typically the configured document store.
type Saver interface {
	Save(ctx context.Context, doc domain.Document) error
}

// Session describes the running editor so a crash can preserve its work.
type Session struct {
	// Dir receives crash reports and autosave files. Empty means os.TempDir.
	Dir string
	// Current returns the snapshot to autosave; nil skips autosave.
	Current func() domain.Document
	Store   Saver
	// Upload sends the report to the crash endpoint when one is configured.
	Upload bool
}

// Recover captures a panic and hands it to Fatal.
//
// Usage: defer crash.Recover(sess)
func Recover(s *Session) {
	if r := recover(); r != nil {
		Fatal(s, r)
	}
}

// Fatal handles a panic value recovered elsewhere, e.g. on a worker goroutine,
// and exits with code 2.
func Fatal(s *Session, r any) {
	Handle(s, r)
	// Exit with a non-zero code to indicate failure in CLI context.
	exitFn(2)
}

// Handle logs an error with stacktrace, writes an error report file and
// attempts a crash-safe autosave of the current document (if the session
// provides one). It returns the report path and does not exit.
func Handle(s *Session, r any) string {
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, report, err := writeReport(s, r, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}
	if s != nil && s.Upload && len(report) > 0 {
		notify.UploadCrash(report)
	}
	if s != nil && s.Current != nil {
		if path, err := autosave(s); err != nil {
			l.Error("autosave crash snapshot failed", slog.Any("err", err))
		} else {
			l.Info("autosave crash snapshot written", slog.String("path", path))
		}
	}

	if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
		l.Error("failed to write crash message to stderr", slog.Any("err", err))
	}
	if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
		l.Error("failed to write version info to stderr", slog.Any("err", err))
	}
	return reportPath
}

func reportDir(s *Session) string {
	if s != nil && s.Dir != "" {
		_ = os.MkdirAll(s.Dir, 0o755)
		return s.Dir
	}
	return os.TempDir()
}

func writeReport(s *Session, panicVal any, stack []byte) (string, []byte, error) {
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(reportDir(s), fmt.Sprintf("crash-%s.log", stamp))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "GoComposer Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if s != nil && s.Current != nil {
		if doc := s.Current(); doc != nil {
			_, _ = fmt.Fprintf(&buf, "Document: %s (%s, revision %d)\n", doc.DocID(), doc.DocType(), doc.Revision())
		}
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, buf.Bytes(), err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()
	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, buf.Bytes(), err
	}
	_ = f.Sync()
	return path, buf.Bytes(), nil
}

// autosave writes the current snapshot next to the crash report and, when a
// store is configured, saves it there as well. The file is written first so a
// failing store still leaves a recoverable copy.
func autosave(s *Session) (string, error) {
	doc := s.Current()
	if doc == nil {
		return "", fmt.Errorf("no current document")
	}
	data, err := storage.Encode(doc)
	if err != nil {
		return "", err
	}
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(reportDir(s), fmt.Sprintf("%s.crash-%s.json", doc.DocID(), stamp))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	if s.Store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Store.Save(ctx, doc); err != nil {
			return path, fmt.Errorf("save to store: %w", err)
		}
	}
	return path, nil
}
