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
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gocomposer/internal/domain"
	"gocomposer/internal/storage"
)

type memSaver struct {
	saved []domain.Document
	err   error
}

func (m *memSaver) Save(_ context.Context, doc domain.Document) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, doc)
	return nil
}

// silence swaps os.Stderr for a pipe for the duration of the test.
func silence(t *testing.T) {
	t.Helper()
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	t.Cleanup(func() {
		_ = w.Close()
		os.Stderr = old
		_, _ = io.Copy(io.Discard, r)
	})
}

// interceptExit replaces exitFn and returns a pointer to the received code.
func interceptExit(t *testing.T) *int {
	t.Helper()
	code := new(int)
	old := exitFn
	exitFn = func(c int) { *code = c }
	t.Cleanup(func() { exitFn = old })
	return code
}

func findFile(t *testing.T, dir, prefix, suffix string) string {
	t.Helper()
	files, _ := os.ReadDir(dir)
	for _, f := range files {
		if strings.HasPrefix(f.Name(), prefix) && strings.HasSuffix(f.Name(), suffix) {
			return filepath.Join(dir, f.Name())
		}
	}
	t.Fatalf("no %s*%s file in %s", prefix, suffix, dir)
	return ""
}

func TestWriteReportCreatesFileInTemp(t *testing.T) {
	path, report, err := writeReport(nil, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(path) })
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !bytes.Equal(b, report) {
		t.Fatalf("returned report differs from file")
	}
	s := string(b)
	if !strings.Contains(s, "GoComposer Crash Report") {
		t.Fatalf("report header missing")
	}
	if !strings.Contains(s, "Panic: boom") {
		t.Fatalf("panic content missing: %s", s)
	}
}

func TestRecoverAutosavesCurrentDocument(t *testing.T) {
	silence(t)
	code := interceptExit(t)
	dir := t.TempDir()
	doc := domain.NewProject("Crashy", 100, 100)
	saver := &memSaver{}
	sess := &Session{Dir: dir, Current: func() domain.Document { return doc }, Store: saver}

	func() {
		defer Recover(sess)
		panic("boom")
	}()

	if *code != 2 {
		t.Fatalf("expected exit code 2, got %d", *code)
	}
	b, err := os.ReadFile(findFile(t, dir, "crash-", ".log"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !bytes.Contains(b, []byte("Panic: boom")) || !bytes.Contains(b, []byte("Document: "+doc.ID)) {
		t.Fatalf("report incomplete: %s", b)
	}
	data, err := os.ReadFile(findFile(t, dir, doc.ID+".crash-", ".json"))
	if err != nil {
		t.Fatalf("read autosave: %v", err)
	}
	got, err := storage.Decode(data)
	if err != nil {
		t.Fatalf("autosave does not decode: %v", err)
	}
	if got.DocID() != doc.ID {
		t.Fatalf("autosaved %s, want %s", got.DocID(), doc.ID)
	}
	if len(saver.saved) != 1 {
		t.Fatalf("store saves = %d, want 1", len(saver.saved))
	}
}

func TestRecoverKeepsFileWhenStoreFails(t *testing.T) {
	silence(t)
	interceptExit(t)
	dir := t.TempDir()
	doc := domain.NewProject("Crashy", 100, 100)
	sess := &Session{Dir: dir, Current: func() domain.Document { return doc }, Store: &memSaver{err: errors.New("disk full")}}

	func() {
		defer Recover(sess)
		panic("boom")
	}()

	findFile(t, dir, doc.ID+".crash-", ".json")
}

func TestFatalHandlesValueRecoveredElsewhere(t *testing.T) {
	silence(t)
	code := interceptExit(t)
	dir := t.TempDir()
	doc := domain.NewComposition("Cut", domain.Resolution{Width: 1920, Height: 1080})
	sess := &Session{Dir: dir, Current: func() domain.Document { return doc }}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				Fatal(sess, r)
			}
		}()
		panic("worker boom")
	}()
	<-done

	if *code != 2 {
		t.Fatalf("expected exit code 2, got %d", *code)
	}
	findFile(t, dir, doc.ID+".crash-", ".json")
}

func TestRecoverWithoutPanicDoesNothing(t *testing.T) {
	code := interceptExit(t)
	*code = -1
	func() {
		defer Recover(nil)
	}()
	if *code != -1 {
		t.Fatalf("exit called without panic")
	}
}
