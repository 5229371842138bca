/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"gocomposer/internal/domain"
	"gocomposer/internal/mutate"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), DBFileName))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	p, c := sampleProject(t), sampleComposition(t)
	for _, d := range []domain.Document{p, c} {
		if err := s.Save(ctx, d); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	got, err := s.Load(ctx, c.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(domain.Document(c), got) {
		t.Fatalf("loaded composition differs")
	}

	// Saving again replaces the row.
	title := "Poster v2"
	p2, err := mutate.Apply(p, mutate.ProjectCommand(mutate.UpdateProject{Rename: &title}))
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if err := s.Save(ctx, p2); err != nil {
		t.Fatalf("Save p2: %v", err)
	}
	list, err := s.List(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("List got %d err %v", len(list), err)
	}
	for _, sum := range list {
		if sum.ID == p.ID && (sum.Title != title || sum.Revision != p2.Revision()) {
			t.Fatalf("stale summary %+v", sum)
		}
	}

	if err := s.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSQLiteCheckpoints(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	p := sampleProject(t)
	if _, err := s.LatestCheckpoint(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound without checkpoints, got %v", err)
	}
	for i := int64(1); i <= 6; i++ {
		if err := s.Checkpoint(ctx, p, i, fmt.Sprintf("step-%d", i)); err != nil {
			t.Fatalf("Checkpoint %d: %v", i, err)
		}
	}
	latest, err := s.LatestCheckpoint(ctx, p.ID)
	if err != nil {
		t.Fatalf("LatestCheckpoint: %v", err)
	}
	if latest.Seq != 6 || latest.Label != "step-6" || latest.Doc.DocID() != p.ID {
		t.Fatalf("unexpected latest checkpoint %+v", latest)
	}
	if latest.TS.IsZero() {
		t.Fatalf("checkpoint timestamp not parsed")
	}
	list, err := s.ListCheckpoints(ctx, p.ID, 10)
	if err != nil || len(list) != 6 {
		t.Fatalf("ListCheckpoints got %d err %v", len(list), err)
	}
	n, err := s.PruneCheckpoints(ctx, p.ID, 3)
	if err != nil || n != 3 {
		t.Fatalf("PruneCheckpoints deleted %d err %v", n, err)
	}
	list, err = s.ListCheckpoints(ctx, p.ID, 10)
	if err != nil || len(list) != 3 || list[0].Seq != 6 || list[2].Seq != 4 {
		t.Fatalf("unexpected checkpoints after prune: %d err %v", len(list), err)
	}
}

// TestMigrationsUpgradeV1 ensures that a schema 1 database is migrated and gains its indexes.
func TestMigrationsUpgradeV1(t *testing.T) {
	path := filepath.Join(t.TempDir(), DBFileName)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(2000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS version (id INTEGER PRIMARY KEY CHECK(id=1), schema INTEGER NOT NULL, app TEXT, created_at TEXT NOT NULL, updated_at TEXT NOT NULL);`,
		`INSERT INTO version(id, schema, app, created_at, updated_at) VALUES(1, 1, 'test', '2020-01-01T00:00:00Z', '2020-01-01T00:00:00Z');`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			t.Fatalf("seed v1 schema: %v (q=%s)", err, q)
		}
	}
	_ = db.Close()

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	var schema int
	if err := s.DB().QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&schema); err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if schema != schemaVersion {
		t.Fatalf("expected schema %d after migration, got %d", schemaVersion, schema)
	}
	var cnt int
	if err := s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name IN ('idx_checkpoints_doc_seq','idx_documents_type')`).Scan(&cnt); err != nil {
		t.Fatalf("query indexes: %v", err)
	}
	if cnt != 2 {
		t.Fatalf("expected 2 indexes after migration, got %d", cnt)
	}

	// Reopening an up-to-date database is a no-op.
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = s2.Close()
}
