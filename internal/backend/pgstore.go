/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gocomposer/internal/domain"
	"gocomposer/internal/storage"
)

// PGStore keeps documents and history checkpoints in Postgres as JSONB envelopes.
type PGStore struct {
	db *sql.DB
}

var _ storage.Store = (*PGStore)(nil)

// OpenPG connects to dsn and migrates the schema. An empty dsn uses DefaultDSN.
func OpenPG(ctx context.Context, dsn string) (*PGStore, error) {
	db, err := openDB(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &PGStore{db: db}, nil
}

func (s *PGStore) Close() error { return s.db.Close() }

// DB exposes the pool for maintenance commands.
func (s *PGStore) DB() *sql.DB { return s.db }

func (s *PGStore) Load(ctx context.Context, id string) (domain.Document, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body::text FROM documents WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", id, err)
	}
	return storage.Decode([]byte(body))
}

func (s *PGStore) Save(ctx context.Context, doc domain.Document) error {
	body, err := storage.Encode(doc)
	if err != nil {
		return err
	}
	sum := storage.Summarize(doc)
	_, err = s.db.ExecContext(ctx, `INSERT INTO documents(id, doc_type, title, revision, body, updated_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, now())
		ON CONFLICT (id) DO UPDATE SET doc_type = EXCLUDED.doc_type, title = EXCLUDED.title,
			revision = EXCLUDED.revision, body = EXCLUDED.body, updated_at = now()`,
		sum.ID, string(sum.Type), sum.Title, sum.Revision, string(body))
	if err != nil {
		return fmt.Errorf("save %s: %w", sum.ID, err)
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_ = tx.Rollback()
		return fmt.Errorf("delete %s: %w", id, storage.ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoints WHERE doc_id = $1`, id); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *PGStore) List(ctx context.Context) ([]storage.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, doc_type, title, revision, updated_at FROM documents ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []storage.Summary
	for rows.Next() {
		var sum storage.Summary
		var typ string
		if err := rows.Scan(&sum.ID, &typ, &sum.Title, &sum.Revision, &sum.UpdatedAt); err != nil {
			return nil, err
		}
		sum.Type = domain.DocType(typ)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Checkpoint stores doc as history entry seq.
func (s *PGStore) Checkpoint(ctx context.Context, doc domain.Document, seq int64, label string) error {
	body, err := storage.Encode(doc)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO checkpoints(doc_id, seq, label, body) VALUES ($1, $2, $3, $4::jsonb)`,
		doc.DocID(), seq, label, string(body)); err != nil {
		return fmt.Errorf("checkpoint %s@%d: %w", doc.DocID(), seq, err)
	}
	return nil
}

// ListCheckpoints returns up to limit most recent checkpoints of docID, newest first.
func (s *PGStore) ListCheckpoints(ctx context.Context, docID string, limit int) ([]storage.Checkpoint, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT seq, label, created_at, body::text FROM checkpoints
		WHERE doc_id = $1 ORDER BY seq DESC, id DESC LIMIT $2`, docID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []storage.Checkpoint
	for rows.Next() {
		var cp storage.Checkpoint
		var body string
		if err := rows.Scan(&cp.Seq, &cp.Label, &cp.TS, &body); err != nil {
			return nil, err
		}
		if cp.Doc, err = storage.Decode([]byte(body)); err != nil {
			return nil, fmt.Errorf("checkpoint %s@%d: %w", docID, cp.Seq, err)
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// PruneCheckpoints keeps the newest keepLast checkpoints of docID and returns how many were removed.
func (s *PGStore) PruneCheckpoints(ctx context.Context, docID string, keepLast int) (int64, error) {
	if keepLast < 0 {
		keepLast = 0
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE doc_id = $1 AND id NOT IN (
		SELECT id FROM checkpoints WHERE doc_id = $1 ORDER BY seq DESC, id DESC LIMIT $2)`, docID, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
