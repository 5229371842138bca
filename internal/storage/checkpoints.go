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
	"time"

	"gocomposer/internal/domain"
)

// language=SQL
// dialect=SQLite
const insertCheckpointSQL = `INSERT INTO checkpoints(doc_id, seq, label, ts, body) VALUES (?, ?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestCheckpointSQL = `SELECT seq, label, ts, body FROM checkpoints WHERE doc_id = ? ORDER BY seq DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listCheckpointsSQL = `SELECT seq, label, ts, body FROM checkpoints WHERE doc_id = ? ORDER BY seq DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneCheckpointsSQL = `DELETE FROM checkpoints WHERE doc_id = ? AND id NOT IN (
	SELECT id FROM checkpoints WHERE doc_id = ? ORDER BY seq DESC, id DESC LIMIT ?
)`

// Checkpoint is a committed history snapshot of one document.
type Checkpoint struct {
	Seq   int64
	Label string
	TS    time.Time
	Doc   domain.Document
}

// Checkpoint stores doc as the history entry seq. It satisfies the editor's checkpoint hook.
func (s *SQLiteStore) Checkpoint(ctx context.Context, doc domain.Document, seq int64, label string) error {
	body, err := Encode(doc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, insertCheckpointSQL, doc.DocID(), seq, label, time.Now().UTC().Format(time.RFC3339Nano), body)
	if err != nil {
		return fmt.Errorf("checkpoint %s@%d: %w", doc.DocID(), seq, err)
	}
	return nil
}

// LatestCheckpoint returns the newest checkpoint of docID, or ErrNotFound.
func (s *SQLiteStore) LatestCheckpoint(ctx context.Context, docID string) (Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, selectLatestCheckpointSQL, docID)
	cp, err := scanCheckpoint(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, fmt.Errorf("checkpoint of %s: %w", docID, ErrNotFound)
	}
	return cp, err
}

// ListCheckpoints returns up to limit most recent checkpoints of docID, newest first.
func (s *SQLiteStore) ListCheckpoints(ctx context.Context, docID string, limit int) ([]Checkpoint, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, listCheckpointsSQL, docID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// PruneCheckpoints keeps at most keepLast checkpoints of docID and deletes older ones.
func (s *SQLiteStore) PruneCheckpoints(ctx context.Context, docID string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, pruneCheckpointsSQL, docID, docID, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanCheckpoint(scan func(dest ...any) error) (Checkpoint, error) {
	var cp Checkpoint
	var ts string
	var body []byte
	if err := scan(&cp.Seq, &cp.Label, &ts, &body); err != nil {
		return Checkpoint{}, err
	}
	cp.TS, _ = time.Parse(time.RFC3339Nano, ts)
	doc, err := Decode(body)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint %d: %w", cp.Seq, err)
	}
	cp.Doc = doc
	return cp, nil
}
