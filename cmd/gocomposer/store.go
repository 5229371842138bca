/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gocomposer/internal/backend"
	"gocomposer/internal/config"
	"gocomposer/internal/domain"
	"gocomposer/internal/editor"
	"gocomposer/internal/storage"
)

// checkpointStore is implemented by stores that keep history checkpoints.
type checkpointStore interface {
	editor.Checkpointer
	ListCheckpoints(ctx context.Context, docID string, limit int) ([]storage.Checkpoint, error)
	PruneCheckpoints(ctx context.Context, docID string, keepLast int) (int64, error)
}

var (
	_ checkpointStore = (*storage.SQLiteStore)(nil)
	_ checkpointStore = (*backend.PGStore)(nil)
)

var errNoCheckpoints = errors.New("history checkpoints need the sqlite or postgres driver")

// openStore opens the configured document store.
func openStore(ctx context.Context, cfg config.AppConfig) (storage.Store, error) {
	if cfg.Storage.Driver == config.DriverPostgres {
		s, err := backend.OpenPG(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	dir, err := cfg.StorageDir()
	if err != nil {
		return nil, err
	}
	switch cfg.Storage.Driver {
	case config.DriverFile:
		s, err := storage.NewFileStore(dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverSQLite:
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		s, err := storage.OpenSQLite(filepath.Join(dir, storage.DBFileName))
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// editorOptions wires history settings and, when the store supports it, checkpointing.
func editorOptions(store storage.Store) editor.Options {
	opts := editor.Options{
		History:  appCfg.HistoryOptions(),
		Coalesce: appCfg.History.CoalesceMs > 0,
	}
	if cp, ok := store.(editor.Checkpointer); ok {
		opts.Checkpointer = cp
	}
	return opts
}

// withEditor opens an editor session on doc, registers it for crash autosave
// and runs fn. The final snapshot is returned even when fn fails.
func withEditor[D editor.Document[D]](store storage.Store, doc D, fn func(*editor.Editor[D]) error) (D, error) {
	ed, err := editor.New(doc, editorOptions(store))
	if err != nil {
		return doc, err
	}
	crashSession.Current = func() domain.Document { return ed.Current() }
	crashSession.Store = store
	defer func() {
		if r := recover(); r != nil {
			// Keep the session registered so the crash handler in run can autosave.
			ed.Close()
			panic(r)
		}
		ed.Close()
		crashSession.Current = nil
		crashSession.Store = nil
	}()
	err = fn(ed)
	return ed.Current(), err
}
