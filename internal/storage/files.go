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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gocomposer/internal/domain"
	applog "gocomposer/internal/log"
)

const (
	DocumentExt    = ".json"
	BackupsDirName = "backups"
)

// FileStore keeps one JSON envelope per document in Root. Every save first copies
// the previous file into Root/backups with a timestamp, then replaces it atomically.
type FileStore struct {
	Root string
	// KeepBackups limits backups per document (0 keeps all).
	KeepBackups int
}

// NewFileStore creates root and its backups folder if needed.
func NewFileStore(root string) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := os.MkdirAll(filepath.Join(root, BackupsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create store dirs: %w", err)
	}
	return &FileStore{Root: root, KeepBackups: 20}, nil
}

// checkID rejects ids that would escape the store directory.
func checkID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\:`) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("invalid document id %q", id)
	}
	return nil
}

func (s *FileStore) path(id string) string { return filepath.Join(s.Root, id+DocumentExt) }

// Load reads the document with id. If the current file cannot be read or decoded,
// the latest backup is tried.
func (s *FileStore) Load(_ context.Context, id string) (domain.Document, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.path(id))
	if err != nil {
		doc, berr := s.openFromLatestBackup(id)
		if berr == nil {
			return doc, nil
		}
		if errors.Is(err, fs.ErrNotExist) && errors.Is(berr, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("read document: %w; backup attempt: %v", err, berr)
	}
	doc, derr := Decode(b)
	if derr != nil {
		bdoc, berr := s.openFromLatestBackup(id)
		if berr != nil {
			return nil, fmt.Errorf("decode document: %w; backup attempt: %v", derr, berr)
		}
		applog.WithComponent("storage").Warn("document restored from backup", slog.String("doc", id), slog.Any("err", derr))
		return bdoc, nil
	}
	return doc, nil
}

// Save writes doc with transactional semantics and a timestamped backup of the previous version.
func (s *FileStore) Save(_ context.Context, doc domain.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	id := doc.DocID()
	if err := checkID(id); err != nil {
		return err
	}
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	bdir := filepath.Join(s.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	target := s.path(id)
	if _, statErr := os.Stat(target); statErr == nil {
		stamp := time.Now().UTC().Format("20060102-150405.000000000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s%s.%s.bak", id, DocumentExt, stamp))
		if cerr := copyFile(target, bpath); cerr != nil {
			return fmt.Errorf("backup current document: %w", cerr)
		}
		s.pruneBackups(id)
	}

	// Write to a temp file in the same directory, then rename over the target.
	temp := filepath.Join(s.Root, fmt.Sprintf(".%s.tmp-%d-%d", id, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write temp document: %w", werr)
	}
	if rerr := os.Rename(temp, target); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace document: %w", rerr)
	}
	return nil
}

// Delete removes the document and its backups.
func (s *FileStore) Delete(_ context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := os.Remove(s.path(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete %s: %w", id, ErrNotFound)
		}
		return err
	}
	for _, b := range s.backups(id) {
		_ = os.Remove(b)
	}
	return nil
}

// List returns summaries of all stored documents ordered by id. Unreadable files are skipped.
func (s *FileStore) List(ctx context.Context) ([]Summary, error) {
	ents, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, fmt.Errorf("read store dir: %w", err)
	}
	var out []Summary
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, DocumentExt) {
			continue
		}
		doc, err := s.Load(ctx, strings.TrimSuffix(name, DocumentExt))
		if err != nil {
			continue
		}
		info, _ := e.Info()
		sum := Summarize(doc)
		if info != nil {
			sum.UpdatedAt = info.ModTime().UTC()
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Close is a no-op; it lets FileStore satisfy Store.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) backups(id string) []string {
	bdir := filepath.Join(s.Root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil
	}
	prefix := id + DocumentExt + "."
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out
}

func (s *FileStore) pruneBackups(id string) {
	if s.KeepBackups <= 0 {
		return
	}
	all := s.backups(id)
	for len(all) > s.KeepBackups {
		_ = os.Remove(all[0])
		all = all[1:]
	}
}

// openFromLatestBackup decodes the newest backup of id.
func (s *FileStore) openFromLatestBackup(id string) (domain.Document, error) {
	candidates := s.backups(id)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no backups found: %w", fs.ErrNotExist)
	}
	latest := candidates[len(candidates)-1]
	b, err := os.ReadFile(latest)
	if err != nil {
		return nil, fmt.Errorf("read latest backup: %w", err)
	}
	doc, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("decode latest backup: %w", err)
	}
	return doc, nil
}

// writeFileSync writes data to a file and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
