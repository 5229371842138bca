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
	"time"

	"gocomposer/internal/domain"
)

// Store persists whole documents by id.
type Store interface {
	Load(ctx context.Context, id string) (domain.Document, error)
	Save(ctx context.Context, doc domain.Document) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Summary, error)
	Close() error
}

// Summary describes a stored document without its content.
type Summary struct {
	ID        string
	Type      domain.DocType
	Title     string
	Revision  int64
	UpdatedAt time.Time
}

// Summarize builds a Summary from a decoded document.
func Summarize(doc domain.Document) Summary {
	s := Summary{ID: doc.DocID(), Type: doc.DocType(), Revision: doc.Revision()}
	switch d := doc.(type) {
	case domain.Project:
		s.Title = d.Name
	case domain.Composition:
		s.Title = d.Title
	}
	return s
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
