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
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"gocomposer/internal/domain"
	"gocomposer/internal/geom"
	"gocomposer/internal/mutate"
	"gocomposer/internal/storage"
)

// openPGForTest connects to GCM_PG_DSN (or DATABASE_URL) and skips when no server is reachable.
func openPGForTest(t *testing.T) *PGStore {
	t.Helper()
	dsn := os.Getenv("GCM_PG_DSN")
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := OpenPG(ctx, dsn)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPGStoreCRUD(t *testing.T) {
	s := openPGForTest(t)
	ctx := context.Background()

	p := domain.NewProject("PG poster", 800, 600)
	p.ID = "pg-test-" + time.Now().Format("150405.000000")
	p, err := mutate.Apply(p, mutate.AddEntity{Kind: domain.KindShape, Geometry: geom.Box(1, 2, 30, 40)})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, p); err != nil {
		t.Fatalf("Save: %v", err)
	}
	t.Cleanup(func() { _ = s.Delete(context.Background(), p.ID) })

	got, err := s.Load(ctx, p.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, domain.Document(p)) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got, p)
	}

	p.Name = "Renamed"
	if err := s.Save(ctx, p); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var found bool
	for _, sum := range list {
		if sum.ID == p.ID {
			found = sum.Title == "Renamed" && sum.Type == domain.DocProject
		}
	}
	if !found {
		t.Fatalf("upserted summary missing from %+v", list)
	}

	for seq := int64(1); seq <= 3; seq++ {
		if err := s.Checkpoint(ctx, p, seq, "edit"); err != nil {
			t.Fatalf("Checkpoint: %v", err)
		}
	}
	cps, err := s.ListCheckpoints(ctx, p.ID, 2)
	if err != nil {
		t.Fatalf("ListCheckpoints: %v", err)
	}
	if len(cps) != 2 || cps[0].Seq != 3 || cps[1].Seq != 2 {
		t.Fatalf("checkpoints = %+v", cps)
	}
	if n, err := s.PruneCheckpoints(ctx, p.ID, 1); err != nil || n != 2 {
		t.Fatalf("PruneCheckpoints = %d, %v", n, err)
	}

	if err := s.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load(ctx, p.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Load after delete: %v", err)
	}
	if err := s.Delete(ctx, p.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second Delete: %v", err)
	}
	if cps, _ := s.ListCheckpoints(ctx, p.ID, 0); len(cps) != 0 {
		t.Fatalf("checkpoints survived delete: %d", len(cps))
	}
}
