/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/google/uuid"

	"gocomposer/internal/geom"
)

// Project is a canvas document. LayerOrder lists entity ids back-to-front
// and is always a permutation of the keys of Entities.
type Project struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Width      float64           `json:"width"`
	Height     float64           `json:"height"`
	Background string            `json:"background,omitempty"`
	Entities   map[string]Entity `json:"entities"`
	LayerOrder []string          `json:"layerOrder"`
	Version    int64             `json:"version"`
	// Seq is the last id number handed out by NextID.
	Seq int64 `json:"seq"`
}

// NewProject returns an empty project with a fresh id.
func NewProject(name string, width, height float64) Project {
	return Project{
		ID:         uuid.NewString(),
		Name:       name,
		Width:      width,
		Height:     height,
		Background: "#ffffff",
		Entities:   map[string]Entity{},
		LayerOrder: []string{},
	}
}

func (p Project) DocID() string    { return p.ID }
func (p Project) DocType() DocType { return DocProject }
func (p Project) Revision() int64  { return p.Version }

// Clone returns a deep copy; the copy shares no maps or slices with p.
func (p Project) Clone() Project {
	ents := make(map[string]Entity, len(p.Entities))
	for id, e := range p.Entities {
		ents[id] = e.Clone()
	}
	p.Entities = ents
	p.LayerOrder = append(make([]string, 0, len(p.LayerOrder)), p.LayerOrder...)
	return p
}

// Contains reports whether an entity with id exists.
func (p Project) Contains(id string) bool {
	_, ok := p.Entities[id]
	return ok
}

// Entity returns a copy of the entity with id.
func (p Project) Entity(id string) (Entity, bool) {
	e, ok := p.Entities[id]
	if !ok {
		return Entity{}, false
	}
	return e.Clone(), true
}

// IndexOf returns the layer index of id, or -1.
func (p Project) IndexOf(id string) int { return slices.Index(p.LayerOrder, id) }

// Ordered returns the entities in render order (back to front).
func (p Project) Ordered() []Entity {
	out := make([]Entity, 0, len(p.LayerOrder))
	for _, id := range p.LayerOrder {
		out = append(out, p.Entities[id].Clone())
	}
	return out
}

// TopMostFirst returns the entities in layer-panel order (front to back).
func (p Project) TopMostFirst() []Entity {
	out := p.Ordered()
	slices.Reverse(out)
	return out
}

// HitTest returns the id of the top-most visible entity whose rotated bounds contain pt.
func (p Project) HitTest(pt geom.Pt) (string, bool) {
	for i := len(p.LayerOrder) - 1; i >= 0; i-- {
		e := p.Entities[p.LayerOrder[i]]
		if e.Visible && e.Geometry.Bounds().Contains(pt) {
			return e.ID, true
		}
	}
	return "", false
}

// NextID advances Seq and returns a new entity id.
func (p *Project) NextID() string {
	for {
		p.Seq++
		id := "e" + strconv.FormatInt(p.Seq, 10)
		if !p.Contains(id) {
			return id
		}
	}
}

// LastIssuedID is the id most recently returned by NextID.
func (p Project) LastIssuedID() string { return "e" + strconv.FormatInt(p.Seq, 10) }

// ErrInvariant is wrapped by CheckInvariants failures.
var ErrInvariant = errors.New("document invariant violated")

// CheckInvariants verifies canvas size, entity validity and that LayerOrder
// is a permutation of the entity ids.
func (p Project) CheckInvariants() error {
	if !(p.Width > 0) || !(p.Height > 0) || !geom.Finite(p.Width) || !geom.Finite(p.Height) {
		return fmt.Errorf("%w: canvas size must be > 0", ErrInvariant)
	}
	if len(p.LayerOrder) != len(p.Entities) {
		return fmt.Errorf("%w: layer order has %d ids for %d entities", ErrInvariant, len(p.LayerOrder), len(p.Entities))
	}
	seen := make(map[string]struct{}, len(p.LayerOrder))
	for _, id := range p.LayerOrder {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate layer id %s", ErrInvariant, id)
		}
		seen[id] = struct{}{}
		e, ok := p.Entities[id]
		if !ok {
			return fmt.Errorf("%w: orphan layer id %s", ErrInvariant, id)
		}
		if e.ID != id {
			return fmt.Errorf("%w: entity keyed %s carries id %s", ErrInvariant, id, e.ID)
		}
		if err := e.Validate(); err != nil {
			return fmt.Errorf("%w: entity %s: %v", ErrInvariant, id, err)
		}
	}
	return nil
}
