/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package mutate

import (
	"errors"
	"fmt"

	"gocomposer/internal/domain"
	"gocomposer/internal/geom"
)

// ProjectCommand is a command over canvas projects.
type ProjectCommand = Command[domain.Project]

// AddEntity inserts a new entity on top of the layer stack.
// ID is optional; an empty ID is assigned from the project's sequence.
// Nil Properties fall back to the kind defaults.
type AddEntity struct {
	ID          string
	Kind        domain.Kind
	Geometry    geom.Geometry
	Properties  domain.Properties
	DisplayName string
	Hidden      bool
	Locked      bool
}

func (AddEntity) Name() string { return "add_entity" }

func (c AddEntity) Apply(p domain.Project) (domain.Project, error) {
	op := c.Name()
	if !c.Kind.Valid() {
		return p, invalidf(op, c.ID, "unknown entity kind %q", c.Kind)
	}
	props := c.Properties
	if props == nil {
		props, _ = domain.DefaultProperties(c.Kind)
	}
	next := p.Clone()
	id := c.ID
	if id == "" {
		id = next.NextID()
	} else if next.Contains(id) {
		return p, invalidf(op, id, "id already in use")
	}
	e := domain.Entity{
		ID:         id,
		Kind:       c.Kind,
		Geometry:   c.Geometry.Normalize(),
		Visible:    !c.Hidden,
		Locked:     c.Locked,
		Name:       c.DisplayName,
		Properties: props,
	}
	if err := e.Validate(); err != nil {
		return p, invalid(op, id, err)
	}
	next.Entities[id] = e.Clone()
	next.LayerOrder = append(next.LayerOrder, id)
	bumpProject(&next)
	return next, nil
}

// EntityPatch lists the fields to replace; nil fields are left as they are.
type EntityPatch struct {
	X, Y, Width, Height, Rotation, Opacity *float64
	Visible, Locked                        *bool
	Name                                   *string
	Properties                             domain.Properties
}

func (p EntityPatch) empty() bool {
	return p.X == nil && p.Y == nil && p.Width == nil && p.Height == nil && p.Rotation == nil &&
		p.Opacity == nil && p.Visible == nil && p.Locked == nil && p.Name == nil && p.Properties == nil
}

// content reports whether the patch edits anything other than visibility and lock state.
func (p EntityPatch) content() bool {
	return p.X != nil || p.Y != nil || p.Width != nil || p.Height != nil || p.Rotation != nil ||
		p.Opacity != nil || p.Name != nil || p.Properties != nil
}

// ErrLocked is the cause reported when a locked entity is edited.
var ErrLocked = errors.New("entity is locked")

// UpdateEntity replaces the patched fields of one entity.
// Locked entities only accept visibility and lock changes unless the same patch unlocks them.
type UpdateEntity struct {
	ID    string
	Patch EntityPatch
}

func (UpdateEntity) Name() string { return "update_entity" }

func (c UpdateEntity) Apply(p domain.Project) (domain.Project, error) {
	op := c.Name()
	cur, ok := p.Entities[c.ID]
	if !ok {
		return p, notFound(op, c.ID)
	}
	pt := c.Patch
	if pt.empty() {
		return p, invalidf(op, c.ID, "nothing to update")
	}
	stillLocked := cur.Locked && (pt.Locked == nil || *pt.Locked)
	if stillLocked && pt.content() {
		return p, invalid(op, c.ID, ErrLocked)
	}
	e := cur.Clone()
	g := &e.Geometry
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&g.X, pt.X)
	set(&g.Y, pt.Y)
	set(&g.Width, pt.Width)
	set(&g.Height, pt.Height)
	set(&g.Rotation, pt.Rotation)
	set(&g.Opacity, pt.Opacity)
	if pt.Visible != nil {
		e.Visible = *pt.Visible
	}
	if pt.Locked != nil {
		e.Locked = *pt.Locked
	}
	if pt.Name != nil {
		e.Name = *pt.Name
	}
	if pt.Properties != nil {
		if pt.Properties.Kind() != e.Kind {
			return p, invalidf(op, c.ID, "cannot set %s properties on a %s entity", pt.Properties.Kind(), e.Kind)
		}
		e.Properties = pt.Properties
	}
	if err := e.Geometry.Validate(); err != nil {
		return p, invalid(op, c.ID, err)
	}
	e.Geometry = e.Geometry.Normalize()
	if err := e.Validate(); err != nil {
		return p, invalid(op, c.ID, err)
	}
	next := p.Clone()
	next.Entities[c.ID] = e.Clone()
	bumpProject(&next)
	return next, nil
}

// RemoveEntity deletes an entity together with its layer slot.
type RemoveEntity struct{ ID string }

func (RemoveEntity) Name() string { return "remove_entity" }

func (c RemoveEntity) Apply(p domain.Project) (domain.Project, error) {
	idx := p.IndexOf(c.ID)
	if !p.Contains(c.ID) || idx < 0 {
		return p, notFound(c.Name(), c.ID)
	}
	next := p.Clone()
	delete(next.Entities, c.ID)
	next.LayerOrder = append(next.LayerOrder[:idx], next.LayerOrder[idx+1:]...)
	bumpProject(&next)
	return next, nil
}

// ReorderLayer moves the layer at From to index To; all other layers keep their relative order.
type ReorderLayer struct{ From, To int }

func (ReorderLayer) Name() string { return "reorder_layer" }

func (c ReorderLayer) Apply(p domain.Project) (domain.Project, error) {
	n := len(p.LayerOrder)
	if c.From < 0 || c.From >= n {
		return p, outOfRange(c.Name(), c.From, n)
	}
	if c.To < 0 || c.To >= n {
		return p, outOfRange(c.Name(), c.To, n)
	}
	next := p.Clone()
	id := next.LayerOrder[c.From]
	order := append(next.LayerOrder[:c.From:c.From], next.LayerOrder[c.From+1:]...)
	order = append(order[:c.To], append([]string{id}, order[c.To:]...)...)
	next.LayerOrder = order
	bumpProject(&next)
	return next, nil
}

// BringToFront and SendToBack are ReorderLayer shorthands addressed by id.
func BringToFront(p domain.Project, id string) (ProjectCommand, error) {
	i := p.IndexOf(id)
	if i < 0 {
		return nil, notFound("bring_to_front", id)
	}
	return ReorderLayer{From: i, To: len(p.LayerOrder) - 1}, nil
}

func SendToBack(p domain.Project, id string) (ProjectCommand, error) {
	i := p.IndexOf(id)
	if i < 0 {
		return nil, notFound("send_to_back", id)
	}
	return ReorderLayer{From: i, To: 0}, nil
}

// DuplicateEntity copies an entity, offsets the copy and places it on top.
type DuplicateEntity struct {
	ID               string
	OffsetX, OffsetY float64
}

func (DuplicateEntity) Name() string { return "duplicate_entity" }

func (c DuplicateEntity) Apply(p domain.Project) (domain.Project, error) {
	src, ok := p.Entities[c.ID]
	if !ok {
		return p, notFound(c.Name(), c.ID)
	}
	g := src.Geometry
	g.X += c.OffsetX
	g.Y += c.OffsetY
	name := src.Name
	if name != "" {
		name += " copy"
	}
	return AddEntity{Kind: src.Kind, Geometry: g, Properties: src.Clone().Properties, DisplayName: name, Hidden: !src.Visible}.Apply(p)
}

// UpdateProject changes document-level settings.
type UpdateProject struct {
	Rename        *string
	Width, Height *float64
	Background    *string
}

func (UpdateProject) Name() string { return "update_project" }

func (c UpdateProject) Apply(p domain.Project) (domain.Project, error) {
	if c.Rename == nil && c.Width == nil && c.Height == nil && c.Background == nil {
		return p, invalidf(c.Name(), p.ID, "nothing to update")
	}
	next := p.Clone()
	if c.Rename != nil {
		next.Name = *c.Rename
	}
	if c.Width != nil {
		next.Width = *c.Width
	}
	if c.Height != nil {
		next.Height = *c.Height
	}
	if c.Background != nil {
		next.Background = *c.Background
	}
	if !(next.Width > 0) || !(next.Height > 0) || !geom.Finite(next.Width) || !geom.Finite(next.Height) {
		return p, invalid(c.Name(), p.ID, fmt.Errorf("canvas size %vx%v must be > 0", next.Width, next.Height))
	}
	bumpProject(&next)
	return next, nil
}
