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
)

// CompositionCommand is a command over timeline compositions.
type CompositionCommand = Command[domain.Composition]

// AddClip places a new clip. Nil Properties use domain.DefaultClipProps.
type AddClip struct {
	ID           string
	Kind         domain.ClipKind
	StartTime    float64
	Duration     float64
	Track        int
	SourceURL    string
	SourceOffset float64
	DisplayName  string
	Properties   *domain.ClipProps
}

func (AddClip) Name() string { return "add_clip" }

func (c AddClip) Apply(comp domain.Composition) (domain.Composition, error) {
	op := c.Name()
	props := domain.DefaultClipProps()
	if c.Properties != nil {
		props = *c.Properties
	}
	next := comp.Clone()
	id := c.ID
	if id == "" {
		id = next.NextID()
	} else if next.Contains(id) {
		return comp, invalidf(op, id, "id already in use")
	}
	cl := domain.Clip{
		ID:           id,
		Kind:         c.Kind,
		Name:         c.DisplayName,
		SourceURL:    c.SourceURL,
		SourceOffset: c.SourceOffset,
		StartTime:    c.StartTime,
		Duration:     c.Duration,
		Track:        c.Track,
		Properties:   props,
	}
	if err := cl.Validate(); err != nil {
		return comp, invalid(op, id, err)
	}
	next.Clips[id] = cl
	bumpComposition(&next)
	return next, nil
}

// ClipPatch lists the clip fields to replace; nil fields are kept.
type ClipPatch struct {
	StartTime, Duration, SourceOffset *float64
	Track                             *int
	SourceURL, Name                   *string
	Properties                        *domain.ClipProps
}

func (p ClipPatch) empty() bool {
	return p.StartTime == nil && p.Duration == nil && p.SourceOffset == nil && p.Track == nil &&
		p.SourceURL == nil && p.Name == nil && p.Properties == nil
}

// UpdateClip replaces the patched fields of one clip.
type UpdateClip struct {
	ID    string
	Patch ClipPatch
}

func (UpdateClip) Name() string { return "update_clip" }

func (c UpdateClip) Apply(comp domain.Composition) (domain.Composition, error) {
	return patchClip(c.Name(), comp, c.ID, c.Patch)
}

func patchClip(op string, comp domain.Composition, id string, pt ClipPatch) (domain.Composition, error) {
	cl, ok := comp.Clips[id]
	if !ok {
		return comp, notFound(op, id)
	}
	if pt.empty() {
		return comp, invalidf(op, id, "nothing to update")
	}
	if pt.StartTime != nil {
		cl.StartTime = *pt.StartTime
	}
	if pt.Duration != nil {
		cl.Duration = *pt.Duration
	}
	if pt.SourceOffset != nil {
		cl.SourceOffset = *pt.SourceOffset
	}
	if pt.Track != nil {
		cl.Track = *pt.Track
	}
	if pt.SourceURL != nil {
		cl.SourceURL = *pt.SourceURL
	}
	if pt.Name != nil {
		cl.Name = *pt.Name
	}
	if pt.Properties != nil {
		cl.Properties = *pt.Properties
	}
	if err := cl.Validate(); err != nil {
		return comp, invalid(op, id, err)
	}
	next := comp.Clone()
	next.Clips[id] = cl
	bumpComposition(&next)
	return next, nil
}

// MoveClip changes when and on which track a clip plays.
// Total duration and track count follow from the moved clip on the next read.
type MoveClip struct {
	ID        string
	StartTime float64
	Track     int
}

func (MoveClip) Name() string { return "move_clip" }

func (c MoveClip) Apply(comp domain.Composition) (domain.Composition, error) {
	start, track := c.StartTime, c.Track
	return patchClip(c.Name(), comp, c.ID, ClipPatch{StartTime: &start, Track: &track})
}

// RemoveClip deletes a clip. Track indices of other clips are not renumbered.
type RemoveClip struct{ ID string }

func (RemoveClip) Name() string { return "remove_clip" }

func (c RemoveClip) Apply(comp domain.Composition) (domain.Composition, error) {
	if !comp.Contains(c.ID) {
		return comp, notFound(c.Name(), c.ID)
	}
	next := comp.Clone()
	delete(next.Clips, c.ID)
	bumpComposition(&next)
	return next, nil
}

// SplitClip cuts a clip at an absolute time strictly inside it. The original
// keeps the left part; the right part becomes a new clip on the same track.
type SplitClip struct {
	ID string
	At float64
	// NewID optionally names the right part.
	NewID string
}

func (SplitClip) Name() string { return "split_clip" }

func (c SplitClip) Apply(comp domain.Composition) (domain.Composition, error) {
	op := c.Name()
	cl, ok := comp.Clips[c.ID]
	if !ok {
		return comp, notFound(op, c.ID)
	}
	if !(c.At > cl.StartTime) || !(c.At < cl.End()) {
		return comp, invalidf(op, c.ID, "split point %v outside (%v,%v)", c.At, cl.StartTime, cl.End())
	}
	next := comp.Clone()
	right := cl
	right.ID = c.NewID
	if right.ID == "" {
		right.ID = next.NextID()
	} else if next.Contains(right.ID) {
		return comp, invalidf(op, right.ID, "id already in use")
	}
	cut := c.At - cl.StartTime
	right.StartTime = c.At
	right.Duration = cl.End() - c.At
	right.SourceOffset = cl.SourceOffset + cut
	cl.Duration = cut
	for _, part := range []domain.Clip{cl, right} {
		if err := part.Validate(); err != nil {
			return comp, invalid(op, part.ID, err)
		}
	}
	next.Clips[cl.ID] = cl
	next.Clips[right.ID] = right
	bumpComposition(&next)
	return next, nil
}

// UpdateComposition changes title or output resolution.
type UpdateComposition struct {
	Title      *string
	Resolution *domain.Resolution
}

func (UpdateComposition) Name() string { return "update_composition" }

func (c UpdateComposition) Apply(comp domain.Composition) (domain.Composition, error) {
	if c.Title == nil && c.Resolution == nil {
		return comp, invalid(c.Name(), comp.ID, errors.New("nothing to update"))
	}
	next := comp.Clone()
	if c.Title != nil {
		next.Title = *c.Title
	}
	if c.Resolution != nil {
		if c.Resolution.Width <= 0 || c.Resolution.Height <= 0 {
			return comp, invalid(c.Name(), comp.ID, fmt.Errorf("resolution %dx%d must be > 0", c.Resolution.Width, c.Resolution.Height))
		}
		next.Resolution = *c.Resolution
	}
	bumpComposition(&next)
	return next, nil
}
