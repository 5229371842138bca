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
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
)

// Resolution is the output frame size of a composition in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Composition is a timeline document. Track count and total duration are
// always derived from Clips and never stored.
type Composition struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Resolution Resolution      `json:"resolution"`
	Clips      map[string]Clip `json:"clips"`
	Version    int64           `json:"version"`
	Seq        int64           `json:"seq"`
}

// NewComposition returns an empty composition with a fresh id.
func NewComposition(title string, res Resolution) Composition {
	return Composition{ID: uuid.NewString(), Title: title, Resolution: res, Clips: map[string]Clip{}}
}

func (c Composition) DocID() string    { return c.ID }
func (c Composition) DocType() DocType { return DocComposition }
func (c Composition) Revision() int64  { return c.Version }

// Clone returns a deep copy of c.
func (c Composition) Clone() Composition {
	clips := make(map[string]Clip, len(c.Clips))
	for id, cl := range c.Clips {
		clips[id] = cl
	}
	c.Clips = clips
	return c
}

func (c Composition) Contains(id string) bool {
	_, ok := c.Clips[id]
	return ok
}

func (c Composition) Clip(id string) (Clip, bool) {
	cl, ok := c.Clips[id]
	return cl, ok
}

// TotalDuration is the latest clip end, or 0 without clips.
func (c Composition) TotalDuration() float64 {
	var end float64
	for _, cl := range c.Clips {
		if e := cl.End(); e > end {
			end = e
		}
	}
	return end
}

// TrackCount is 1 + the highest track index in use, or 0 without clips.
// Tracks are never renumbered, so emptied lower tracks still count.
func (c Composition) TrackCount() int {
	if len(c.Clips) == 0 {
		return 0
	}
	hi := 0
	for _, cl := range c.Clips {
		if cl.Track > hi {
			hi = cl.Track
		}
	}
	return hi + 1
}

// ClipsOnTrack returns the clips of one track ordered by start time, then id.
func (c Composition) ClipsOnTrack(track int) []Clip {
	var out []Clip
	for _, cl := range c.Clips {
		if cl.Track == track {
			out = append(out, cl)
		}
	}
	sortClips(out)
	return out
}

// ClipsAt returns the clips active at time t (start <= t < end), lowest track first.
func (c Composition) ClipsAt(t float64) []Clip {
	var out []Clip
	for _, cl := range c.Clips {
		if cl.StartTime <= t && t < cl.End() {
			out = append(out, cl)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Track != out[j].Track {
			return out[i].Track < out[j].Track
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Sorted returns all clips ordered by track, start time and id.
func (c Composition) Sorted() []Clip {
	out := make([]Clip, 0, len(c.Clips))
	for _, cl := range c.Clips {
		out = append(out, cl)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Track != out[j].Track {
			return out[i].Track < out[j].Track
		}
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortClips(cs []Clip) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].StartTime != cs[j].StartTime {
			return cs[i].StartTime < cs[j].StartTime
		}
		return cs[i].ID < cs[j].ID
	})
}

// NextID advances Seq and returns a new clip id.
func (c *Composition) NextID() string {
	for {
		c.Seq++
		id := "c" + strconv.FormatInt(c.Seq, 10)
		if !c.Contains(id) {
			return id
		}
	}
}

// LastIssuedID is the id most recently returned by NextID.
func (c Composition) LastIssuedID() string { return "c" + strconv.FormatInt(c.Seq, 10) }

// CheckInvariants verifies resolution and every clip.
func (c Composition) CheckInvariants() error {
	if c.Resolution.Width <= 0 || c.Resolution.Height <= 0 {
		return fmt.Errorf("%w: resolution must be > 0", ErrInvariant)
	}
	for id, cl := range c.Clips {
		if cl.ID != id {
			return fmt.Errorf("%w: clip keyed %s carries id %s", ErrInvariant, id, cl.ID)
		}
		if err := cl.Validate(); err != nil {
			return fmt.Errorf("%w: clip %s: %v", ErrInvariant, id, err)
		}
	}
	return nil
}
