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
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"

	"gocomposer/internal/geom"
)

func sampleProject() Project {
	p := NewProject("Sample", 1080, 1080)
	p.Entities["e1"] = Entity{ID: "e1", Kind: KindText, Geometry: geom.Box(440, 515, 200, 50), Visible: true, Properties: TextProps{Text: "Add your text", FontSize: 32}}
	p.Entities["e2"] = Entity{ID: "e2", Kind: KindDrawing, Geometry: geom.Box(0, 0, 10, 10), Visible: true, Properties: DrawingProps{Points: []geom.Pt{{X: 1, Y: 2}}}}
	p.LayerOrder = []string{"e1", "e2"}
	p.Seq = 2
	return p
}

func TestProjectJSONRoundTrip(t *testing.T) {
	p := sampleProject()
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Project
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, p) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, p)
	}
	if _, ok := got.Entities["e2"].Properties.(DrawingProps); !ok {
		t.Fatalf("drawing properties decoded as %T", got.Entities["e2"].Properties)
	}
}

func TestProjectCloneIsDeep(t *testing.T) {
	p := sampleProject()
	c := p.Clone()
	c.LayerOrder[0] = "zz"
	e := c.Entities["e2"]
	e.Properties.(DrawingProps).Points[0] = geom.Pt{X: 99}
	if p.LayerOrder[0] != "e1" {
		t.Fatalf("layer order shared with clone")
	}
	if p.Entities["e2"].Properties.(DrawingProps).Points[0].X != 1 {
		t.Fatalf("drawing points shared with clone")
	}
}

func TestProjectInvariants(t *testing.T) {
	p := sampleProject()
	if err := p.CheckInvariants(); err != nil {
		t.Fatalf("valid project rejected: %v", err)
	}
	orphan := p.Clone()
	orphan.LayerOrder = []string{"e1", "missing"}
	if err := orphan.CheckInvariants(); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected orphan to violate invariant, got %v", err)
	}
	dup := p.Clone()
	dup.LayerOrder = []string{"e1", "e1"}
	if err := dup.CheckInvariants(); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected duplicate to violate invariant, got %v", err)
	}
	mismatch := p.Clone()
	e := mismatch.Entities["e1"]
	e.Properties = ShapeProps{Shape: "rect"}
	mismatch.Entities["e1"] = e
	if err := mismatch.CheckInvariants(); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected kind mismatch to violate invariant, got %v", err)
	}
}

func TestProjectOrderingAndHitTest(t *testing.T) {
	p := sampleProject()
	if top := p.TopMostFirst(); top[0].ID != "e2" || top[1].ID != "e1" {
		t.Fatalf("unexpected top-most order: %v, %v", top[0].ID, top[1].ID)
	}
	if id, ok := p.HitTest(geom.Pt{X: 5, Y: 5}); !ok || id != "e2" {
		t.Fatalf("hit test = %q %v", id, ok)
	}
	if id, ok := p.HitTest(geom.Pt{X: 450, Y: 520}); !ok || id != "e1" {
		t.Fatalf("hit test = %q %v", id, ok)
	}
	if _, ok := p.HitTest(geom.Pt{X: 1000, Y: 10}); ok {
		t.Fatalf("expected miss")
	}
}

func TestNextIDSkipsTaken(t *testing.T) {
	p := sampleProject()
	p.Seq = 0
	if id := p.NextID(); id != "e3" {
		t.Fatalf("NextID = %q, want e3", id)
	}
}

func TestCompositionDerivedFields(t *testing.T) {
	c := NewComposition("Reel", Resolution{Width: 1920, Height: 1080})
	if c.TotalDuration() != 0 || c.TrackCount() != 0 {
		t.Fatalf("empty composition must derive zeros")
	}
	c.Clips["x"] = Clip{ID: "x", Kind: ClipVideo, StartTime: 0, Duration: 5, Track: 0, Properties: DefaultClipProps()}
	c.Clips["y"] = Clip{ID: "y", Kind: ClipAudio, StartTime: 3, Duration: 4, Track: 1, Properties: DefaultClipProps()}
	if c.TotalDuration() != 7 || c.TrackCount() != 2 {
		t.Fatalf("derived = %v / %d", c.TotalDuration(), c.TrackCount())
	}
	delete(c.Clips, "x")
	if c.TotalDuration() != 7 || c.TrackCount() != 2 {
		t.Fatalf("after removing x derived = %v / %d", c.TotalDuration(), c.TrackCount())
	}
	if at := c.ClipsAt(3.5); len(at) != 1 || at[0].ID != "y" {
		t.Fatalf("ClipsAt = %+v", at)
	}
	if err := c.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestClipValidate(t *testing.T) {
	ok := Clip{ID: "c", Kind: ClipText, StartTime: 0, Duration: 1, Properties: DefaultClipProps()}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid clip rejected: %v", err)
	}
	top := ok
	top.Track = MaxTracks - 1
	if err := top.Validate(); err != nil {
		t.Fatalf("clip on last track rejected: %v", err)
	}
	bad := []Clip{
		{ID: "c", Kind: ClipText, StartTime: -1, Duration: 1, Properties: DefaultClipProps()},
		{ID: "c", Kind: ClipText, StartTime: 0, Duration: 0, Properties: DefaultClipProps()},
		{ID: "c", Kind: ClipText, StartTime: 0, Duration: 1, Track: -1, Properties: DefaultClipProps()},
		{ID: "c", Kind: ClipText, StartTime: 0, Duration: 1, Track: MaxTracks, Properties: DefaultClipProps()},
		{ID: "c", Kind: ClipText, StartTime: 0, Duration: 1, Track: math.MaxInt, Properties: DefaultClipProps()},
		{ID: "c", Kind: "hologram", StartTime: 0, Duration: 1, Properties: DefaultClipProps()},
		{ID: "c", Kind: ClipAudio, StartTime: 0, Duration: 1, Properties: ClipProps{Volume: 2, Opacity: 1, Scale: 1}},
	}
	for i, c := range bad {
		if err := c.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
