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
	"errors"
	"reflect"
	"strings"
	"testing"

	"gocomposer/internal/domain"
	"gocomposer/internal/geom"
	"gocomposer/internal/mutate"
)

func sampleProject(t *testing.T) domain.Project {
	t.Helper()
	p := domain.NewProject("Poster", 1080, 1350)
	cmds := []mutate.ProjectCommand{
		mutate.AddEntity{Kind: domain.KindText, Geometry: geom.Box(40, 40, 300, 60), Properties: domain.TextProps{Text: "Hello", FontSize: 32}},
		mutate.AddEntity{Kind: domain.KindImage, Geometry: geom.Box(0, 0, 1080, 720), Properties: domain.ImageProps{Src: "https://cdn.example/a.png", Fit: "cover"}},
		mutate.AddEntity{Kind: domain.KindDrawing, Geometry: geom.Box(10, 10, 50, 50), Properties: domain.DrawingProps{Points: []geom.Pt{{X: 1, Y: 2}, {X: 3, Y: 4}}, Stroke: "#000000", StrokeWidth: 2}},
		mutate.ReorderLayer{From: 1, To: 0},
	}
	for _, c := range cmds {
		var err error
		if p, err = mutate.Apply(p, c); err != nil {
			t.Fatalf("build sample project: %v", err)
		}
	}
	return p
}

func sampleComposition(t *testing.T) domain.Composition {
	t.Helper()
	c := domain.NewComposition("Reel", domain.Resolution{Width: 1920, Height: 1080})
	for _, cmd := range []mutate.CompositionCommand{
		mutate.AddClip{Kind: domain.ClipVideo, Duration: 5, SourceURL: "https://cdn.example/v.mp4"},
		mutate.AddClip{Kind: domain.ClipAudio, StartTime: 3, Duration: 4, Track: 1},
	} {
		var err error
		if c, err = mutate.Apply(c, cmd); err != nil {
			t.Fatalf("build sample composition: %v", err)
		}
	}
	return c
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, doc := range []domain.Document{sampleProject(t), sampleComposition(t)} {
		data, err := Encode(doc)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode %s: %v", doc.DocType(), err)
		}
		if !reflect.DeepEqual(doc, got) {
			t.Fatalf("%s round trip mismatch:\nwant %+v\ngot  %+v", doc.DocType(), doc, got)
		}
	}
}

func TestEncodeOmitsDerivedFields(t *testing.T) {
	data, err := Encode(sampleComposition(t))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for _, k := range []string{"totalDuration", "trackCount"} {
		if strings.Contains(string(data), k) {
			t.Fatalf("derived field %s must not be stored", k)
		}
	}
}

func TestDecodeRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"not json":        `{`,
		"unknown type":    `{"schema":1,"type":"sheet","document":{}}`,
		"future schema":   `{"schema":2,"type":"project","document":{}}`,
		"missing fields":  `{"schema":1,"type":"project","document":{"id":"p"}}`,
		"zero width":      `{"schema":1,"type":"project","document":{"id":"p","name":"","width":0,"height":1,"entities":{},"layerOrder":[],"version":0}}`,
		"duplicate layer": `{"schema":1,"type":"project","document":{"id":"p","name":"","width":1,"height":1,"entities":{},"layerOrder":["a","a"],"version":0}}`,
		"orphan layer":    `{"schema":1,"type":"project","document":{"id":"p","name":"","width":1,"height":1,"entities":{},"layerOrder":["a"],"version":0}}`,
		"bad opacity": `{"schema":1,"type":"project","document":{"id":"p","name":"","width":1,"height":1,"version":0,"layerOrder":["e1"],
			"entities":{"e1":{"id":"e1","kind":"shape","visible":true,"locked":false,"properties":{"shape":"rect"},
			"geometry":{"x":0,"y":0,"width":1,"height":1,"rotation":0,"opacity":3}}}}}`,
		"negative clip": `{"schema":1,"type":"composition","document":{"id":"c","title":"","resolution":{"width":1,"height":1},"version":0,
			"clips":{"c1":{"id":"c1","kind":"video","startTime":-1,"duration":1,"track":0,"properties":{}}}}}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode([]byte(in)); !errors.Is(err, ErrInvalidDocument) {
				t.Fatalf("expected ErrInvalidDocument, got %v", err)
			}
		})
	}
}
