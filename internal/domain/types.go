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

// This file defines the canvas entity model: the entity kinds and the
// per-kind property variants that replace an open key/value bag.

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"gocomposer/internal/geom"
)

// Kind is the type of a canvas entity.
type Kind string

const (
	KindImage   Kind = "image"
	KindText    Kind = "text"
	KindShape   Kind = "shape"
	KindDrawing Kind = "drawing"
)

// Valid reports whether k is a known entity kind.
func (k Kind) Valid() bool {
	switch k {
	case KindImage, KindText, KindShape, KindDrawing:
		return true
	}
	return false
}

// Properties is the kind-specific part of an entity. Exactly one variant exists per Kind.
type Properties interface {
	Kind() Kind
	Validate() error
	clone() Properties
}

// TextProps holds typography for text entities.
type TextProps struct {
	Text       string  `json:"text"`
	FontFamily string  `json:"fontFamily,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	Color      string  `json:"color,omitempty"`
	Align      string  `json:"align,omitempty"` // left, center, right
	Bold       bool    `json:"bold,omitempty"`
	Italic     bool    `json:"italic,omitempty"`
}

func (TextProps) Kind() Kind { return KindText }

func (p TextProps) Validate() error {
	if p.FontSize < 0 || !geom.Finite(p.FontSize) {
		return errors.New("fontSize must be a finite value >= 0")
	}
	switch p.Align {
	case "", "left", "center", "right":
	default:
		return fmt.Errorf("unknown align %q", p.Align)
	}
	return nil
}

func (p TextProps) clone() Properties { return p }

// ShapeProps describes a vector shape.
type ShapeProps struct {
	Shape        string  `json:"shape"` // rect, ellipse, triangle, line, star
	Fill         string  `json:"fill,omitempty"`
	Stroke       string  `json:"stroke,omitempty"`
	StrokeWidth  float64 `json:"strokeWidth,omitempty"`
	CornerRadius float64 `json:"cornerRadius,omitempty"`
}

func (ShapeProps) Kind() Kind { return KindShape }

func (p ShapeProps) Validate() error {
	switch p.Shape {
	case "rect", "ellipse", "triangle", "line", "star":
	default:
		return fmt.Errorf("unknown shape %q", p.Shape)
	}
	if p.StrokeWidth < 0 || p.CornerRadius < 0 || !geom.Finite(p.StrokeWidth) || !geom.Finite(p.CornerRadius) {
		return errors.New("strokeWidth and cornerRadius must be finite values >= 0")
	}
	return nil
}

func (p ShapeProps) clone() Properties { return p }

// ImageProps references an image asset, optionally produced from a prompt.
type ImageProps struct {
	Src    string `json:"src"`
	Prompt string `json:"prompt,omitempty"`
	Fit    string `json:"fit,omitempty"` // contain, cover, fill
}

func (ImageProps) Kind() Kind { return KindImage }

func (p ImageProps) Validate() error {
	if strings.TrimSpace(p.Src) == "" {
		return errors.New("image src is required")
	}
	switch p.Fit {
	case "", "contain", "cover", "fill":
	default:
		return fmt.Errorf("unknown fit %q", p.Fit)
	}
	return nil
}

func (p ImageProps) clone() Properties { return p }

// DrawingProps is a freehand stroke in entity-local coordinates.
type DrawingProps struct {
	Points      []geom.Pt `json:"points"`
	Stroke      string    `json:"stroke,omitempty"`
	StrokeWidth float64   `json:"strokeWidth,omitempty"`
}

func (DrawingProps) Kind() Kind { return KindDrawing }

func (p DrawingProps) Validate() error {
	if p.StrokeWidth < 0 || !geom.Finite(p.StrokeWidth) {
		return errors.New("strokeWidth must be a finite value >= 0")
	}
	for i, pt := range p.Points {
		if !geom.Finite(pt.X) || !geom.Finite(pt.Y) {
			return fmt.Errorf("point %d is not finite", i)
		}
	}
	return nil
}

func (p DrawingProps) clone() Properties {
	p.Points = append([]geom.Pt(nil), p.Points...)
	return p
}

// DefaultProperties returns the zero-configuration variant for kind.
func DefaultProperties(kind Kind) (Properties, error) {
	switch kind {
	case KindText:
		return TextProps{Text: "Add your text", FontFamily: "Inter", FontSize: 32, Color: "#000000", Align: "center"}, nil
	case KindShape:
		return ShapeProps{Shape: "rect", Fill: "#3b82f6"}, nil
	case KindImage:
		return ImageProps{Src: "about:blank", Fit: "contain"}, nil
	case KindDrawing:
		return DrawingProps{Stroke: "#000000", StrokeWidth: 2}, nil
	}
	return nil, fmt.Errorf("unknown entity kind %q", kind)
}

// Entity is a single canvas object.
type Entity struct {
	ID         string
	Kind       Kind
	Geometry   geom.Geometry
	Visible    bool
	Locked     bool
	Name       string
	Properties Properties
}

// Clone returns a deep copy of e.
func (e Entity) Clone() Entity {
	if e.Properties != nil {
		e.Properties = e.Properties.clone()
	}
	return e
}

// Validate checks geometry, kind and that properties match the kind.
func (e Entity) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("unknown entity kind %q", e.Kind)
	}
	if err := e.Geometry.Validate(); err != nil {
		return err
	}
	if e.Properties == nil {
		return fmt.Errorf("entity %s has no properties", e.ID)
	}
	if e.Properties.Kind() != e.Kind {
		return fmt.Errorf("properties of kind %q do not match entity kind %q", e.Properties.Kind(), e.Kind)
	}
	return e.Properties.Validate()
}

type entityJSON struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Name       string          `json:"name,omitempty"`
	Geometry   geom.Geometry   `json:"geometry"`
	Visible    bool            `json:"visible"`
	Locked     bool            `json:"locked"`
	Properties json.RawMessage `json:"properties"`
}

func (e Entity) MarshalJSON() ([]byte, error) {
	props, err := json.Marshal(e.Properties)
	if err != nil {
		return nil, err
	}
	return json.Marshal(entityJSON{ID: e.ID, Kind: e.Kind, Name: e.Name, Geometry: e.Geometry, Visible: e.Visible, Locked: e.Locked, Properties: props})
}

func (e *Entity) UnmarshalJSON(b []byte) error {
	var raw entityJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	props, err := DecodeProperties(raw.Kind, raw.Properties)
	if err != nil {
		return fmt.Errorf("entity %s: %w", raw.ID, err)
	}
	*e = Entity{ID: raw.ID, Kind: raw.Kind, Name: raw.Name, Geometry: raw.Geometry, Visible: raw.Visible, Locked: raw.Locked, Properties: props}
	return nil
}

// DecodeProperties decodes the JSON properties of an entity of the given kind.
// Empty input yields the kind defaults.
func DecodeProperties(kind Kind, raw json.RawMessage) (Properties, error) {
	return decodeProperties(kind, raw, false)
}

// DecodePropertiesStrict is DecodeProperties but rejects keys the kind does not define.
func DecodePropertiesStrict(kind Kind, raw json.RawMessage) (Properties, error) {
	return decodeProperties(kind, raw, true)
}

func decodeProperties(kind Kind, raw json.RawMessage, strict bool) (Properties, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return DefaultProperties(kind)
	}
	switch kind {
	case KindText:
		var p TextProps
		err := unmarshal(raw, &p, strict)
		return p, err
	case KindShape:
		var p ShapeProps
		err := unmarshal(raw, &p, strict)
		return p, err
	case KindImage:
		var p ImageProps
		err := unmarshal(raw, &p, strict)
		return p, err
	case KindDrawing:
		var p DrawingProps
		err := unmarshal(raw, &p, strict)
		return p, err
	}
	return nil, fmt.Errorf("unknown entity kind %q", kind)
}

// UnmarshalStrict decodes data into v and fails on fields v does not declare.
func UnmarshalStrict(data []byte, v any) error { return unmarshal(data, v, true) }

func unmarshal(data []byte, v any, strict bool) error {
	if !strict {
		return json.Unmarshal(data, v)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ClipKind is the type of a timeline clip.
type ClipKind string

const (
	ClipVideo  ClipKind = "video"
	ClipAudio  ClipKind = "audio"
	ClipImage  ClipKind = "image"
	ClipText   ClipKind = "text"
	ClipEffect ClipKind = "effect"
)

func (k ClipKind) Valid() bool {
	switch k {
	case ClipVideo, ClipAudio, ClipImage, ClipText, ClipEffect:
		return true
	}
	return false
}

// ClipProps are the playback properties of a clip.
type ClipProps struct {
	Volume   float64 `json:"volume"`
	Opacity  float64 `json:"opacity"`
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Text     string  `json:"text,omitempty"`
	Effect   string  `json:"effect,omitempty"`
}

// DefaultClipProps is full volume, fully opaque, unscaled, centered.
func DefaultClipProps() ClipProps {
	return ClipProps{Volume: 1, Opacity: 1, Scale: 1}
}

func (p ClipProps) Validate() error {
	for _, v := range []float64{p.Volume, p.Opacity, p.Scale, p.Rotation, p.X, p.Y} {
		if !geom.Finite(v) {
			return errors.New("clip properties must be finite")
		}
	}
	if p.Volume < 0 || p.Volume > 1 {
		return errors.New("volume must be within [0,1]")
	}
	if p.Opacity < 0 || p.Opacity > 1 {
		return errors.New("opacity must be within [0,1]")
	}
	if p.Scale < 0 {
		return errors.New("scale must be >= 0")
	}
	return nil
}

// MaxTracks bounds the track index so the derived track count stays representable.
const MaxTracks = 1024

// Clip is a single timed item on a track.
type Clip struct {
	ID        string   `json:"id"`
	Kind      ClipKind `json:"kind"`
	Name      string   `json:"name,omitempty"`
	SourceURL string   `json:"sourceUrl,omitempty"`
	// SourceOffset is the in-point within the source media, in seconds.
	SourceOffset float64   `json:"sourceOffset,omitempty"`
	StartTime    float64   `json:"startTime"`
	Duration     float64   `json:"duration"`
	Track        int       `json:"track"`
	Properties   ClipProps `json:"properties"`
}

// End is StartTime + Duration.
func (c Clip) End() float64 { return c.StartTime + c.Duration }

// Validate checks time placement and properties.
func (c Clip) Validate() error {
	if !c.Kind.Valid() {
		return fmt.Errorf("unknown clip kind %q", c.Kind)
	}
	if !geom.Finite(c.StartTime) || c.StartTime < 0 {
		return errors.New("startTime must be a finite value >= 0")
	}
	if !geom.Finite(c.Duration) || c.Duration <= 0 {
		return errors.New("duration must be a finite value > 0")
	}
	if c.Track < 0 || c.Track >= MaxTracks {
		return fmt.Errorf("track must be within [0,%d)", MaxTracks)
	}
	if !geom.Finite(c.SourceOffset) || c.SourceOffset < 0 {
		return errors.New("sourceOffset must be a finite value >= 0")
	}
	if math.IsInf(c.End(), 0) {
		return errors.New("clip end overflows")
	}
	return c.Properties.Validate()
}
