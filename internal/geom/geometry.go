/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package geom holds the 2D value types used by canvas entities.
// All values are float64 canvas units; rotation is in degrees.
package geom

import (
	"errors"
	"fmt"
	"math"
)

// Pt is a 2D point.
type Pt struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle defined by its min corner and size.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func R(x, y, w, h float64) Rect { return Rect{X: x, Y: y, W: w, H: h} }

func (r Rect) Min() Pt    { return Pt{r.X, r.Y} }
func (r Rect) Max() Pt    { return Pt{r.X + r.W, r.Y + r.H} }
func (r Rect) Center() Pt { return Pt{r.X + r.W/2, r.Y + r.H/2} }

func (r Rect) Contains(p Pt) bool {
	return p.X >= r.X && p.Y >= r.Y && p.X <= r.X+r.W && p.Y <= r.Y+r.H
}

// Union returns the minimal rect containing both.
func (r Rect) Union(o Rect) Rect {
	minX := math.Min(r.X, o.X)
	minY := math.Min(r.Y, o.Y)
	maxX := math.Max(r.X+r.W, o.X+o.W)
	maxY := math.Max(r.Y+r.H, o.Y+o.H)
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Affine2D represents a 2D affine transform as matrix:
// | a c e |
// | b d f |
// | 0 0 1 |
type Affine2D struct{ A, B, C, D, E, F float64 }

var Identity = Affine2D{A: 1, D: 1}

func (m Affine2D) Mul(n Affine2D) Affine2D {
	return Affine2D{
		A: m.A*n.A + m.C*n.B,
		B: m.B*n.A + m.D*n.B,
		C: m.A*n.C + m.C*n.D,
		D: m.B*n.C + m.D*n.D,
		E: m.A*n.E + m.C*n.F + m.E,
		F: m.B*n.E + m.D*n.F + m.F,
	}
}

func (m Affine2D) Apply(p Pt) Pt {
	return Pt{
		X: m.A*p.X + m.C*p.Y + m.E,
		Y: m.B*p.X + m.D*p.Y + m.F,
	}
}

func Translate(tx, ty float64) Affine2D { return Affine2D{A: 1, D: 1, E: tx, F: ty} }
func Scale(sx, sy float64) Affine2D     { return Affine2D{A: sx, D: sy} }
func RotateDeg(deg float64) Affine2D {
	rad := deg * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	return Affine2D{A: c, B: s, C: -s, D: c}
}

// Geometry is the transform state of one canvas entity.
// Width and Height are never negative; Opacity is within [0,1].
type Geometry struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
	Opacity  float64 `json:"opacity"`
}

// Box returns a fully opaque, unrotated geometry.
func Box(x, y, w, h float64) Geometry {
	return Geometry{X: x, Y: y, Width: w, Height: h, Opacity: 1}
}

var (
	ErrNotFinite    = errors.New("value is not finite")
	ErrNegativeSize = errors.New("width and height must be >= 0")
	ErrOpacityRange = errors.New("opacity must be within [0,1]")
)

// Validate reports the first geometry constraint that g violates.
func (g Geometry) Validate() error {
	fields := [...]struct {
		name string
		v    float64
	}{{"x", g.X}, {"y", g.Y}, {"width", g.Width}, {"height", g.Height}, {"rotation", g.Rotation}, {"opacity", g.Opacity}}
	for _, f := range fields {
		if !Finite(f.v) {
			return fmt.Errorf("%s: %w", f.name, ErrNotFinite)
		}
	}
	if g.Width < 0 || g.Height < 0 {
		return ErrNegativeSize
	}
	if g.Opacity < 0 || g.Opacity > 1 {
		return ErrOpacityRange
	}
	return nil
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Normalize folds Rotation into [0,360).
func (g Geometry) Normalize() Geometry {
	g.Rotation = NormalizeDeg(g.Rotation)
	return g
}

// NormalizeDeg maps any finite angle in degrees into [0,360).
func NormalizeDeg(deg float64) float64 {
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	if r >= 360 {
		return 0
	}
	return r
}

// Frame is the unrotated rectangle of g.
func (g Geometry) Frame() Rect { return Rect{X: g.X, Y: g.Y, W: g.Width, H: g.Height} }

// Transform maps local frame coordinates to canvas coordinates,
// rotating about the frame center.
func (g Geometry) Transform() Affine2D {
	c := g.Frame().Center()
	return Translate(c.X, c.Y).Mul(RotateDeg(g.Rotation)).Mul(Translate(-c.X, -c.Y))
}

// Bounds returns the axis-aligned bounds of the rotated frame.
func (g Geometry) Bounds() Rect {
	f := g.Frame()
	if g.Rotation == 0 {
		return f
	}
	m := g.Transform()
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range []Pt{f.Min(), {f.X + f.W, f.Y}, {f.X, f.Y + f.H}, f.Max()} {
		p := m.Apply(c)
		minX, minY = math.Min(minX, p.X), math.Min(minY, p.Y)
		maxX, maxY = math.Max(maxX, p.X), math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Fit scales (w,h) down to fit inside (maxW,maxH) keeping aspect ratio.
// Sizes already inside the box are returned unchanged.
func Fit(w, h, maxW, maxH float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	s := math.Min(maxW/w, maxH/h)
	if s >= 1 {
		return w, h
	}
	return w * s, h * s
}

// Round rounds v to n decimal places deterministically.
func Round(v float64, places int) float64 {
	if places < 0 {
		return v
	}
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
