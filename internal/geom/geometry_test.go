/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package geom

import (
	"errors"
	"math"
	"testing"
)

func TestNormalizeDeg(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0}, {90, 90}, {360, 0}, {370, 10}, {-90, 270}, {-720, 0}, {725.5, 5.5},
	}
	for _, c := range cases {
		if got := NormalizeDeg(c.in); math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("NormalizeDeg(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestGeometryValidate(t *testing.T) {
	if err := Box(0, 0, 10, 10).Validate(); err != nil {
		t.Fatalf("valid box rejected: %v", err)
	}
	if err := Box(0, 0, 0, 0).Validate(); err != nil {
		t.Fatalf("zero-size box rejected: %v", err)
	}
	if err := Box(0, 0, -1, 10).Validate(); !errors.Is(err, ErrNegativeSize) {
		t.Fatalf("expected ErrNegativeSize, got %v", err)
	}
	g := Box(0, 0, 1, 1)
	g.Opacity = 1.5
	if err := g.Validate(); !errors.Is(err, ErrOpacityRange) {
		t.Fatalf("expected ErrOpacityRange, got %v", err)
	}
	g = Box(math.NaN(), 0, 1, 1)
	if err := g.Validate(); !errors.Is(err, ErrNotFinite) {
		t.Fatalf("expected ErrNotFinite, got %v", err)
	}
}

func TestBoundsRotated(t *testing.T) {
	g := Box(0, 0, 10, 20)
	if b := g.Bounds(); b != g.Frame() {
		t.Fatalf("unrotated bounds should equal frame, got %+v", b)
	}
	g.Rotation = 90
	b := g.Bounds()
	if Round(b.W, 6) != 20 || Round(b.H, 6) != 10 {
		t.Fatalf("90deg bounds should swap extents, got %+v", b)
	}
	c := b.Center()
	if Round(c.X, 6) != 5 || Round(c.Y, 6) != 10 {
		t.Fatalf("rotation must keep center, got %+v", c)
	}
}

func TestFit(t *testing.T) {
	w, h := Fit(2000, 1000, 1000, 1000)
	if w != 1000 || h != 500 {
		t.Fatalf("Fit = %v x %v", w, h)
	}
	w, h = Fit(100, 50, 1000, 1000)
	if w != 100 || h != 50 {
		t.Fatalf("Fit should not upscale, got %v x %v", w, h)
	}
}

func TestRectUnionContains(t *testing.T) {
	u := R(0, 0, 10, 10).Union(R(5, 5, 10, 10))
	if u != R(0, 0, 15, 15) {
		t.Fatalf("union = %+v", u)
	}
	if !u.Contains(Pt{15, 15}) || u.Contains(Pt{16, 0}) {
		t.Fatalf("contains mismatch")
	}
}
