/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"math"
	"reflect"
	"testing"

	"gocomposer/internal/domain"
)

func TestLayoutWrapsAtSpaces(t *testing.T) {
	// The basic face advances 7 units per glyph at size 13.
	box := Layout("Hello world from Go", 13, 50)
	if want := []string{"Hello", "world", "from Go"}; !reflect.DeepEqual(box.Lines, want) {
		t.Fatalf("lines = %q, want %q", box.Lines, want)
	}
	if box.Width != 49 || box.Height != 39 {
		t.Fatalf("box = %vx%v, want 49x39", box.Width, box.Height)
	}
}

func TestLayoutNewlinesAndNoWrap(t *testing.T) {
	box := Layout("one two\nthree", 13, 0)
	if want := []string{"one two", "three"}; !reflect.DeepEqual(box.Lines, want) {
		t.Fatalf("lines = %q, want %q", box.Lines, want)
	}
	if box.Width != 49 {
		t.Fatalf("width = %v", box.Width)
	}
}

func TestLayoutLongWordKeepsOwnLine(t *testing.T) {
	box := Layout("a supercalifragilistic b", 13, 30)
	if len(box.Lines) != 3 || box.Lines[1] != "supercalifragilistic" {
		t.Fatalf("lines = %q", box.Lines)
	}
}

func TestFitScalesWithFontSize(t *testing.T) {
	w1, h1 := Fit(domain.TextProps{Text: "ABC", FontSize: 13}, 0)
	w2, h2 := Fit(domain.TextProps{Text: "ABC", FontSize: 26}, 0)
	if w2 != 2*w1 || h2 != 2*h1 {
		t.Fatalf("size 26 = %vx%v, size 13 = %vx%v", w2, h2, w1, h1)
	}
	w0, h0 := Fit(domain.TextProps{Text: "ABC"}, 0)
	if math.Abs(w0-w1*DefaultFontSize/13) > 1e-9 || math.Abs(h0-DefaultFontSize) > 1e-9 {
		t.Fatalf("default size box = %vx%v", w0, h0)
	}
}

func TestEmptyTextIsOneLine(t *testing.T) {
	box := Layout("", 13, 100)
	if len(box.Lines) != 1 || box.Width != 0 || box.Height != 13 {
		t.Fatalf("box = %+v", box)
	}
}
