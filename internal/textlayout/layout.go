/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package textlayout sizes text boxes for text entities.
//
// Measurement uses the fixed 7x13 basic face scaled linearly to the requested
// font size, so results are deterministic across platforms and do not depend
// on installed fonts. The numbers are an estimate for placing a box, not a
// rendering of the final glyphs.
package textlayout

import (
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"gocomposer/internal/domain"
)

// DefaultFontSize is used when the requested size is not positive.
const DefaultFontSize = 32

// Box is text broken into lines with its measured size in canvas units.
type Box struct {
	Lines  []string
	Width  float64
	Height float64
}

type measurer struct {
	d     *font.Drawer
	scale float64
	lineH float64
}

func newMeasurer(fontSize float64) measurer {
	if fontSize <= 0 {
		fontSize = DefaultFontSize
	}
	face := basicfont.Face7x13
	m := face.Metrics()
	base := float64(m.Height.Round())
	scale := fontSize / base
	return measurer{d: &font.Drawer{Face: face}, scale: scale, lineH: base * scale}
}

func (m measurer) width(s string) float64 {
	return float64(m.d.MeasureString(s)>>6) * m.scale
}

// Layout breaks text at spaces so no line exceeds maxWidth, and at newlines.
// A maxWidth <= 0 disables wrapping. Single words wider than maxWidth keep
// their own line.
func Layout(text string, fontSize, maxWidth float64) Box {
	m := newMeasurer(fontSize)
	var box Box
	push := func(line string) {
		box.Lines = append(box.Lines, line)
		if w := m.width(line); w > box.Width {
			box.Width = w
		}
	}
	for _, para := range strings.Split(text, "\n") {
		line := ""
		for _, word := range strings.Fields(para) {
			if line == "" {
				line = word
				continue
			}
			next := line + " " + word
			if maxWidth > 0 && m.width(next) > maxWidth {
				push(line)
				line = word
				continue
			}
			line = next
		}
		push(line)
	}
	box.Height = float64(len(box.Lines)) * m.lineH
	return box
}

// Fit returns the box size for text properties, wrapped to maxWidth.
func Fit(p domain.TextProps, maxWidth float64) (w, h float64) {
	b := Layout(p.Text, p.FontSize, maxWidth)
	return b.Width, b.Height
}
