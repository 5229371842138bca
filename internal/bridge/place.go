/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package bridge

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"gocomposer/internal/domain"
	"gocomposer/internal/geom"
	"gocomposer/internal/mutate"
)

const (
	fallbackImageSize = 512
	// fallbackStillDuration is used for image clips and results without a duration.
	fallbackStillDuration = 5.0
)

// ImageSize decodes only the header of an encoded image and returns its pixel size.
// PNG, JPEG, GIF, BMP, TIFF and WebP are recognized.
func ImageSize(data []byte) (int, int, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("%s image has empty size %dx%d", format, cfg.Width, cfg.Height)
	}
	return cfg.Width, cfg.Height, nil
}

func resultSize(req GenerateRequest, res GenerateResult) (float64, float64) {
	if res.Width > 0 && res.Height > 0 {
		return float64(res.Width), float64(res.Height)
	}
	if len(res.Data) > 0 {
		if w, h, err := ImageSize(res.Data); err == nil {
			return float64(w), float64(h)
		}
	}
	if req.Width > 0 && req.Height > 0 {
		return float64(req.Width), float64(req.Height)
	}
	return fallbackImageSize, fallbackImageSize
}

// PlaceImage adds the generated image as the topmost entity, scaled down to fit
// the canvas and centered on it.
func PlaceImage(cur domain.Project, req GenerateRequest, res GenerateResult) (mutate.ProjectCommand, error) {
	if strings.TrimSpace(res.URL) == "" {
		return nil, fmt.Errorf("place image: %w: result has no url", mutate.ErrValidation)
	}
	w, h := resultSize(req, res)
	w, h = geom.Fit(w, h, cur.Width, cur.Height)
	return mutate.AddEntity{
		Kind:        domain.KindImage,
		Geometry:    geom.Box((cur.Width-w)/2, (cur.Height-h)/2, w, h),
		Properties:  domain.ImageProps{Src: res.URL, Prompt: req.Prompt, Fit: "contain"},
		DisplayName: displayName(req.Prompt),
	}, nil
}

// PlaceClip appends the generated media at the current end of the timeline on the requested track.
func PlaceClip(cur domain.Composition, req GenerateRequest, res GenerateResult) (mutate.CompositionCommand, error) {
	if strings.TrimSpace(res.URL) == "" {
		return nil, fmt.Errorf("place clip: %w: result has no url", mutate.ErrValidation)
	}
	kind := domain.ClipKind(req.Media)
	if req.Media == "" {
		kind = domain.ClipImage
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("place clip: %w: unsupported media %q", mutate.ErrValidation, req.Media)
	}
	d := res.Duration
	if !(d > 0) {
		d = fallbackStillDuration
	}
	return mutate.AddClip{
		Kind:        kind,
		StartTime:   cur.TotalDuration(),
		Duration:    d,
		Track:       req.Track,
		SourceURL:   res.URL,
		DisplayName: displayName(req.Prompt),
	}, nil
}

func displayName(prompt string) string {
	p := strings.Join(strings.Fields(prompt), " ")
	if r := []rune(p); len(r) > 40 {
		return string(r[:39]) + "…"
	}
	return p
}
