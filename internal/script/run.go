/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gocomposer/internal/domain"
	"gocomposer/internal/geom"
	applog "gocomposer/internal/log"
	"gocomposer/internal/mutate"
	"gocomposer/internal/textlayout"
)

// Session is the part of an editor a script drives.
type Session[D any] interface {
	Current() D
	Dispatch(cmd mutate.Command[D]) (D, error)
	Undo() (D, bool)
	Redo() (D, bool)
	Select(id string) error
	ClearSelection()
	Seek(t float64) float64
}

// Result counts what a replay did.
type Result struct {
	Applied int
	Undone  int
	Redone  int
	// Skipped counts undo/redo steps at a history boundary.
	Skipped int
}

// ErrWrongDocument is returned for steps that do not apply to the session's document type.
var ErrWrongDocument = errors.New("op does not apply to this document type")

// RunProject replays s against a project session. It stops at the first failing step.
func RunProject(ed Session[domain.Project], s Script) (Result, error) {
	return run(ed, s, projectCommand)
}

// RunComposition replays s against a composition session. It stops at the first failing step.
func RunComposition(ed Session[domain.Composition], s Script) (Result, error) {
	return run(ed, s, compositionCommand)
}

func run[D any](ed Session[D], s Script, compile func(Step, D) (mutate.Command[D], error)) (Result, error) {
	l := applog.WithOperation(applog.WithComponent("script"), "run")
	var res Result
	for i, st := range s.Steps {
		fail := func(err error) (Result, error) {
			l.Debug("step failed", "step", i+1, "op", st.Op, "err", err)
			return res, &Error{Line: st.Line, Step: i + 1, Op: st.Op, Err: err}
		}
		switch st.Op {
		case "undo":
			if _, ok := ed.Undo(); ok {
				res.Undone++
			} else {
				res.Skipped++
			}
		case "redo":
			if _, ok := ed.Redo(); ok {
				res.Redone++
			} else {
				res.Skipped++
			}
		case "select":
			if err := ed.Select(st.ID); err != nil {
				return fail(err)
			}
		case "deselect":
			ed.ClearSelection()
		case "seek":
			if st.Time == nil {
				return fail(fmt.Errorf("%w: seek needs time", mutate.ErrValidation))
			}
			ed.Seek(*st.Time)
		default:
			cmd, err := compile(st, ed.Current())
			if err != nil {
				return fail(err)
			}
			if _, err := ed.Dispatch(cmd); err != nil {
				return fail(err)
			}
			res.Applied++
		}
	}
	l.Debug("script replayed", "steps", len(s.Steps), "applied", res.Applied)
	return res, nil
}

func projectCommand(st Step, cur domain.Project) (mutate.ProjectCommand, error) {
	switch st.Op {
	case "add_entity":
		kind := domain.Kind(st.Kind)
		props, err := entityProperties(kind, st.Properties)
		if err != nil {
			return nil, err
		}
		g := geom.Box(val(st.X), val(st.Y), val(st.Width), val(st.Height))
		if kind == domain.KindText && (st.Width == nil || st.Height == nil) {
			autoSize(&g, props, st, cur.Width)
		}
		g.Rotation = val(st.Rotation)
		if st.Opacity != nil {
			g.Opacity = *st.Opacity
		}
		cmd := mutate.AddEntity{ID: st.ID, Kind: kind, Geometry: g, Properties: props}
		if st.Name != nil {
			cmd.DisplayName = *st.Name
		}
		if st.Visible != nil {
			cmd.Hidden = !*st.Visible
		}
		if st.Locked != nil {
			cmd.Locked = *st.Locked
		}
		return cmd, nil
	case "update_entity":
		patch := mutate.EntityPatch{
			X: st.X, Y: st.Y, Width: st.Width, Height: st.Height, Rotation: st.Rotation, Opacity: st.Opacity,
			Visible: st.Visible, Locked: st.Locked, Name: st.Name,
		}
		if st.Properties != nil {
			e, ok := cur.Entity(st.ID)
			if !ok {
				return nil, fmt.Errorf("entity %s: %w", st.ID, mutate.ErrNotFound)
			}
			props, err := mergeProperties(e.Properties, st.Properties)
			if err != nil {
				return nil, err
			}
			patch.Properties = props
		}
		return mutate.UpdateEntity{ID: st.ID, Patch: patch}, nil
	case "remove_entity":
		return mutate.RemoveEntity{ID: st.ID}, nil
	case "duplicate_entity":
		return mutate.DuplicateEntity{ID: st.ID, OffsetX: val(st.X), OffsetY: val(st.Y)}, nil
	case "reorder":
		if st.From == nil || st.To == nil {
			return nil, fmt.Errorf("%w: reorder needs from and to", mutate.ErrValidation)
		}
		return mutate.ReorderLayer{From: *st.From, To: *st.To}, nil
	case "bring_to_front":
		return mutate.BringToFront(cur, st.ID)
	case "send_to_back":
		return mutate.SendToBack(cur, st.ID)
	case "update_project":
		return mutate.UpdateProject{Rename: firstNonNil(st.Name, st.Title), Width: st.Width, Height: st.Height, Background: st.Background}, nil
	}
	return nil, fmt.Errorf("%s: %w", st.Op, ErrWrongDocument)
}

func compositionCommand(st Step, cur domain.Composition) (mutate.CompositionCommand, error) {
	switch st.Op {
	case "add_clip":
		cmd := mutate.AddClip{
			ID:           st.ID,
			Kind:         domain.ClipKind(st.Kind),
			StartTime:    val(st.Start),
			Duration:     val(st.Duration),
			Track:        valInt(st.Track),
			SourceOffset: val(st.Offset),
		}
		if st.Source != nil {
			cmd.SourceURL = *st.Source
		}
		if st.Name != nil {
			cmd.DisplayName = *st.Name
		}
		if st.Properties != nil {
			props, err := clipProperties(domain.DefaultClipProps(), st.Properties)
			if err != nil {
				return nil, err
			}
			cmd.Properties = &props
		}
		return cmd, nil
	case "update_clip":
		patch := mutate.ClipPatch{
			StartTime: st.Start, Duration: st.Duration, SourceOffset: st.Offset,
			Track: st.Track, SourceURL: st.Source, Name: st.Name,
		}
		if st.Properties != nil {
			cl, ok := cur.Clip(st.ID)
			if !ok {
				return nil, fmt.Errorf("clip %s: %w", st.ID, mutate.ErrNotFound)
			}
			props, err := clipProperties(cl.Properties, st.Properties)
			if err != nil {
				return nil, err
			}
			patch.Properties = &props
		}
		return mutate.UpdateClip{ID: st.ID, Patch: patch}, nil
	case "move_clip":
		cl, ok := cur.Clip(st.ID)
		if !ok {
			return nil, fmt.Errorf("clip %s: %w", st.ID, mutate.ErrNotFound)
		}
		start, track := cl.StartTime, cl.Track
		if st.Start != nil {
			start = *st.Start
		}
		if st.Track != nil {
			track = *st.Track
		}
		return mutate.MoveClip{ID: st.ID, StartTime: start, Track: track}, nil
	case "remove_clip":
		return mutate.RemoveClip{ID: st.ID}, nil
	case "split_clip":
		if st.At == nil {
			return nil, fmt.Errorf("%w: split_clip needs at", mutate.ErrValidation)
		}
		return mutate.SplitClip{ID: st.ID, At: *st.At, NewID: st.NewID}, nil
	case "update_composition":
		cmd := mutate.UpdateComposition{Title: firstNonNil(st.Title, st.Name)}
		if st.VideoWidth != nil || st.VideoHeight != nil {
			res := cur.Resolution
			if st.VideoWidth != nil {
				res.Width = *st.VideoWidth
			}
			if st.VideoHeight != nil {
				res.Height = *st.VideoHeight
			}
			cmd.Resolution = &res
		}
		return cmd, nil
	}
	return nil, fmt.Errorf("%s: %w", st.Op, ErrWrongDocument)
}

// autoSize fills the unset dimensions of a text box from its measured text,
// wrapping at the given width or else at the canvas edge.
func autoSize(g *geom.Geometry, props domain.Properties, st Step, canvasWidth float64) {
	tp, ok := props.(domain.TextProps)
	if !ok {
		def, _ := domain.DefaultProperties(domain.KindText)
		tp = def.(domain.TextProps)
	}
	maxW := canvasWidth - g.X
	if st.Width != nil {
		maxW = g.Width
	}
	w, h := textlayout.Fit(tp, maxW)
	if st.Width == nil {
		g.Width = math.Ceil(w)
	}
	if st.Height == nil {
		g.Height = math.Ceil(h)
	}
}

// entityProperties decodes script properties for a new entity. Nil means kind defaults.
func entityProperties(kind domain.Kind, raw map[string]any) (domain.Properties, error) {
	if raw == nil {
		return nil, nil
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown entity kind %q", mutate.ErrValidation, kind)
	}
	defaults, err := domain.DefaultProperties(kind)
	if err != nil {
		return nil, err
	}
	return mergeProperties(defaults, raw)
}

// mergeProperties overlays raw onto base by round-tripping through JSON, so
// keys absent from raw keep their base values. Unknown keys are rejected.
func mergeProperties(base domain.Properties, raw map[string]any) (domain.Properties, error) {
	merged, err := overlay(base, raw)
	if err != nil {
		return nil, err
	}
	props, err := domain.DecodePropertiesStrict(base.Kind(), merged)
	if err != nil {
		return nil, fmt.Errorf("%w: properties: %v", mutate.ErrValidation, err)
	}
	return props, nil
}

func clipProperties(base domain.ClipProps, raw map[string]any) (domain.ClipProps, error) {
	merged, err := overlay(base, raw)
	if err != nil {
		return base, err
	}
	var out domain.ClipProps
	if err := domain.UnmarshalStrict(merged, &out); err != nil {
		return base, fmt.Errorf("%w: clip properties: %v", mutate.ErrValidation, err)
	}
	return out, nil
}

func overlay(base any, raw map[string]any) (json.RawMessage, error) {
	b, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for k, v := range raw {
		m[k] = v
	}
	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: properties: %v", mutate.ErrValidation, err)
	}
	return out, nil
}

func val(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func valInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func firstNonNil[T any](ps ...*T) *T {
	for _, p := range ps {
		if p != nil {
			return p
		}
	}
	return nil
}
