/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package script reads YAML edit scripts and replays them against an editor
// session, one history entry per edit step.
//
// A script is a list of steps keyed by op:
//
//	steps:
//	  - op: add_entity
//	    kind: text
//	    x: 40
//	    y: 40
//	    width: 300
//	    height: 60
//	    properties: {text: Hello}
//	  - op: undo
package script

import (
	"fmt"
)

// Script is a parsed edit script.
type Script struct {
	Steps []Step `yaml:"steps"`
}

// Step is one edit. Which fields apply depends on Op; unset pointers mean "keep".
type Step struct {
	Op string `yaml:"op"`
	ID string `yaml:"id,omitempty"`

	// Entity fields.
	Kind       string         `yaml:"kind,omitempty"`
	X          *float64       `yaml:"x,omitempty"`
	Y          *float64       `yaml:"y,omitempty"`
	Width      *float64       `yaml:"width,omitempty"`
	Height     *float64       `yaml:"height,omitempty"`
	Rotation   *float64       `yaml:"rotation,omitempty"`
	Opacity    *float64       `yaml:"opacity,omitempty"`
	Visible    *bool          `yaml:"visible,omitempty"`
	Locked     *bool          `yaml:"locked,omitempty"`
	Name       *string        `yaml:"name,omitempty"`
	Properties map[string]any `yaml:"properties,omitempty"`

	// Layer order.
	From *int `yaml:"from,omitempty"`
	To   *int `yaml:"to,omitempty"`

	// Clip fields.
	Start    *float64 `yaml:"start,omitempty"`
	Duration *float64 `yaml:"duration,omitempty"`
	Offset   *float64 `yaml:"offset,omitempty"`
	Track    *int     `yaml:"track,omitempty"`
	Source   *string  `yaml:"source,omitempty"`
	At       *float64 `yaml:"at,omitempty"`
	NewID    string   `yaml:"new_id,omitempty"`

	// Document settings.
	Title       *string `yaml:"title,omitempty"`
	Background  *string `yaml:"background,omitempty"`
	VideoWidth  *int    `yaml:"video_width,omitempty"`
	VideoHeight *int    `yaml:"video_height,omitempty"`

	// Seek target in seconds.
	Time *float64 `yaml:"time,omitempty"`

	// Line is the 1-based source line of the step.
	Line int `yaml:"-"`
}

// Error represents a parse or replay error with position context.
type Error struct {
	Line int
	Step int // 1-based; 0 when the error is not tied to a step
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Step > 0 && e.Op != "":
		return fmt.Sprintf("line %d: step %d (%s): %v", e.Line, e.Step, e.Op, e.Err)
	case e.Step > 0:
		return fmt.Sprintf("line %d: step %d: %v", e.Line, e.Step, e.Err)
	default:
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }
