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
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrSyntax marks scripts that cannot be parsed.
var ErrSyntax = errors.New("invalid script")

var knownOps = map[string]bool{
	"add_entity": true, "update_entity": true, "remove_entity": true, "duplicate_entity": true,
	"reorder": true, "bring_to_front": true, "send_to_back": true, "update_project": true,
	"add_clip": true, "update_clip": true, "move_clip": true, "remove_clip": true,
	"split_clip": true, "update_composition": true,
	"undo": true, "redo": true, "select": true, "deselect": true, "seek": true,
}

// Parse reads a YAML edit script. Unknown keys and ops are rejected with their line.
func Parse(data []byte) (Script, error) {
	var s Script
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return Script{}, &Error{Line: 1, Err: fmt.Errorf("%w: empty script", ErrSyntax)}
		}
		return Script{}, &Error{Line: yamlLine(err), Err: fmt.Errorf("%w: %v", ErrSyntax, err)}
	}

	// Second pass for step positions.
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Script{}, &Error{Line: 1, Err: fmt.Errorf("%w: %v", ErrSyntax, err)}
	}
	lines := stepLines(&root)
	for i := range s.Steps {
		st := &s.Steps[i]
		if i < len(lines) {
			st.Line = lines[i]
		}
		st.Op = strings.ToLower(strings.TrimSpace(st.Op))
		if st.Op == "" {
			return Script{}, &Error{Line: st.Line, Step: i + 1, Err: fmt.Errorf("%w: missing op", ErrSyntax)}
		}
		if !knownOps[st.Op] {
			return Script{}, &Error{Line: st.Line, Step: i + 1, Op: st.Op, Err: fmt.Errorf("%w: unknown op", ErrSyntax)}
		}
	}
	return s, nil
}

// stepLines returns the line of each element of the top-level steps sequence.
func stepLines(root *yaml.Node) []int {
	doc := root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value != "steps" {
			continue
		}
		seq := doc.Content[i+1]
		out := make([]int, 0, len(seq.Content))
		for _, n := range seq.Content {
			out = append(out, n.Line)
		}
		return out
	}
	return nil
}

// yamlLine extracts "line N" from a yaml.v3 error message, defaulting to 1.
func yamlLine(err error) int {
	var te *yaml.TypeError
	msg := err.Error()
	if errors.As(err, &te) && len(te.Errors) > 0 {
		msg = te.Errors[0]
	}
	if i := strings.Index(msg, "line "); i >= 0 {
		n := 0
		for _, r := range msg[i+5:] {
			if r < '0' || r > '9' {
				break
			}
			n = n*10 + int(r-'0')
		}
		if n > 0 {
			return n
		}
	}
	return 1
}
