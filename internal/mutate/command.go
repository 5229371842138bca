/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package mutate is the mutation engine: every document edit is a Command
// applied to an immutable snapshot, producing a new snapshot or an error.
// A rejected command never changes its input; there is no partial apply.
package mutate

import (
	"errors"
	"fmt"
	"strings"

	"gocomposer/internal/domain"
)

// Command transforms a document snapshot into a new one.
// Implementations must not modify doc; they clone before editing.
type Command[D any] interface {
	Name() string
	Apply(doc D) (D, error)
}

type invariantChecker interface{ CheckInvariants() error }

// Apply runs cmd against doc and verifies the document invariants of the result.
// On any error the original doc is returned unchanged.
func Apply[D any](doc D, cmd Command[D]) (D, error) {
	if cmd == nil {
		return doc, invalid("apply", "", errors.New("nil command"))
	}
	next, err := cmd.Apply(doc)
	if err != nil {
		return doc, err
	}
	if ic, ok := any(next).(invariantChecker); ok {
		if err := ic.CheckInvariants(); err != nil {
			return doc, invalid(cmd.Name(), "", err)
		}
	}
	return next, nil
}

// Batch applies several commands as one atomic step. Either all of them
// apply or the input is returned untouched with the first error.
type Batch[D any] struct {
	Label    string
	Commands []Command[D]
}

func (b Batch[D]) Name() string {
	if b.Label != "" {
		return b.Label
	}
	names := make([]string, 0, len(b.Commands))
	for _, c := range b.Commands {
		names = append(names, c.Name())
	}
	return "batch(" + strings.Join(names, ",") + ")"
}

func (b Batch[D]) Apply(doc D) (D, error) {
	if len(b.Commands) == 0 {
		return doc, invalid(b.Name(), "", errors.New("empty batch"))
	}
	cur := doc
	for i, c := range b.Commands {
		next, err := Apply(cur, c)
		if err != nil {
			return doc, fmt.Errorf("batch step %d: %w", i, err)
		}
		cur = next
	}
	return cur, nil
}

// Every accepted command advances the document version by one.
func bumpProject(p *domain.Project)         { p.Version++ }
func bumpComposition(c *domain.Composition) { c.Version++ }
