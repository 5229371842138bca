/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package mutate

import (
	"errors"
	"fmt"
)

// Error categories. A rejected command returns an *Error whose Kind is one of these,
// so callers match with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrOutOfRange = errors.New("index out of range")
)

// Error describes why a command was rejected.
type Error struct {
	Op   string // command name
	Kind error  // ErrValidation, ErrNotFound or ErrOutOfRange
	ID   string // affected entity or clip id, if any
	Err  error  // underlying cause, if any
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.ID != "" {
		msg += " (" + e.ID + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func invalid(op, id string, err error) error {
	return &Error{Op: op, Kind: ErrValidation, ID: id, Err: err}
}

func invalidf(op, id, format string, args ...any) error {
	return invalid(op, id, fmt.Errorf(format, args...))
}

func notFound(op, id string) error {
	return &Error{Op: op, Kind: ErrNotFound, ID: id}
}

func outOfRange(op string, index, length int) error {
	return &Error{Op: op, Kind: ErrOutOfRange, Err: fmt.Errorf("index %d not in [0,%d)", index, length)}
}

// IsValidation, IsNotFound and IsOutOfRange classify command errors.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
func IsOutOfRange(err error) bool { return errors.Is(err, ErrOutOfRange) }
