/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package domain defines the two document aggregates edited by the composer:
// the canvas Project (entities plus layer order) and the timeline Composition
// (clips on tracks). Values are plain data; all edits go through package mutate.
package domain

// DocType discriminates the two document aggregates.
type DocType string

const (
	DocProject     DocType = "project"
	DocComposition DocType = "composition"
)

// Document is implemented by Project and Composition.
type Document interface {
	DocID() string
	DocType() DocType
	Revision() int64
	CheckInvariants() error
}

var (
	_ Document = Project{}
	_ Document = Composition{}
)
