/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"gocomposer/internal/domain"
)

// SchemaVersion is the envelope format written by Encode.
const SchemaVersion = 1

var (
	// ErrNotFound is returned when a store has no document with the requested id.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidDocument is returned when stored bytes fail schema or invariant checks.
	ErrInvalidDocument = errors.New("invalid document")
)

//go:embed schema/document.schema.json
var documentSchema []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(documentSchema))
	})
	return schema, schemaErr
}

// Envelope is the on-disk wrapper around a document.
type Envelope struct {
	Schema   int             `json:"schema"`
	Type     domain.DocType  `json:"type"`
	Document json.RawMessage `json:"document"`
}

// Encode wraps doc in an envelope and marshals it in human-readable form.
func Encode(doc domain.Document) ([]byte, error) {
	if doc == nil {
		return nil, errors.New("nil document")
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal %s %s: %w", doc.DocType(), doc.DocID(), err)
	}
	data, err := json.MarshalIndent(Envelope{Schema: SchemaVersion, Type: doc.DocType(), Document: body}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return append(data, '\n'), nil
}

// Validate checks data against the embedded envelope schema.
func Validate(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
	}
	return nil
}

// Decode validates data and returns the contained Project or Composition.
func Decode(data []byte) (domain.Document, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	var doc domain.Document
	switch env.Type {
	case domain.DocProject:
		var p domain.Project
		if err := json.Unmarshal(env.Document, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		doc = p
	case domain.DocComposition:
		var c domain.Composition
		if err := json.Unmarshal(env.Document, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		if c.Clips == nil {
			c.Clips = map[string]domain.Clip{}
		}
		doc = c
	default:
		return nil, fmt.Errorf("%w: unknown document type %q", ErrInvalidDocument, env.Type)
	}
	if err := doc.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return doc, nil
}
