// Package catalog holds the static registry of known webhook event types and
// validates inbound payloads against their schemas. Unknown event types are
// not an error: the pipeline accepts them unvalidated.
package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind is the JSON shape a field must have.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
)

// Field is one declared payload field of a catalog event.
type Field struct {
	Name        string `json:"name"`
	Kind        Kind   `json:"kind"`
	Required    bool   `json:"required"`
	MaxLen      int    `json:"max_len,omitempty"`
	Description string `json:"description,omitempty"`
}

// Event is one catalog entry: a known event type with its schema and a
// documentation example.
type Event struct {
	Type        string          `json:"type"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Fields      []Field         `json:"fields"`
	Example     json.RawMessage `json:"example"`
}

// FieldError is one field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result reports the outcome of validating a payload.
// Known=false means the type is not in the catalog and the payload passed
// through unchecked. Known=true with Valid=false means schema rejection.
type Result struct {
	Known  bool
	Valid  bool
	Errors []FieldError
}

// Registry is a static set of catalog events keyed by type name.
type Registry struct {
	byType map[string]*Event
}

// NewRegistry builds a registry from entries. Duplicate type names panic:
// the catalog is assembled at startup from literals, so a duplicate is a
// programming error.
func NewRegistry(events []Event) *Registry {
	byType := make(map[string]*Event, len(events))
	for i := range events {
		e := &events[i]
		if _, dup := byType[e.Type]; dup {
			panic(fmt.Sprintf("catalog: duplicate event type %q", e.Type))
		}
		byType[e.Type] = e
	}
	return &Registry{byType: byType}
}

// Lookup returns the catalog entry for an event type.
func (r *Registry) Lookup(eventType string) (*Event, bool) {
	e, ok := r.byType[eventType]
	return e, ok
}

// All returns every catalog entry, sorted by type name.
func (r *Registry) All() []*Event {
	out := make([]*Event, 0, len(r.byType))
	for _, e := range r.byType {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// ByCategory returns the catalog entries in one category, sorted by type name.
func (r *Registry) ByCategory(category string) []*Event {
	var out []*Event
	for _, e := range r.byType {
		if e.Category == category {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Validate checks payload against the schema registered for eventType.
// For known types it returns the normalized (compacted) payload and a Result
// with field-level errors on rejection. For unknown types the payload is
// returned as-is with Known=false.
func (r *Registry) Validate(eventType string, payload json.RawMessage) (json.RawMessage, Result) {
	event, ok := r.byType[eventType]
	if !ok {
		return payload, Result{Known: false}
	}

	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err != nil || obj == nil {
		return payload, Result{Known: true, Errors: []FieldError{
			{Field: "", Message: "payload must be a JSON object"},
		}}
	}

	var errs []FieldError
	for _, f := range event.Fields {
		val, present := obj[f.Name]
		if !present || val == nil {
			if f.Required {
				errs = append(errs, FieldError{Field: f.Name, Message: "required field is missing"})
			}
			continue
		}
		if msg := checkKind(f, val); msg != "" {
			errs = append(errs, FieldError{Field: f.Name, Message: msg})
		}
	}
	if len(errs) > 0 {
		return payload, Result{Known: true, Errors: errs}
	}

	// Re-marshal the parsed object so stored payloads have one canonical form.
	normalized, err := json.Marshal(obj)
	if err != nil {
		return payload, Result{Known: true, Valid: true}
	}
	return normalized, Result{Known: true, Valid: true}
}

func checkKind(f Field, val any) string {
	switch f.Kind {
	case KindString:
		s, ok := val.(string)
		if !ok {
			return "must be a string"
		}
		if f.MaxLen > 0 && len(s) > f.MaxLen {
			return fmt.Sprintf("must be at most %d characters", f.MaxLen)
		}
	case KindNumber:
		if _, ok := val.(float64); !ok {
			return "must be a number"
		}
	case KindBoolean:
		if _, ok := val.(bool); !ok {
			return "must be a boolean"
		}
	case KindObject:
		if _, ok := val.(map[string]any); !ok {
			return "must be an object"
		}
	case KindArray:
		if _, ok := val.([]any); !ok {
			return "must be an array"
		}
	}
	return ""
}
