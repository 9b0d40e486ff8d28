// Package item defines the Item resource and the operations that manage it.
package item

import (
	"bytes"
	"encoding/json"
)

// Item is the single resource managed by the server.
type Item struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// OptionalString is a JSON string field that remembers whether its key was
// present, whether it carried null, and whether it carried a non-string value.
type OptionalString struct {
	Present bool
	Null    bool
	Value   string

	invalid bool
}

// String returns an OptionalString holding v.
func String(v string) OptionalString {
	return OptionalString{Present: true, Value: v}
}

// Null returns an OptionalString holding an explicit JSON null.
func Null() OptionalString {
	return OptionalString{Present: true, Null: true}
}

// UnmarshalJSON never fails on a type mismatch; the mismatch is recorded
// and reported by IsString so validation can produce a domain error.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	*o = OptionalString{Present: true}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		o.Value = ""
		o.invalid = true
	}
	return nil
}

// IsString reports whether the field was present and carried a JSON string.
func (o OptionalString) IsString() bool {
	return o.Present && !o.Null && !o.invalid
}

// Ptr returns a pointer to the value, or nil when the field is not a string.
func (o OptionalString) Ptr() *string {
	if !o.IsString() {
		return nil
	}
	v := o.Value
	return &v
}

// CreateRequest is the body of POST /items.
type CreateRequest struct {
	Name        OptionalString `json:"name"`
	Description OptionalString `json:"description"`
}

// UpdateRequest is the body of PUT /items/{id}. Keys that are absent leave
// the stored field untouched. ID is decoded only so it can be ignored.
type UpdateRequest struct {
	ID          OptionalString `json:"id"`
	Name        OptionalString `json:"name"`
	Description OptionalString `json:"description"`
}

// Clone returns a copy of it that shares no memory with the original.
func (it Item) Clone() Item {
	if it.Description != nil {
		d := *it.Description
		it.Description = &d
	}
	return it
}
