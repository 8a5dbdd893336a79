package event

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Data types an event may declare for its value.
const (
	TypeBoolean = "boolean"
	TypeNumber  = "number"
	TypeString  = "string"
	TypeMixed   = "mixed"
)

// DefaultLocation is assumed when an event carries no location label.
const DefaultLocation = "unknown"

// Record is a structured home-automation event as submitted by an exporter.
//
// Value and Timestamp are kept as raw JSON so that "key absent" can be told
// apart from "key present with a falsy value": a missing key decodes to a
// nil RawMessage, while explicit null/false/0 keep their bytes. Legitimate
// false and 0 readings must not be rejected as missing.
type Record struct {
	DeviceName  string          `json:"device_name"`
	EventType   string          `json:"event_type"`
	Value       json.RawMessage `json:"value"`
	DataType    string          `json:"data_type"`
	Description string          `json:"human_readable_description"`
	Timestamp   json.RawMessage `json:"timestamp,omitempty"`
	Location    string          `json:"location,omitempty"`

	// presentKeys tracks which keys the JSON payload carried, so that an
	// explicit empty string is not confused with an absent key. It is nil
	// for records built in Go, where a zero value means "not provided".
	presentKeys map[string]bool
}

// UnmarshalJSON decodes the record and remembers which keys the payload
// actually carried. An explicit null counts as absent.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	*r = Record(p)
	r.presentKeys = make(map[string]bool, len(keys))
	for k, v := range keys {
		r.presentKeys[k] = string(v) != "null"
	}
	return nil
}

// MissingFields returns the names of required fields that are absent,
// in a fixed order. An empty slice means the record is valid. For
// JSON-decoded records absence means the key was not in the payload;
// a present-but-empty string is a valid value.
func (r Record) MissingFields() []string {
	has := func(key, value string) bool {
		if r.presentKeys != nil {
			return r.presentKeys[key]
		}
		return value != ""
	}
	var missing []string
	if !has("device_name", r.DeviceName) {
		missing = append(missing, "device_name")
	}
	if !has("event_type", r.EventType) {
		missing = append(missing, "event_type")
	}
	if !has("data_type", r.DataType) {
		missing = append(missing, "data_type")
	}
	if !has("human_readable_description", r.Description) {
		missing = append(missing, "human_readable_description")
	}
	if len(r.Value) == 0 {
		missing = append(missing, "value")
	}
	return missing
}

// EffectiveLocation returns the location label, applying the default when
// the event carried none.
func (r Record) EffectiveLocation() string {
	if r.Location == "" {
		return DefaultLocation
	}
	return r.Location
}

// DecodedValue returns the raw value as a Go scalar (bool, float64, string,
// or nil). Used when duplicating the original fields into stored metadata.
func (r Record) DecodedValue() any {
	if len(r.Value) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(r.Value, &v); err != nil {
		return string(r.Value)
	}
	return v
}

// ValidationError reports which required fields an event is missing.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Missing, ", "))
}

// Validate returns a *ValidationError when required fields are absent.
func (r Record) Validate() error {
	if missing := r.MissingFields(); len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}
