package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is a server-assigned identifier. The API emits it either as a JSON
// string or as a number; both decode to the same textual form.
type ID string

// UnmarshalJSON accepts strings, numbers and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("apiclient: id %s: %w", string(b), err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the identifier as text.
func (id ID) String() string { return string(id) }

// DecodeCollection normalises list payloads. A bare array and an envelope
// object with a "data" array are both accepted; null, empty bodies and any
// other shape yield an empty, non-nil slice.
func DecodeCollection[T any](raw []byte) ([]T, error) {
	items := []T{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return items, nil
	}
	switch trimmed[0] {
	case '[':
	case '{':
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("apiclient: decode envelope: %w", err)
		}
		trimmed = bytes.TrimSpace(env.Data)
		if len(trimmed) == 0 || trimmed[0] != '[' {
			return items, nil
		}
	default:
		return items, nil
	}
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("apiclient: decode collection: %w", err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// DecodeOne decodes a single entity, unwrapping a {"data": {...}} envelope.
func DecodeOne[T any](raw []byte) (T, error) {
	var out T
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return out, nil
	}
	if trimmed[0] == '{' {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return out, fmt.Errorf("apiclient: decode entity: %w", err)
		}
		if data, ok := env["data"]; ok {
			data = bytes.TrimSpace(data)
			if len(data) > 0 && data[0] == '{' {
				trimmed = data
			}
		}
	}
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return out, fmt.Errorf("apiclient: decode entity: %w", err)
	}
	return out, nil
}
