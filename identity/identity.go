// Package identity reconciles the two field names under which remote endpoints
// return a user reference ("id" and "userId") into one canonical value.
//
// Every overlay component keys its state by [ID]. Records coming from the
// remote directory are passed through [Normalize] (raw JSON objects) or
// [Ref.Normalize] (typed records) before any lookup.
package identity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// FieldID is the primary-key field name.
	FieldID = "id"
	// FieldAlias is the alias field name used by some directory endpoints.
	FieldAlias = "userId"
)

// ID is the canonical identity of one user.
type ID string

// String returns the identity as a plain string.
func (id ID) String() string { return string(id) }

// IsZero reports whether the identity is empty.
func (id ID) IsZero() bool { return strings.TrimSpace(string(id)) == "" }

// UnmarshalJSON accepts a JSON string or number. null decodes to the zero ID.
func (id *ID) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		*id = ""
		return nil
	}
	v, ok := FromAny(raw)
	if !ok {
		if s, isString := raw.(string); isString && strings.TrimSpace(s) == "" {
			*id = ""
			return nil
		}
		return fmt.Errorf("identity: cannot decode %s as an identity", data)
	}
	*id = v
	return nil
}

// Ref carries both identity field names as they appear on the wire.
type Ref struct {
	ID     ID `json:"id,omitempty"`
	UserID ID `json:"userId,omitempty"`
}

// Canonical returns the identity value, preferring the primary key.
func (r Ref) Canonical() ID {
	if !r.ID.IsZero() {
		return r.ID
	}
	return r.UserID
}

// Normalize returns a Ref whose two fields are equal. A Ref with neither field
// set is returned unchanged.
func (r Ref) Normalize() Ref {
	id := r.Canonical()
	if id.IsZero() {
		return r
	}
	return Ref{ID: id, UserID: id}
}

// UnmarshalJSON accepts string and numeric identity values.
func (r *Ref) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out := Ref{}
	if v, ok := FromAny(raw[FieldID]); ok {
		out.ID = v
	}
	if v, ok := FromAny(raw[FieldAlias]); ok {
		out.UserID = v
	}
	*r = out
	return nil
}

// Normalize returns a copy of fields in which both identity fields are present
// and hold the same value. When both are set the primary key wins. A record
// carrying neither field is returned as is.
func Normalize(fields map[string]any) map[string]any {
	primary, hasPrimary := present(fields, FieldID)
	alias, hasAlias := present(fields, FieldAlias)
	if !hasPrimary && !hasAlias {
		return fields
	}

	value := primary
	if !hasPrimary {
		value = alias
	}

	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out[FieldID] = value
	out[FieldAlias] = value
	return out
}

// Of returns the canonical identity of a raw record.
func Of(fields map[string]any) (ID, bool) {
	normalized := Normalize(fields)
	return FromAny(normalized[FieldID])
}

// FromAny converts a decoded identity value into an ID. Strings, integers,
// integral floats and json.Number are accepted.
func FromAny(v any) (ID, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case ID:
		return t, !t.IsZero()
	case string:
		id := ID(strings.TrimSpace(t))
		return id, !id.IsZero()
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return FromAny(n)
		}
		if strings.ContainsAny(t.String(), ".eE") {
			f, err := t.Float64()
			if err != nil {
				return "", false
			}
			return FromAny(f)
		}
		// Integers beyond int64 keep their digits.
		return FromAny(t.String())
	case int:
		return ID(strconv.Itoa(t)), true
	case int32:
		return ID(strconv.FormatInt(int64(t), 10)), true
	case int64:
		return ID(strconv.FormatInt(t, 10)), true
	case uint:
		return ID(strconv.FormatUint(uint64(t), 10)), true
	case uint32:
		return ID(strconv.FormatUint(uint64(t), 10)), true
	case uint64:
		return ID(strconv.FormatUint(t, 10)), true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || t != math.Trunc(t) {
			return "", false
		}
		return ID(strconv.FormatFloat(t, 'f', -1, 64)), true
	default:
		return "", false
	}
}

func present(fields map[string]any, key string) (any, bool) {
	if fields == nil {
		return nil, false
	}
	v, ok := fields[key]
	if !ok || v == nil {
		return nil, false
	}
	if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return v, true
}
