// Package records defines the record model shared by every stage of the
// reconciliation pipeline: a flat mapping from field names to string,
// number or null values, tagged with its position in the submitted batch.
package records

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/agentstation/recon/pkg/errors"
)

// IDField is the field consulted for a record's identity.
const IDField = "id"

// Record is one submitted entity description.
type Record struct {
	Fields map[string]Value
	// Origin is the record's index in the submitted batch.
	Origin int
}

// New creates a record at the given batch position.
func New(origin int, fields map[string]Value) Record {
	if fields == nil {
		fields = make(map[string]Value)
	}
	return Record{Fields: fields, Origin: origin}
}

// Get returns the value of a field and whether it is present.
func (r Record) Get(field string) (Value, bool) {
	v, ok := r.Fields[field]
	return v, ok
}

// ID returns the text of the id field when present and non-empty,
// otherwise the record's batch position.
func (r Record) ID() string {
	if v, ok := r.Fields[IDField]; ok && !v.IsEmpty() {
		return v.Text()
	}
	return strconv.Itoa(r.Origin)
}

// Keys returns the record's field names in sorted order.
func (r Record) Keys() []string {
	return slices.Sorted(maps.Keys(r.Fields))
}

// Clone returns a copy that shares no mutable state with r.
func (r Record) Clone() Record {
	return Record{Fields: maps.Clone(r.Fields), Origin: r.Origin}
}

// CanonicalKey returns a string that is equal for two records exactly when
// they hold the same fields with the same kinds and payloads. Null fields
// are treated as absent.
func (r Record) CanonicalKey() string {
	var b strings.Builder
	for _, k := range r.Keys() {
		v := r.Fields[k]
		if v.IsNull() {
			continue
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte('=')
		switch v.Kind() {
		case KindNumber:
			b.WriteByte('n')
		default:
			b.WriteByte('s')
		}
		b.WriteString(strconv.Quote(v.Text()))
		b.WriteByte(';')
	}
	return b.String()
}

// Map returns the record's fields in native Go form.
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		out[k] = v.Interface()
	}
	return out
}

// MarshalJSON encodes the record as a flat JSON object.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.Fields)
}

// UnmarshalJSON decodes a flat JSON object. Origin is left untouched.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]Value
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		fields = make(map[string]Value)
	}
	r.Fields = fields
	return nil
}

// MarshalYAML implements the goccy/go-yaml InterfaceMarshaler.
func (r Record) MarshalYAML() (any, error) {
	out := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		out[k] = v.yamlScalar()
	}
	return out, nil
}

// FromMaps converts decoded objects into records, numbering them by position.
func FromMaps(in []map[string]any) ([]Record, error) {
	out := make([]Record, len(in))
	for i, m := range in {
		fields := make(map[string]Value, len(m))
		for k, raw := range m {
			v, err := FromAny(raw)
			if err != nil {
				msg := err.Error()
				if ve, ok := err.(*errors.ValidationError); ok {
					msg = ve.Message
				}
				return nil, errors.NewValidationError(k, raw, fmt.Sprintf("record %d: %s", i, msg))
			}
			fields[k] = v
		}
		out[i] = New(i, fields)
	}
	return out, nil
}

// Renumber sets each record's Origin to its index in recs.
func Renumber(recs []Record) []Record {
	for i := range recs {
		recs[i].Origin = i
	}
	return recs
}

// CloneAll deep-copies a batch.
func CloneAll(recs []Record) []Record {
	out := make([]Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out
}

// ToMaps converts records back to native objects.
func ToMaps(recs []Record) []map[string]any {
	out := make([]map[string]any, len(recs))
	for i, r := range recs {
		out[i] = r.Map()
	}
	return out
}
