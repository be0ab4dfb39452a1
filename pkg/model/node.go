// Package model holds the vendor-neutral configuration values the engine
// translates: immutable ConfigNodes addressed by Paths inside Snapshots.
package model

import (
	"encoding/json"
	"strconv"

	"github.com/ohler55/ojg/jp"
)

// ConfigNode is an immutable value for one configuration subtree.
// The zero value is the absent node.
type ConfigNode struct {
	fields map[string]any
}

// NewNode builds a node from fields. The input is deep-copied and
// normalized; nil values are dropped. A nil map yields an existing,
// empty node.
func NewNode(fields map[string]any) ConfigNode {
	if fields == nil {
		return ConfigNode{fields: map[string]any{}}
	}
	return ConfigNode{fields: normalizeMap(fields)}
}

// Absent returns the absent node.
func Absent() ConfigNode {
	return ConfigNode{}
}

// Exists reports whether the node is present.
func (n ConfigNode) Exists() bool {
	return n.fields != nil
}

// Len returns the number of fields set.
func (n ConfigNode) Len() int {
	return len(n.fields)
}

// Fields returns the field names in sorted order.
func (n ConfigNode) Fields() []string {
	return sortedKeys(n.fields)
}

// Get returns a copy of one top-level field.
func (n ConfigNode) Get(field string) (any, bool) {
	v, ok := n.fields[field]
	if !ok {
		return nil, false
	}
	return deepCopy(v), true
}

// GetString returns a field formatted as a string, or "" when unset.
func (n ConfigNode) GetString(field string) string {
	v, ok := n.fields[field]
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// Lookup resolves a nested value through child nodes and list indices,
// e.g. Lookup("vlans", "0", "id").
func (n ConfigNode) Lookup(segments ...string) (any, bool) {
	if !n.Exists() || len(segments) == 0 {
		return nil, false
	}
	return resolve(n.fields, segments)
}

// Child returns the nested node stored under field, or the absent node.
func (n ConfigNode) Child(field string) ConfigNode {
	if m, ok := n.fields[field].(map[string]any); ok {
		return ConfigNode{fields: deepCopy(m).(map[string]any)}
	}
	return ConfigNode{}
}

// With returns a copy of the node with field set to v. Setting nil removes
// the field. With on the absent node creates a node.
func (n ConfigNode) With(field string, v any) ConfigNode {
	out := n.AsMap()
	if out == nil {
		out = map[string]any{}
	}
	if nv, ok := normalize(v); ok {
		out[field] = nv
	} else {
		delete(out, field)
	}
	return ConfigNode{fields: out}
}

// Without returns a copy of the node without the named fields.
func (n ConfigNode) Without(fields ...string) ConfigNode {
	if !n.Exists() {
		return n
	}
	out := n.AsMap()
	for _, f := range fields {
		delete(out, f)
	}
	return ConfigNode{fields: out}
}

// Project returns a node holding only the named fields that are set.
func (n ConfigNode) Project(fields ...string) ConfigNode {
	if !n.Exists() {
		return n
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := n.fields[f]; ok {
			out[f] = deepCopy(v)
		}
	}
	return ConfigNode{fields: out}
}

// AsMap returns a deep copy of the node's fields, nil for the absent node.
func (n ConfigNode) AsMap() map[string]any {
	if n.fields == nil {
		return nil
	}
	return deepCopy(n.fields).(map[string]any)
}

// Equal compares two nodes by value.
func (n ConfigNode) Equal(o ConfigNode) bool {
	if n.Exists() != o.Exists() {
		return false
	}
	if !n.Exists() {
		return true
	}
	return canonicalEqual(n.fields, o.fields)
}

// Diff returns the sorted names of fields whose values differ between the
// two nodes, including fields set on only one side.
func (n ConfigNode) Diff(o ConfigNode) []string {
	var changed []string
	for _, k := range sortedKeys(n.fields) {
		w, ok := o.fields[k]
		if !ok || !canonicalEqual(n.fields[k], w) {
			changed = append(changed, k)
		}
	}
	for _, k := range sortedKeys(o.fields) {
		if _, ok := n.fields[k]; !ok {
			changed = append(changed, k)
		}
	}
	sortStrings(changed)
	return changed
}

// String renders the node as compact JSON with sorted keys.
func (n ConfigNode) String() string {
	b, err := n.MarshalJSON()
	if err != nil {
		return "<invalid>"
	}
	return string(b)
}

// MarshalJSON encodes the absent node as null.
func (n ConfigNode) MarshalJSON() ([]byte, error) {
	if n.fields == nil {
		return []byte("null"), nil
	}
	return json.Marshal(n.fields)
}

// UnmarshalJSON decodes a JSON object (or null for the absent node).
func (n *ConfigNode) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if m == nil {
		*n = ConfigNode{}
		return nil
	}
	*n = NewNode(jsonNumbers(m).(map[string]any))
	return nil
}

// MarshalYAML lets yaml.v3 print a node as a plain mapping.
func (n ConfigNode) MarshalYAML() (interface{}, error) {
	return n.AsMap(), nil
}

// jsonNumbers turns whole float64 values produced by encoding/json back
// into integers so a JSON round trip preserves equality.
func jsonNumbers(v any) any {
	switch t := v.(type) {
	case float64:
		if t == float64(int64(t)) {
			return int64(t)
		}
		return t
	case map[string]any:
		for k, e := range t {
			t[k] = jsonNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = jsonNumbers(e)
		}
		return t
	}
	return v
}

// Resolve walks segments through any normalized or plain value: nodes,
// string-keyed maps and slices. It is the lookup used by templates.
func Resolve(root any, segments ...string) (any, bool) {
	if len(segments) == 0 {
		if root == nil {
			return nil, false
		}
		return root, true
	}
	switch t := root.(type) {
	case ConfigNode:
		return t.Lookup(segments...)
	case *ConfigNode:
		if t == nil {
			return nil, false
		}
		return t.Lookup(segments...)
	}
	nv, ok := normalize(root)
	if !ok {
		return nil, false
	}
	return resolve(nv, segments)
}

// resolve runs a JSONPath child/index expression over normalized data.
// Numeric segments are tried as list indices first, then as map keys.
func resolve(data any, segments []string) (any, bool) {
	indexed := jp.Expr{}
	plain := jp.Expr{}
	hasIndex := false
	for _, s := range segments {
		plain = plain.C(s)
		if i, err := strconv.Atoi(s); err == nil {
			indexed = indexed.N(i)
			hasIndex = true
		} else {
			indexed = indexed.C(s)
		}
	}
	if hasIndex {
		if res := indexed.Get(data); len(res) > 0 && res[0] != nil {
			return deepCopy(res[0]), true
		}
	}
	if res := plain.Get(data); len(res) > 0 && res[0] != nil {
		return deepCopy(res[0]), true
	}
	return nil, false
}
