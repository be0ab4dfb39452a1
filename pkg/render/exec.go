package render

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/newtron-network/newtcli/pkg/model"
)

// scope is one level of the lexical variable chain. Loops push a scope
// holding the item variable.
type scope struct {
	vars   map[string]any
	parent *scope
}

func (s *scope) lookup(name string) (any, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// resolve looks up ref[0] in scope and walks the remaining segments
// through nodes, maps and sequences.
func (s *scope) resolve(ref []string) (any, bool) {
	root, ok := s.lookup(ref[0])
	if !ok {
		return nil, false
	}
	if len(ref) == 1 {
		return root, root != nil
	}
	return model.Resolve(root, ref[1:]...)
}

func exec(b *strings.Builder, nodes []node, s *scope, tmpl string) {
	for _, n := range nodes {
		switch n := n.(type) {
		case *textNode:
			b.WriteString(n.text)
		case *varNode:
			v, _ := s.resolve(n.ref)
			b.WriteString(format(v))
		case *ifNode:
			if n.cond.eval(s, tmpl) {
				exec(b, n.then, s, tmpl)
			} else {
				exec(b, n.els, s, tmpl)
			}
		case *loopNode:
			v, _ := s.resolve(n.coll)
			items := sequence(v)
			if len(items) == 0 {
				exec(b, n.empty, s, tmpl)
				continue
			}
			for _, item := range items {
				inner := &scope{vars: map[string]any{n.item: item}, parent: s}
				exec(b, n.body, inner, tmpl)
			}
		}
	}
}

// sequence returns the elements of a slice or array value. Anything else,
// strings included, is an empty sequence.
func sequence(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case []model.ConfigNode:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out
	case string:
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// truthy reports whether v is non-null, non-false and non-empty. Zero is
// truthy.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case model.ConfigNode:
		return t.Exists() && t.Len() > 0
	case *model.ConfigNode:
		return t != nil && t.Exists() && t.Len() > 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// format renders a substituted value: strings verbatim, numbers in decimal
// or shortest float form, lists space-joined, nodes and maps as empty.
func format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case model.ConfigNode, *model.ConfigNode:
		return ""
	}

	nv := model.Normalize(v)
	switch t := nv.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := format(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}

// exprValue converts a resolved value into what expr programs see:
// nodes become maps, numbers become int64 or float64.
func exprValue(v any) any {
	if n, ok := v.(model.ConfigNode); ok && !n.Exists() {
		return nil
	}
	return model.Normalize(v)
}
