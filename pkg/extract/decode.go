package extract

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/newtron-network/newtcli/pkg/model"
	"github.com/newtron-network/newtcli/pkg/util"
)

// Decoder converts captured text into a typed value.
type Decoder func(raw string) (any, error)

// decoders maps field kinds to their decoder functions. Every kind a
// bundle may declare must have an entry here.
var decoders map[string]Decoder

func init() {
	decoders = map[string]Decoder{
		"string": func(raw string) (any, error) {
			return raw, nil
		},
		"int": func(raw string) (any, error) {
			return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		},
		"uint": func(raw string) (any, error) {
			v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				return nil, err
			}
			return model.Normalize(v), nil
		},
		"bool": func(raw string) (any, error) {
			return parseBool(raw)
		},
		"float": func(raw string) (any, error) {
			return strconv.ParseFloat(strings.TrimSpace(raw), 64)
		},
		// "1-3,5" -> [1 2 3 5]
		"range": func(raw string) (any, error) {
			vals, err := util.ExpandRange(raw)
			if err != nil {
				return nil, err
			}
			out := make([]any, len(vals))
			for i, v := range vals {
				out[i] = int64(v)
			}
			return out, nil
		},
		// whitespace or comma separated words
		"list": func(raw string) (any, error) {
			fields := strings.FieldsFunc(raw, func(r rune) bool {
				return r == ',' || r == ' ' || r == '\t'
			})
			out := make([]any, len(fields))
			for i, f := range fields {
				out[i] = f
			}
			return out, nil
		},
		"ifname": func(raw string) (any, error) {
			return util.NormalizeInterfaceName(raw), nil
		},
	}
}

// Kinds returns the registered decoder kinds in sorted order.
func Kinds() []string {
	out := make([]string, 0, len(decoders))
	for k := range decoders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// HasKind reports whether kind has a decoder. The empty kind means string.
func HasKind(kind string) bool {
	if kind == "" {
		return true
	}
	_, ok := decoders[kind]
	return ok
}

// Decode converts raw text to the value of the given kind.
func Decode(kind, raw string) (any, error) {
	if kind == "" {
		kind = "string"
	}
	d, ok := decoders[kind]
	if !ok {
		return nil, fmt.Errorf("unknown field kind %q", kind)
	}
	return d(raw)
}

// NodeProjector builds a ConfigNode from a match: each entry maps a named
// group to a field kind, and the field takes the group's name. Groups that
// did not participate in the match are left unset.
func NodeProjector(groups map[string]string) Projector[model.ConfigNode] {
	return func(m Match) (model.ConfigNode, error) {
		fields := make(map[string]any, len(groups))
		for group, kind := range groups {
			raw, ok := m.Group(group)
			if !ok {
				continue
			}
			v, err := Decode(kind, raw)
			if err != nil {
				return model.ConfigNode{}, m.fail(group, err)
			}
			fields[group] = v
		}
		return model.NewNode(fields), nil
	}
}

// Typed projects one named group through the decoder for kind.
func Typed(group, kind string) Projector[any] {
	return func(m Match) (any, error) {
		raw, ok := m.Group(group)
		if !ok {
			return nil, m.fail(group, fmt.Errorf("group did not match"))
		}
		v, err := Decode(kind, raw)
		if err != nil {
			return nil, m.fail(group, err)
		}
		return v, nil
	}
}
