package model

import (
	"fmt"
	"strings"
)

// PathElem is one step of a Path: a node type and an optional key.
type PathElem struct {
	Type string
	Key  string
}

func (e PathElem) String() string {
	if e.Key == "" {
		return e.Type
	}
	return e.Type + "[" + e.Key + "]"
}

// Path addresses one subtree, e.g. interfaces/interface[Loopback45]/config.
// Paths are values; methods never modify the receiver.
type Path []PathElem

// ParsePath parses the string form of a path. Keys are bracketed and may
// contain '/' (interface[Ethernet1/1]).
func ParsePath(s string) (Path, error) {
	s = strings.Trim(s, "/")
	if s == "" {
		return nil, fmt.Errorf("empty path")
	}
	var p Path
	var elem strings.Builder
	var key strings.Builder
	inKey, hasKey := false, false
	flush := func(pos int) error {
		if elem.Len() == 0 {
			return fmt.Errorf("path %q: empty element at offset %d", s, pos)
		}
		p = append(p, PathElem{Type: elem.String(), Key: key.String()})
		elem.Reset()
		key.Reset()
		hasKey = false
		return nil
	}
	for i, r := range s {
		switch {
		case inKey && r == ']':
			inKey, hasKey = false, true
		case inKey:
			key.WriteRune(r)
		case r == '[':
			if hasKey {
				return nil, fmt.Errorf("path %q: second key at offset %d", s, i)
			}
			inKey = true
		case r == '/':
			if err := flush(i); err != nil {
				return nil, err
			}
		case hasKey:
			return nil, fmt.Errorf("path %q: text after key at offset %d", s, i)
		default:
			elem.WriteRune(r)
		}
	}
	if inKey {
		return nil, fmt.Errorf("path %q: unterminated key", s)
	}
	if err := flush(len(s)); err != nil {
		return nil, err
	}
	return p, nil
}

// MustParsePath is ParsePath for literals; it panics on error.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, e := range p {
		parts[i] = e.String()
	}
	return strings.Join(parts, "/")
}

// MarshalText encodes the path in its string form.
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Path) UnmarshalText(b []byte) error {
	parsed, err := ParsePath(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Schema returns the path with keys stripped; it is the registry key.
func (p Path) Schema() string {
	parts := make([]string, len(p))
	for i, e := range p {
		parts[i] = e.Type
	}
	return strings.Join(parts, "/")
}

// NodeType returns the type of the last element.
func (p Path) NodeType() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1].Type
}

// Key returns the key of the innermost element of the given type.
func (p Path) Key(typ string) (string, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i].Type == typ {
			return p[i].Key, p[i].Key != ""
		}
	}
	return "", false
}

// LastKey returns the innermost non-empty key, or "".
func (p Path) LastKey() string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i].Key != "" {
			return p[i].Key
		}
	}
	return ""
}

// Parent drops the last element. The parent of a single-element path is nil.
func (p Path) Parent() Path {
	if len(p) <= 1 {
		return nil
	}
	return p.clone(len(p) - 1)
}

// Child appends one element.
func (p Path) Child(typ, key string) Path {
	out := p.clone(len(p) + 1)
	return append(out[:len(p)], PathElem{Type: typ, Key: key})
}

// Sibling replaces the last element.
func (p Path) Sibling(typ, key string) Path {
	if len(p) == 0 {
		return Path{{Type: typ, Key: key}}
	}
	return p.Parent().Child(typ, key)
}

// Equal compares two paths element by element.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

func (p Path) clone(n int) Path {
	out := make(Path, n)
	copy(out, p)
	return out
}
