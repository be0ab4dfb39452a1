package model

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

// Snapshot is a read-only view of a configuration tree.
type Snapshot interface {
	Get(p Path) (ConfigNode, bool)
}

// Tree is an immutable Snapshot keyed by path string.
type Tree struct {
	nodes map[string]ConfigNode
}

// NewTree builds a tree from nodes keyed by path string. Keys are
// re-canonicalized through ParsePath; absent nodes are skipped.
func NewTree(nodes map[string]ConfigNode) (*Tree, error) {
	t := &Tree{nodes: make(map[string]ConfigNode, len(nodes))}
	for k, n := range nodes {
		p, err := ParsePath(k)
		if err != nil {
			return nil, err
		}
		if n.Exists() {
			t.nodes[p.String()] = n
		}
	}
	return t, nil
}

// EmptyTree returns a tree with no nodes.
func EmptyTree() *Tree {
	return &Tree{nodes: map[string]ConfigNode{}}
}

// LoadTree decodes one or more YAML documents of the form
// {"<path>": {field: value}} into a tree. Later documents override earlier
// ones per path.
func LoadTree(r io.Reader) (*Tree, error) {
	dec := yaml.NewDecoder(r)
	raw := map[string]ConfigNode{}
	for {
		var doc map[string]map[string]any
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decoding tree: %w", err)
		}
		for k, fields := range doc {
			raw[k] = NewNode(fields)
		}
	}
	return NewTree(raw)
}

// Get returns the node at p.
func (t *Tree) Get(p Path) (ConfigNode, bool) {
	if t == nil {
		return ConfigNode{}, false
	}
	n, ok := t.nodes[p.String()]
	return n, ok
}

// With returns a copy of the tree with the node at p replaced. An absent
// node removes the entry.
func (t *Tree) With(p Path, n ConfigNode) *Tree {
	out := &Tree{nodes: make(map[string]ConfigNode, t.Len()+1)}
	if t != nil {
		for k, v := range t.nodes {
			out.nodes[k] = v
		}
	}
	if n.Exists() {
		out.nodes[p.String()] = n
	} else {
		delete(out.nodes, p.String())
	}
	return out
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.nodes)
}

// Paths returns the sorted path strings in the tree.
func (t *Tree) Paths() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.nodes))
	for k := range t.nodes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Lookup reads p from a snapshot that may be nil, returning the absent node
// when the snapshot has nothing there.
func Lookup(s Snapshot, p Path) ConfigNode {
	if s == nil {
		return ConfigNode{}
	}
	if t, ok := s.(*Tree); ok && t == nil {
		return ConfigNode{}
	}
	n, ok := s.Get(p)
	if !ok {
		return ConfigNode{}
	}
	return n
}
