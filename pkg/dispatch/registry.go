// Package dispatch routes reads and writes of one schema subtree to the
// handler variants registered for it.
package dispatch

import (
	"context"
	"fmt"
	"sort"

	"github.com/newtron-network/newtcli/pkg/model"
	"github.com/newtron-network/newtcli/pkg/reconcile"
	"github.com/newtron-network/newtcli/pkg/util"
)

// Composition declares how the variants of one schema combine.
type Composition int

const (
	// Exclusive subtrees are a discriminated union: the first applicable
	// variant handles the operation.
	Exclusive Composition = iota
	// UnionMerge subtrees are assembled from every applicable variant;
	// no two variants may produce the same field.
	UnionMerge
)

func (c Composition) String() string {
	switch c {
	case Exclusive:
		return "exclusive"
	case UnionMerge:
		return "merge"
	}
	return "unknown"
}

// ParseComposition accepts "exclusive" and "merge".
func ParseComposition(s string) (Composition, error) {
	switch s {
	case "", "exclusive":
		return Exclusive, nil
	case "merge", "union-merge":
		return UnionMerge, nil
	}
	return 0, fmt.Errorf("unknown dispatch mode %q", s)
}

// Prober runs a display command for a variant's read.
type Prober interface {
	Probe(ctx context.Context, command string) (string, error)
}

// ReadRequest is what a variant's read sees.
type ReadRequest struct {
	Path     model.Path
	Snapshot model.Snapshot
}

// ReadFunc reads one subtree from the device. An absent node means the
// device has nothing there.
type ReadFunc func(ctx context.Context, p Prober, req ReadRequest) (model.ConfigNode, error)

// RenderFunc produces device commands for one side of a write.
type RenderFunc func(op Op) []string

// Variant is one shape of a subtree: a predicate plus read and write
// logic. A variant without Create is read-only.
type Variant struct {
	Name    string
	Applies Predicate
	Policy  reconcile.Policy
	// Owns lists the fields this variant reads and writes. Confirmation
	// compares only these; empty means all fields of the written node.
	Owns          []string
	Read          ReadFunc
	Create        RenderFunc
	Update        RenderFunc
	Delete        RenderFunc
	Preconditions []Precondition
	// Check inspects the output of an applied transaction; a non-nil
	// error fails the write.
	Check func(session, output string) error
}

func (v *Variant) writable() bool {
	return v.Create != nil
}

func (v *Variant) applies(p model.Path, before, after model.Snapshot, mode Mode) bool {
	if v.Applies == nil {
		return true
	}
	return v.Applies(p, before, after, mode)
}

type entry struct {
	mode     Composition
	variants []*Variant
}

// RegistryBuilder collects registrations; Build validates them.
type RegistryBuilder struct {
	entries map[string]*entry
	v       util.ValidationBuilder
}

// NewRegistryBuilder creates an empty builder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{entries: map[string]*entry{}}
}

// Register adds the variants for a schema path (keys stripped, e.g.
// interfaces/interface/config) in evaluation order.
func (b *RegistryBuilder) Register(schema string, mode Composition, variants ...Variant) *RegistryBuilder {
	if p, err := model.ParsePath(schema); err != nil {
		b.v.AddErrorf("schema %q: %v", schema, err)
		return b
	} else if p.Schema() != schema {
		b.v.AddErrorf("schema %q must not contain keys", schema)
		return b
	}
	if _, dup := b.entries[schema]; dup {
		b.v.AddErrorf("schema %q registered twice", schema)
		return b
	}
	if len(variants) == 0 {
		b.v.AddErrorf("schema %q: no variants", schema)
		return b
	}

	e := &entry{mode: mode}
	names := map[string]bool{}
	for i := range variants {
		v := variants[i]
		switch {
		case v.Name == "":
			b.v.AddErrorf("schema %q: variant %d has no name", schema, i)
			continue
		case names[v.Name]:
			b.v.AddErrorf("schema %q: duplicate variant %q", schema, v.Name)
			continue
		case v.Read == nil && v.Create == nil:
			b.v.AddErrorf("schema %q: variant %q neither reads nor writes", schema, v.Name)
			continue
		case v.Create != nil && v.Delete == nil:
			b.v.AddErrorf("schema %q: variant %q creates but cannot delete", schema, v.Name)
			continue
		case v.Policy.InPlace && v.Update == nil:
			b.v.AddErrorf("schema %q: variant %q allows in-place update without an update renderer", schema, v.Name)
			continue
		}
		names[v.Name] = true
		e.variants = append(e.variants, &v)
	}
	b.entries[schema] = e
	return b
}

// Build returns the immutable registry, or every registration problem as
// one validation error.
func (b *RegistryBuilder) Build() (*Registry, error) {
	if err := b.v.Build(); err != nil {
		return nil, err
	}
	r := &Registry{entries: make(map[string]entry, len(b.entries))}
	for k, e := range b.entries {
		r.entries[k] = entry{mode: e.mode, variants: append([]*Variant(nil), e.variants...)}
	}
	return r, nil
}

// Registry maps schema paths to their variants. It is read-only and safe
// for concurrent use.
type Registry struct {
	entries map[string]entry
}

// Schemas returns the registered schema paths in sorted order.
func (r *Registry) Schemas() []string {
	out := make([]string, 0, len(r.entries))
	for k := range r.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Mode returns how the schema's variants combine.
func (r *Registry) Mode(schema string) (Composition, bool) {
	e, ok := r.entries[schema]
	return e.mode, ok
}

// VariantNames returns the schema's variant names in evaluation order.
func (r *Registry) VariantNames(schema string) []string {
	e := r.entries[schema]
	out := make([]string, len(e.variants))
	for i, v := range e.variants {
		out[i] = v.Name
	}
	return out
}

func (r *Registry) lookup(p model.Path) (entry, bool) {
	e, ok := r.entries[p.Schema()]
	return e, ok
}
