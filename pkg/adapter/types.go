// Package adapter loads vendor bundles: declarative descriptions of how
// each configuration subtree is read from and written to one vendor's CLI.
// A bundle compiles into a dispatch.Registry.
package adapter

// Bundle is one vendor's adapter file. YAML and HCL share this shape.
type Bundle struct {
	Vendor string `yaml:"vendor" hcl:"vendor,attr"`
	// ErrorPatterns mark lines with which the device rejects a command.
	ErrorPatterns []string   `yaml:"error_patterns,omitempty" hcl:"error_patterns,optional"`
	Paths         []PathSpec `yaml:"paths" hcl:"path,block"`

	source string
}

// Source returns the file the bundle was loaded from, if any.
func (b *Bundle) Source() string { return b.source }

// PathSpec registers variants for one schema path.
type PathSpec struct {
	Schema string `yaml:"schema" hcl:"schema,label"`
	// Dispatch is "exclusive" (default) or "merge".
	Dispatch string        `yaml:"dispatch,omitempty" hcl:"dispatch,optional"`
	Variants []VariantSpec `yaml:"variants" hcl:"variant,block"`
}

// VariantSpec is one shape of the subtree.
type VariantSpec struct {
	Name  string     `yaml:"name" hcl:"name,label"`
	Match *MatchSpec `yaml:"match,omitempty" hcl:"match,block"`
	// KeyField is filled from the path key on read.
	KeyField string    `yaml:"key_field,omitempty" hcl:"key_field,optional"`
	Read     *ReadSpec `yaml:"read,omitempty" hcl:"read,block"`
	// Context holds extra template variables, each itself a template.
	Context map[string]string `yaml:"context,omitempty" hcl:"context,optional"`

	Create string `yaml:"create,omitempty" hcl:"create,optional"`
	Update string `yaml:"update,omitempty" hcl:"update,optional"`
	Delete string `yaml:"delete,omitempty" hcl:"delete,optional"`

	Discriminators []string          `yaml:"discriminators,omitempty" hcl:"discriminators,optional"`
	Mutable        []string          `yaml:"mutable,omitempty" hcl:"mutable,optional"`
	Owns           []string          `yaml:"owns,omitempty" hcl:"owns,optional"`
	Preconditions  *PreconditionSpec `yaml:"preconditions,omitempty" hcl:"preconditions,block"`
}

// MatchSpec is the applicability predicate of a variant. All set parts
// must hold.
type MatchSpec struct {
	// Key is a regexp over the innermost path key; named groups become
	// template variables.
	Key    string `yaml:"key,omitempty" hcl:"key,optional"`
	Field  string `yaml:"field,omitempty" hcl:"field,optional"`
	Equals string `yaml:"equals,omitempty" hcl:"equals,optional"`
	// Sibling reads Field from the sibling node of this type.
	Sibling string `yaml:"sibling,omitempty" hcl:"sibling,optional"`
}

// ReadSpec probes the device and extracts fields from the output.
type ReadSpec struct {
	Command string `yaml:"command" hcl:"command,attr"`
	// Section limits extraction to the block under the first line
	// matching this pattern.
	Section string      `yaml:"section,omitempty" hcl:"section,optional"`
	Fields  []FieldSpec `yaml:"fields" hcl:"field,block"`
}

// FieldSpec extracts one field.
type FieldSpec struct {
	Name    string `yaml:"name" hcl:"name,label"`
	Pattern string `yaml:"pattern" hcl:"pattern,attr"`
	// Group defaults to "value".
	Group string `yaml:"group,omitempty" hcl:"group,optional"`
	// Type is an extract decoder kind; empty means string.
	Type    string  `yaml:"type,omitempty" hcl:"type,optional"`
	Default *string `yaml:"default,omitempty" hcl:"default,optional"`
	// Matched makes the field a flag: Matched when the pattern matches
	// any line, its negation otherwise.
	Matched *bool `yaml:"matched,omitempty" hcl:"matched,optional"`
	// Index selects the Nth matching line.
	Index int `yaml:"index,omitempty" hcl:"index,optional"`
	// Multi collects every matching line into a list.
	Multi bool `yaml:"multi,omitempty" hcl:"multi,optional"`
}

// PreconditionSpec declares write guards.
type PreconditionSpec struct {
	RequireFields []string `yaml:"require_fields,omitempty" hcl:"require_fields,optional"`
	// ForbidDelete, when set, is the reason deletion is refused.
	ForbidDelete string `yaml:"forbid_delete,omitempty" hcl:"forbid_delete,optional"`
}
