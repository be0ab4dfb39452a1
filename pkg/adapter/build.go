package adapter

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/newtron-network/newtcli/pkg/dispatch"
	"github.com/newtron-network/newtcli/pkg/extract"
	"github.com/newtron-network/newtcli/pkg/model"
	"github.com/newtron-network/newtcli/pkg/reconcile"
	"github.com/newtron-network/newtcli/pkg/render"
	"github.com/newtron-network/newtcli/pkg/util"
)

// Build compiles bundles into a registry. Every template and pattern is
// compiled here, so a bad bundle fails at startup rather than mid-write.
// A schema may be declared by only one bundle.
func Build(bundles ...*Bundle) (*dispatch.Registry, error) {
	b := dispatch.NewRegistryBuilder()
	v := &util.ValidationBuilder{}
	for _, bundle := range bundles {
		rejects, err := compilePatterns(bundle.ErrorPatterns)
		if err != nil {
			v.AddErrorf("%s: error_patterns: %v", bundle.label(), err)
		}
		for _, ps := range bundle.Paths {
			mode, err := dispatch.ParseComposition(ps.Dispatch)
			if err != nil {
				v.AddErrorf("%s: %s: %v", bundle.label(), ps.Schema, err)
				continue
			}
			variants := make([]dispatch.Variant, 0, len(ps.Variants))
			for _, vs := range ps.Variants {
				cv, err := compileVariant(vs, rejects)
				if err != nil {
					v.AddErrorf("%s: %s: variant %q: %v", bundle.label(), ps.Schema, vs.Name, err)
					continue
				}
				variants = append(variants, cv)
			}
			b.Register(ps.Schema, mode, variants...)
		}
	}
	if err := v.Build(); err != nil {
		return nil, err
	}
	return b.Build()
}

func (b *Bundle) label() string {
	if b.source != "" {
		return b.source
	}
	return "bundle " + b.Vendor
}

func compilePatterns(exprs []string) ([]*extract.Pattern, error) {
	out := make([]*extract.Pattern, 0, len(exprs))
	for _, e := range exprs {
		p, err := extract.Compile(e)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// compiled holds the parsed form of a VariantSpec.
type compiled struct {
	spec    VariantSpec
	key     *regexp.Regexp
	command *render.Template
	section *render.Template
	fields  []compiledField
	context []namedTemplate
	create  *render.Template
	update  *render.Template
	delete  *render.Template
}

type compiledField struct {
	FieldSpec
	pattern *extract.Pattern
}

type namedTemplate struct {
	name string
	tmpl *render.Template
}

func compileVariant(vs VariantSpec, rejects []*extract.Pattern) (dispatch.Variant, error) {
	c := &compiled{spec: vs}
	v := &util.ValidationBuilder{}

	parse := func(what, src string) *render.Template {
		if src == "" {
			return nil
		}
		t, err := render.Parse(vs.Name+"."+what, src)
		if err != nil {
			v.AddErrorf("%v", err)
		}
		return t
	}

	if vs.Match != nil && vs.Match.Key != "" {
		re, err := regexp.Compile(vs.Match.Key)
		if err != nil {
			v.AddErrorf("match key: %v", err)
		}
		c.key = re
	}
	if vs.Match != nil && vs.Match.Sibling != "" && vs.Match.Field == "" {
		v.AddErrorf("match sibling %q needs a field", vs.Match.Sibling)
	}

	if vs.Read != nil {
		v.Add(vs.Read.Command != "", "read has no command")
		c.command = parse("read", vs.Read.Command)
		c.section = parse("section", vs.Read.Section)
		for _, f := range vs.Read.Fields {
			cf, err := compileField(f)
			if err != nil {
				v.AddErrorf("field %q: %v", f.Name, err)
				continue
			}
			c.fields = append(c.fields, cf)
		}
	}

	names := make([]string, 0, len(vs.Context))
	for n := range vs.Context {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		c.context = append(c.context, namedTemplate{name: n, tmpl: parse("context."+n, vs.Context[n])})
	}

	c.create = parse("create", vs.Create)
	c.update = parse("update", vs.Update)
	c.delete = parse("delete", vs.Delete)
	if c.update != nil || c.delete != nil {
		v.Add(c.create != nil, "update and delete templates need a create template")
	}
	if err := v.Build(); err != nil {
		return dispatch.Variant{}, err
	}

	out := dispatch.Variant{
		Name:    vs.Name,
		Applies: c.predicate(),
		Policy:  c.policy(),
		Owns:    owned(vs),
	}
	if c.command != nil {
		out.Read = c.read
	}
	if c.create != nil {
		out.Create = c.renderCreate
		out.Delete = c.renderDelete
		if c.update != nil {
			out.Update = c.renderUpdate
		}
	}
	if pc := vs.Preconditions; pc != nil {
		if len(pc.RequireFields) > 0 {
			out.Preconditions = append(out.Preconditions, dispatch.RequireFields(pc.RequireFields...))
		}
		if pc.ForbidDelete != "" {
			out.Preconditions = append(out.Preconditions, dispatch.ForbidDelete(pc.ForbidDelete))
		}
	}
	if len(rejects) > 0 {
		out.Check = rejectCheck(rejects)
	}
	return out, nil
}

// owned drops the key field from Owns: it is derived from the path and
// cannot diverge from what was written.
func owned(vs VariantSpec) []string {
	var out []string
	for _, f := range vs.Owns {
		if f != vs.KeyField {
			out = append(out, f)
		}
	}
	return out
}

func compileField(f FieldSpec) (compiledField, error) {
	cf := compiledField{FieldSpec: f}
	if f.Name == "" {
		return cf, fmt.Errorf("field has no name")
	}
	p, err := extract.Compile(f.Pattern)
	if err != nil {
		return cf, err
	}
	cf.pattern = p
	if cf.Group == "" {
		cf.Group = "value"
	}
	if !extract.HasKind(f.Type) {
		return cf, fmt.Errorf("unknown type %q (known: %v)", f.Type, extract.Kinds())
	}
	if f.Matched == nil && !p.HasGroup(cf.Group) {
		return cf, fmt.Errorf("pattern %q has no group %q", f.Pattern, cf.Group)
	}
	if f.Default != nil {
		if _, err := extract.Decode(f.Type, *f.Default); err != nil {
			return cf, fmt.Errorf("default: %v", err)
		}
	}
	if f.Index < 0 {
		return cf, fmt.Errorf("index must not be negative")
	}
	return cf, nil
}

func (c *compiled) predicate() dispatch.Predicate {
	var preds []dispatch.Predicate
	if c.key != nil {
		re := c.key
		preds = append(preds, func(p model.Path, _, _ model.Snapshot, _ dispatch.Mode) bool {
			return re.MatchString(p.LastKey())
		})
	}
	if m := c.spec.Match; m != nil && m.Field != "" {
		if m.Sibling != "" {
			preds = append(preds, dispatch.SiblingFieldEquals(m.Sibling, m.Field, m.Equals))
		} else {
			preds = append(preds, dispatch.FieldEquals(m.Field, m.Equals))
		}
	}
	if len(preds) == 0 {
		return dispatch.Always()
	}
	return dispatch.And(preds...)
}

func (c *compiled) policy() reconcile.Policy {
	p := reconcile.Policy{
		Discriminators: append([]string(nil), c.spec.Discriminators...),
		Mutable:        c.spec.Mutable,
		InPlace:        c.update != nil,
	}
	// a matched field that lives in this node is a discriminator too
	if m := c.spec.Match; m != nil && m.Field != "" && m.Sibling == "" && !contains(p.Discriminators, m.Field) {
		p.Discriminators = append(p.Discriminators, m.Field)
	}
	// the key field comes from the path, so a read sets it even when the
	// intended node leaves it out
	if k := c.spec.KeyField; k != "" && p.InPlace && !contains(p.Mutable, k) && !contains(p.Mutable, "*") {
		p.Mutable = append(append([]string(nil), p.Mutable...), k)
	}
	return p
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

// captures returns the named groups of the key pattern.
func (c *compiled) captures(key string) map[string]string {
	out := map[string]string{}
	if c.key == nil {
		return out
	}
	m := c.key.FindStringSubmatch(key)
	if m == nil {
		return out
	}
	for i, name := range c.key.SubexpNames() {
		if name != "" && i < len(m) {
			out[name] = m[i]
		}
	}
	return out
}

// templateContext builds the variables a template sees. Fields of data are
// spread at the top level, followed by the fixed names and the key
// captures; context templates are rendered last, in name order, each
// seeing everything before it.
func (c *compiled) templateContext(path model.Path, data, before, after model.ConfigNode, deleting bool) render.Context {
	ctx := render.Context{}
	for _, f := range data.Fields() {
		ctx[f], _ = data.Get(f)
	}
	ctx["data"] = data
	ctx["before"] = before
	ctx["after"] = after
	ctx["key"] = path.LastKey()
	ctx["delete"] = deleting
	for k, v := range c.captures(path.LastKey()) {
		ctx[k] = v
	}
	for _, nt := range c.context {
		ctx[nt.name] = nt.tmpl.Render(ctx)
	}
	return ctx
}

func (c *compiled) renderCreate(op dispatch.Op) []string {
	ctx := c.templateContext(op.Path, op.After, op.Before, op.After, false)
	return render.Lines(c.create.Render(ctx))
}

func (c *compiled) renderUpdate(op dispatch.Op) []string {
	ctx := c.templateContext(op.Path, op.After, op.Before, op.After, false)
	return render.Lines(c.update.Render(ctx))
}

// renderDelete uses the delete template, or the create template with
// delete set when there is none.
func (c *compiled) renderDelete(op dispatch.Op) []string {
	ctx := c.templateContext(op.Path, op.Before, op.Before, op.After, true)
	t := c.delete
	if t == nil {
		t = c.create
	}
	return render.Lines(t.Render(ctx))
}

func rejectCheck(patterns []*extract.Pattern) func(session, output string) error {
	return func(session, output string) error {
		for _, p := range patterns {
			line, ok, _ := extract.FindFirst(output, p, extract.Line)
			if ok {
				return &util.CommandRejectedError{Session: session, Line: line}
			}
		}
		return nil
	}
}

// read renders the probe command, runs it and extracts the declared
// fields. With a section, the node exists when the block does; without
// one, when some field pattern matched.
func (c *compiled) read(ctx context.Context, p dispatch.Prober, req dispatch.ReadRequest) (model.ConfigNode, error) {
	data := model.Lookup(req.Snapshot, req.Path)
	tctx := c.templateContext(req.Path, data, data, data, false)

	out, err := p.Probe(ctx, c.command.Render(tctx))
	if err != nil {
		return model.ConfigNode{}, err
	}
	if c.section != nil {
		quoted := render.Context{}
		for k, v := range tctx {
			if s, ok := v.(string); ok {
				v = regexp.QuoteMeta(s)
			}
			quoted[k] = v
		}
		expr := c.section.Render(quoted)
		header, err := extract.Compile(expr)
		if err != nil {
			return model.ConfigNode{}, fmt.Errorf("section pattern %q: %w", expr, err)
		}
		block, ok := extract.SectionFor(out, header)
		if !ok {
			return model.ConfigNode{}, nil
		}
		return c.extract(req.Path, block, true)
	}
	return c.extract(req.Path, out, false)
}

func (c *compiled) extract(path model.Path, out string, present bool) (model.ConfigNode, error) {
	fields := map[string]any{}
	matched := present
	for _, f := range c.fields {
		v, ok, err := f.extract(out)
		if err != nil {
			return model.ConfigNode{}, err
		}
		if ok || f.Matched != nil {
			matched = matched || ok
			fields[f.Name] = v
			continue
		}
		if f.Default != nil {
			// validated at build
			fields[f.Name], _ = extract.Decode(f.Type, *f.Default)
		}
	}
	if !matched {
		return model.ConfigNode{}, nil
	}
	if c.spec.KeyField != "" {
		fields[c.spec.KeyField] = path.LastKey()
	}
	// the device shows the variant, not the discriminator that selected it
	if m := c.spec.Match; m != nil && m.Field != "" && m.Sibling == "" {
		if _, ok := fields[m.Field]; !ok {
			fields[m.Field] = m.Equals
		}
	}
	return model.NewNode(fields), nil
}

// extract reports the field's value and whether its pattern matched.
// A flag field always has a value.
func (f compiledField) extract(out string) (any, bool, error) {
	switch {
	case f.Matched != nil:
		if extract.Count(out, f.pattern) > 0 {
			return *f.Matched, true, nil
		}
		return !*f.Matched, false, nil
	case f.Multi:
		vals, err := extract.FindAll(out, f.pattern, extract.Typed(f.Group, f.Type))
		if err != nil {
			return nil, false, err
		}
		return vals, len(vals) > 0, nil
	default:
		return extract.FindFirstFrom(out, f.Index, f.pattern, extract.Typed(f.Group, f.Type))
	}
}
