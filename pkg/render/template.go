// Package render implements the command template language used to build
// device CLI text from structured data.
//
// A template is literal text with three constructs:
//
//	{$name.field.0}                              substitution
//	{% if (cond) %} ... {% else %} ... {% endif %}
//	{% loop in $xs as $x %} ... {% onEmpty %} ... {% endloop %}
//
// Conditions are expressions over $references; a bare $ref (or !$ref) is
// tested for truthiness. Undefined variables render empty and are falsy.
package render

import (
	"fmt"
	"strings"
)

// Context maps variable names to values: scalars, model.ConfigNode, or
// sequences of either.
type Context map[string]any

// Template is a parsed command template. It is safe for concurrent use.
type Template struct {
	name  string
	src   string
	nodes []node
}

// ParseError reports a malformed template.
type ParseError struct {
	Name string
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("template:%d:%d: %s", e.Line, e.Col, e.Msg)
	}
	return fmt.Sprintf("template %s:%d:%d: %s", e.Name, e.Line, e.Col, e.Msg)
}

// Parse parses src. Conditions are compiled here so that rendering never
// fails.
func Parse(name, src string) (*Template, error) {
	toks, err := lex(name, src)
	if err != nil {
		return nil, err
	}
	p := &parser{name: name, toks: toks}
	nodes, err := p.parseRoot()
	if err != nil {
		return nil, err
	}
	return &Template{name: name, src: src, nodes: nodes}, nil
}

// MustParse is Parse for templates known to be valid; it panics on error.
func MustParse(name, src string) *Template {
	t, err := Parse(name, src)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the template's name.
func (t *Template) Name() string { return t.name }

// Source returns the template text.
func (t *Template) Source() string { return t.src }

// Render renders the template. It is total: undefined variables render
// as empty and failing conditions are false.
func (t *Template) Render(ctx Context) string {
	var b strings.Builder
	s := &scope{vars: ctx}
	exec(&b, t.nodes, s, t.name)
	return b.String()
}

// Render parses and renders src in one step.
func Render(src string, ctx Context) (string, error) {
	t, err := Parse("", src)
	if err != nil {
		return "", err
	}
	return t.Render(ctx), nil
}

// Lines splits rendered text into device commands, trimming trailing
// whitespace and dropping blank lines.
func Lines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimRight(l, " \t\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}
