package render

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/vm"

	"github.com/newtron-network/newtcli/pkg/util"
)

var (
	refRe  = regexp.MustCompile(`\$(` + refPattern + `)`)
	bareRe = regexp.MustCompile(`^(!?)\s*(\$?)(` + refPattern + `)$`)

	literals = map[string]bool{"TRUE": true, "FALSE": true, "true": true, "false": true, "nil": true}
)

// condition is a compiled if-condition. A bare reference, with or without
// the $, is decided by truthiness; anything else runs as an expr program
// with each $reference bound to a placeholder variable and each plain
// identifier bound to the variable of that name.
type condition struct {
	src    string
	negate bool
	bare   []string
	refs   [][]string
	names  []string
	prog   *vm.Program
}

// identifiers collects the names an expr program reads.
type identifiers map[string]bool

func (ids identifiers) Visit(node *ast.Node) {
	if n, ok := (*node).(*ast.IdentifierNode); ok {
		ids[n.Value] = true
	}
}

func compileCondition(src string) (*condition, error) {
	c := &condition{src: src}
	if m := bareRe.FindStringSubmatch(src); m != nil && (m[2] == "$" || !literals[m[3]]) {
		c.negate = m[1] == "!"
		c.bare = strings.Split(m[3], ".")
		return c, nil
	}

	code := refRe.ReplaceAllStringFunc(src, func(ref string) string {
		c.refs = append(c.refs, strings.Split(ref[1:], "."))
		return fmt.Sprintf("_v%d", len(c.refs)-1)
	})
	ids := identifiers{}
	prog, err := expr.Compile(code, expr.AllowUndefinedVariables(), expr.Patch(ids))
	if err != nil {
		return nil, err
	}
	for name := range ids {
		if !strings.HasPrefix(name, "_v") && !literals[name] {
			c.names = append(c.names, name)
		}
	}
	sort.Strings(c.names)
	c.prog = prog
	return c, nil
}

func (c *condition) eval(s *scope, tmpl string) bool {
	if c.bare != nil {
		v, _ := s.resolve(c.bare)
		return truthy(v) != c.negate
	}

	env := map[string]any{"TRUE": true, "FALSE": false}
	for i, ref := range c.refs {
		v, _ := s.resolve(ref)
		env[fmt.Sprintf("_v%d", i)] = exprValue(v)
	}
	for _, name := range c.names {
		if v, ok := s.lookup(name); ok {
			env[name] = exprValue(v)
		}
	}
	out, err := expr.Run(c.prog, env)
	if err != nil {
		util.Logger.WithField("template", tmpl).Debugf("condition %q evaluated false: %v", c.src, err)
		return false
	}
	return truthy(out)
}
