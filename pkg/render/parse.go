package render

import (
	"fmt"
	"regexp"
	"strings"
)

type node interface{}

type textNode struct {
	text string
}

type varNode struct {
	ref []string
}

type ifNode struct {
	cond *condition
	then []node
	els  []node
}

type loopNode struct {
	coll  []string
	item  string
	body  []node
	empty []node
}

var loopRe = regexp.MustCompile(`^loop\s+in\s+\$(` + refPattern + `)\s+as\s+\$([A-Za-z_][A-Za-z0-9_]*)$`)

type parser struct {
	name string
	toks []token
	pos  int
}

func (p *parser) errorf(t token, format string, args ...interface{}) *ParseError {
	return &ParseError{Name: p.name, Line: t.line, Col: t.col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseRoot() ([]node, error) {
	nodes, term, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if term != nil {
		return nil, p.errorf(*term, "unexpected {%% %s %%}", term.val)
	}
	return nodes, nil
}

// parseList parses nodes until EOF or a tag whose keyword is one of stop.
// The stopping tag is returned; nil means EOF.
func (p *parser) parseList(stop ...string) ([]node, *token, error) {
	var nodes []node
	for p.pos < len(p.toks) {
		t := p.toks[p.pos]
		p.pos++
		switch t.kind {
		case tokText:
			nodes = append(nodes, &textNode{text: t.val})
		case tokVar:
			nodes = append(nodes, &varNode{ref: strings.Split(t.val, ".")})
		case tokTag:
			kw := keyword(t.val)
			switch kw {
			case "if":
				n, err := p.parseIf(t)
				if err != nil {
					return nil, nil, err
				}
				nodes = append(nodes, n)
			case "loop":
				n, err := p.parseLoop(t)
				if err != nil {
					return nil, nil, err
				}
				nodes = append(nodes, n)
			case "else", "endif", "onEmpty", "endloop":
				if t.val != kw {
					return nil, nil, p.errorf(t, "unexpected text in {%% %s %%}", kw)
				}
				for _, s := range stop {
					if s == kw {
						return nodes, &t, nil
					}
				}
				return nil, nil, p.errorf(t, "unexpected {%% %s %%}", kw)
			default:
				return nil, nil, p.errorf(t, "unknown tag {%% %s %%}", t.val)
			}
		}
	}
	return nodes, nil, nil
}

func (p *parser) parseIf(open token) (node, error) {
	src := unwrapParens(strings.TrimSpace(strings.TrimPrefix(open.val, "if")))
	if src == "" {
		return nil, p.errorf(open, "empty condition")
	}
	cond, err := compileCondition(src)
	if err != nil {
		return nil, p.errorf(open, "condition %q: %v", src, err)
	}

	n := &ifNode{cond: cond}
	then, term, err := p.parseList("else", "endif")
	if err != nil {
		return nil, err
	}
	if term == nil {
		return nil, p.errorf(open, "unclosed {%% if %%}")
	}
	n.then = then
	if term.val == "else" {
		els, term, err := p.parseList("endif")
		if err != nil {
			return nil, err
		}
		if term == nil {
			return nil, p.errorf(open, "unclosed {%% if %%}")
		}
		n.els = els
	}
	return n, nil
}

func (p *parser) parseLoop(open token) (node, error) {
	m := loopRe.FindStringSubmatch(open.val)
	if m == nil {
		return nil, p.errorf(open, "malformed loop, want {%% loop in $collection as $item %%}")
	}

	n := &loopNode{coll: strings.Split(m[1], "."), item: m[2]}
	body, term, err := p.parseList("onEmpty", "endloop")
	if err != nil {
		return nil, err
	}
	if term == nil {
		return nil, p.errorf(open, "unclosed {%% loop %%}")
	}
	n.body = body
	if term.val == "onEmpty" {
		empty, term, err := p.parseList("endloop")
		if err != nil {
			return nil, err
		}
		if term == nil {
			return nil, p.errorf(open, "unclosed {%% loop %%}")
		}
		n.empty = empty
	}
	return n, nil
}

// keyword returns the leading word of a tag. "if(x)" yields "if".
func keyword(tag string) string {
	end := strings.IndexAny(tag, " \t(")
	if end < 0 {
		return tag
	}
	return tag[:end]
}

// unwrapParens strips one pair of parentheses enclosing all of s.
func unwrapParens(s string) string {
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return s
	}
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return s
			}
		}
	}
	return strings.TrimSpace(s[1 : len(s)-1])
}
