package render

import (
	"regexp"
	"strings"
)

type tokenKind int

const (
	tokText tokenKind = iota
	tokVar
	tokTag
)

type token struct {
	kind tokenKind
	val  string
	line int
	col  int
}

// refPattern matches a variable reference without its leading '$'.
// Segments after the first may be numeric indices or dashed names.
const refPattern = `[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+(?:-[A-Za-z0-9_]+)*)*`

var varRe = regexp.MustCompile(`^\s*\$(` + refPattern + `)\s*$`)

// lex splits src into literal text, {$var} substitutions and {% tags %}.
func lex(name, src string) ([]token, error) {
	var toks []token
	line, col := 1, 1
	advance := func(s string) {
		for _, r := range s {
			if r == '\n' {
				line++
				col = 1
			} else {
				col++
			}
		}
	}

	rest := src
	for rest != "" {
		i := nextOpen(rest)
		if i < 0 {
			toks = append(toks, token{kind: tokText, val: rest, line: line, col: col})
			break
		}
		if i > 0 {
			toks = append(toks, token{kind: tokText, val: rest[:i], line: line, col: col})
			advance(rest[:i])
			rest = rest[i:]
		}

		if strings.HasPrefix(rest, "{$") {
			end := strings.IndexByte(rest, '}')
			if end < 0 {
				return nil, &ParseError{Name: name, Line: line, Col: col, Msg: "unterminated substitution"}
			}
			m := varRe.FindStringSubmatch(rest[1:end])
			if m == nil {
				return nil, &ParseError{Name: name, Line: line, Col: col, Msg: "invalid variable reference " + rest[:end+1]}
			}
			toks = append(toks, token{kind: tokVar, val: m[1], line: line, col: col})
			advance(rest[:end+1])
			rest = rest[end+1:]
			continue
		}

		end := strings.Index(rest, "%}")
		if end < 0 {
			return nil, &ParseError{Name: name, Line: line, Col: col, Msg: "unterminated tag"}
		}
		toks = append(toks, token{kind: tokTag, val: strings.TrimSpace(rest[2:end]), line: line, col: col})
		advance(rest[:end+2])
		rest = rest[end+2:]
	}
	return toks, nil
}

// nextOpen returns the offset of the next "{$" or "{%", or -1.
func nextOpen(s string) int {
	off := 0
	for {
		i := strings.IndexByte(s[off:], '{')
		if i < 0 || off+i+1 >= len(s) {
			return -1
		}
		if c := s[off+i+1]; c == '$' || c == '%' {
			return off + i
		}
		off += i + 1
	}
}
