// Package extract recovers structured fields from line-oriented device
// output using regular expressions with named capture groups.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/newtron-network/newtcli/pkg/util"
)

// Pattern is a compiled line pattern.
type Pattern struct {
	re *regexp.Regexp
}

// Compile compiles a line pattern.
func Compile(expr string) (*Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern %q: %w", expr, err)
	}
	return &Pattern{re: re}, nil
}

// MustCompile is Compile for package-level patterns; it panics on error.
func MustCompile(expr string) *Pattern {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Pattern) String() string {
	return p.re.String()
}

// Groups returns the pattern's named capture groups in order.
func (p *Pattern) Groups() []string {
	var out []string
	for _, n := range p.re.SubexpNames() {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// HasGroup reports whether the pattern declares the named group.
func (p *Pattern) HasGroup(name string) bool {
	return p.re.SubexpIndex(name) >= 0
}

// MatchString reports whether any line of s matches.
func (p *Pattern) MatchString(s string) bool {
	for _, l := range Lines(s) {
		if p.re.MatchString(l) {
			return true
		}
	}
	return false
}

func (p *Pattern) match(line string, lineNo int) (Match, bool) {
	idx := p.re.FindStringSubmatchIndex(line)
	if idx == nil {
		return Match{}, false
	}
	return Match{Line: line, LineNo: lineNo, Pattern: p, idx: idx}, true
}

// Lines splits output on '\n' and trims trailing whitespace (including
// '\r') from every line. Leading indentation is kept.
func Lines(output string) []string {
	if output == "" {
		return nil
	}
	lines := strings.Split(output, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return lines
}

// Match is one line matched by a Pattern. LineNo is 1-based.
type Match struct {
	Line    string
	LineNo  int
	Pattern *Pattern
	idx     []int
}

// Group returns the text captured by a named group. The second result is
// false when the group does not exist or did not participate.
func (m Match) Group(name string) (string, bool) {
	if m.Pattern == nil {
		return "", false
	}
	i := m.Pattern.re.SubexpIndex(name)
	if i < 0 || 2*i+1 >= len(m.idx) || m.idx[2*i] < 0 {
		return "", false
	}
	return m.Line[m.idx[2*i]:m.idx[2*i+1]], true
}

// Value returns a named group's text, or "" when it did not match.
func (m Match) Value(name string) string {
	s, _ := m.Group(name)
	return s
}

// Int decodes a named group as a signed decimal integer.
func (m Match) Int(name string) (int64, error) {
	s, err := m.required(name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, m.fail(name, err)
	}
	return v, nil
}

// Uint decodes a named group as an unsigned decimal integer.
func (m Match) Uint(name string) (uint64, error) {
	s, err := m.required(name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, m.fail(name, err)
	}
	return v, nil
}

// Float decodes a named group as a floating point number.
func (m Match) Float(name string) (float64, error) {
	s, err := m.required(name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, m.fail(name, err)
	}
	return v, nil
}

// Bool decodes a named group using device vocabulary: true/false,
// yes/no, on/off, up/down, enable(d)/disable(d).
func (m Match) Bool(name string) (bool, error) {
	s, err := m.required(name)
	if err != nil {
		return false, err
	}
	v, err := parseBool(s)
	if err != nil {
		return false, m.fail(name, err)
	}
	return v, nil
}

func (m Match) required(name string) (string, error) {
	s, ok := m.Group(name)
	if !ok {
		return "", m.fail(name, fmt.Errorf("group did not match"))
	}
	return s, nil
}

func (m Match) fail(group string, err error) *util.ExtractionError {
	pattern := ""
	if m.Pattern != nil {
		pattern = m.Pattern.String()
	}
	return &util.ExtractionError{
		Pattern: pattern,
		Line:    m.Line,
		LineNo:  m.LineNo,
		Group:   group,
		Err:     err,
	}
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "up", "enable", "enabled":
		return true, nil
	case "false", "no", "off", "down", "disable", "disabled":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}
