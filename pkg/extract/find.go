package extract

import (
	"errors"

	"github.com/newtron-network/newtcli/pkg/util"
)

// Projector turns one match into a value. Errors are reported as
// extraction errors carrying the offending line and pattern.
type Projector[T any] func(m Match) (T, error)

// FindFirst projects the first matching line. No match yields
// (zero, false, nil).
func FindFirst[T any](output string, p *Pattern, project Projector[T]) (T, bool, error) {
	return FindFirstFrom(output, 0, p, project)
}

// FindFirstFrom is FindFirst skipping the first start matching lines, for
// selecting the Nth of several same-shaped lines.
func FindFirstFrom[T any](output string, start int, p *Pattern, project Projector[T]) (T, bool, error) {
	var zero T
	seen := 0
	for i, line := range Lines(output) {
		m, ok := p.match(line, i+1)
		if !ok {
			continue
		}
		if seen < start {
			seen++
			continue
		}
		v, err := project(m)
		if err != nil {
			return zero, false, wrap(m, err)
		}
		return v, true, nil
	}
	return zero, false, nil
}

// FindAll projects every matching line in line order. The result is never
// nil.
func FindAll[T any](output string, p *Pattern, project Projector[T]) ([]T, error) {
	out := []T{}
	for i, line := range Lines(output) {
		m, ok := p.match(line, i+1)
		if !ok {
			continue
		}
		v, err := project(m)
		if err != nil {
			return nil, wrap(m, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Count returns the number of matching lines.
func Count(output string, p *Pattern) int {
	n := 0
	for _, line := range Lines(output) {
		if p.re.MatchString(line) {
			n++
		}
	}
	return n
}

func wrap(m Match, err error) error {
	var xe *util.ExtractionError
	if errors.As(err, &xe) {
		return err
	}
	return m.fail("", err)
}

// Text projects a named group as a string. A group that did not
// participate yields "".
func Text(group string) Projector[string] {
	return func(m Match) (string, error) {
		return m.Value(group), nil
	}
}

// Line projects the whole matched line.
func Line(m Match) (string, error) {
	return m.Line, nil
}
