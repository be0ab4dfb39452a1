package extract

import "strings"

// Block is a header line plus the more-indented lines following it, such
// as one "interface X" stanza of a running configuration.
type Block struct {
	Header Match
	Body   []string
}

// Text returns the header and body joined by newlines.
func (b Block) Text() string {
	return strings.Join(append([]string{b.Header.Line}, b.Body...), "\n")
}

// Section returns every block whose header line matches header. A block
// ends at the first non-blank line indented no deeper than its header, or
// at a line that is exactly "!" for vendors that terminate stanzas that way.
func Section(output string, header *Pattern) []Block {
	lines := Lines(output)
	var out []Block
	for i := 0; i < len(lines); i++ {
		m, ok := header.match(lines[i], i+1)
		if !ok {
			continue
		}
		depth := indent(lines[i])
		b := Block{Header: m}
		j := i + 1
		for ; j < len(lines); j++ {
			l := lines[j]
			if strings.TrimSpace(l) == "" {
				continue
			}
			if strings.TrimSpace(l) == "!" || indent(l) <= depth {
				break
			}
			b.Body = append(b.Body, l)
		}
		out = append(out, b)
		i = j - 1
	}
	return out
}

// SectionFor returns the text of the first block whose header matches, and
// false when there is none.
func SectionFor(output string, header *Pattern) (string, bool) {
	blocks := Section(output, header)
	if len(blocks) == 0 {
		return "", false
	}
	return blocks[0].Text(), true
}

func indent(l string) int {
	return len(l) - len(strings.TrimLeft(l, " \t"))
}
