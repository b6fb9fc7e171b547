package keys

import (
	"fmt"
	"regexp"
	"strings"
)

// Delimiter separates key segments. Identifiers must not contain it.
const Delimiter = "#"

// pattern is a key format such as "QUESTION#{qid}" or "PROFILE".
type pattern struct {
	raw   string
	parts []part
}

type part struct {
	literal bool
	value   string // literal text or field name
}

var fieldRefRegex = regexp.MustCompile(`\{([^}]*)\}`)

func mustPattern(raw string) pattern {
	p, err := parsePattern(raw)
	if err != nil {
		panic(fmt.Sprintf("keys: %v", err))
	}
	return p
}

func parsePattern(raw string) (pattern, error) {
	if raw == "" {
		return pattern{}, fmt.Errorf("pattern cannot be empty")
	}
	p := pattern{raw: raw}
	lastEnd := 0
	for _, m := range fieldRefRegex.FindAllStringSubmatchIndex(raw, -1) {
		start, end := m[0], m[1]
		name := raw[m[2]:m[3]]
		if name == "" {
			return pattern{}, fmt.Errorf("empty field reference at position %d in %q", start, raw)
		}
		if start > lastEnd {
			p.parts = append(p.parts, part{literal: true, value: raw[lastEnd:start]})
		} else if len(p.parts) > 0 && !p.parts[len(p.parts)-1].literal {
			return pattern{}, fmt.Errorf("adjacent field references in %q", raw)
		}
		p.parts = append(p.parts, part{value: name})
		lastEnd = end
	}
	if lastEnd < len(raw) {
		p.parts = append(p.parts, part{literal: true, value: raw[lastEnd:]})
	}
	return p, nil
}

func (p pattern) fields() []string {
	var out []string
	for _, pt := range p.parts {
		if !pt.literal {
			out = append(out, pt.value)
		}
	}
	return out
}

func (p pattern) format(values []string) string {
	var b strings.Builder
	i := 0
	for _, pt := range p.parts {
		if pt.literal {
			b.WriteString(pt.value)
			continue
		}
		b.WriteString(values[i])
		i++
	}
	return b.String()
}

// match extracts field values from s. Field values are non-empty and never
// contain the delimiter, which keeps matching unambiguous.
func (p pattern) match(s string) ([]string, bool) {
	var values []string
	rest := s
	for i, pt := range p.parts {
		if pt.literal {
			if !strings.HasPrefix(rest, pt.value) {
				return nil, false
			}
			rest = rest[len(pt.value):]
			continue
		}
		end := len(rest)
		if i+1 < len(p.parts) {
			end = strings.Index(rest, p.parts[i+1].value)
			if end < 0 {
				return nil, false
			}
		}
		v := rest[:end]
		if v == "" || strings.Contains(v, Delimiter) {
			return nil, false
		}
		values = append(values, v)
		rest = rest[end:]
	}
	if rest != "" {
		return nil, false
	}
	return values, true
}
