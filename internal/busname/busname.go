// Package busname parses signal names that may denote a bus.
//
//	Name  = Item { "," Item } .
//	Item  = ident { "[" Index { "," Index } "]" } .
//	Index = int [ ":" int ] .
//
// "d[0:3]" is four bits d[0] .. d[3], "d[3:0]" is the same bits in
// descending order, "a,b[1]" is two bits a and b[1]. Multiple index groups
// form a cross product: "m[0:1][0:1]" is m[0][0], m[0][1], m[1][0], m[1][1].
package busname

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSyntax is wrapped by every parse error.
var ErrSyntax = errors.New("bad bus name")

// maxWidth bounds the bits a single name may expand to.
const maxWidth = 1 << 20

// Name is a parsed, expanded signal name.
type Name struct {
	raw  string
	bits []string
}

// Parse parses a (possibly bus) name.
func Parse(s string) (Name, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Name{}, fmt.Errorf("%w: empty name", ErrSyntax)
	}
	items, err := splitTop(s)
	if err != nil {
		return Name{}, err
	}
	var bits []string
	seen := make(map[string]bool)
	for _, item := range items {
		expanded, err := expandItem(item)
		if err != nil {
			return Name{}, err
		}
		for _, b := range expanded {
			if seen[b] {
				return Name{}, fmt.Errorf("%w: %q repeats %q", ErrSyntax, s, b)
			}
			seen[b] = true
			bits = append(bits, b)
			if len(bits) > maxWidth {
				return Name{}, fmt.Errorf("%w: %q is wider than %d", ErrSyntax, s, maxWidth)
			}
		}
	}
	return Name{raw: s, bits: bits}, nil
}

// Scalar wraps a raw string as a one-bit name without parsing it. It is
// the fallback for names that fail to parse.
func Scalar(s string) Name {
	return Name{raw: s, bits: []string{s}}
}

// MustParse is Parse for names known to be valid.
func MustParse(s string) Name {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

// Width returns the number of scalar bits. A zero Name has width 0.
func (n Name) Width() int { return len(n.bits) }

// IsBus reports whether the name has more than one bit.
func (n Name) IsBus() bool { return len(n.bits) > 1 }

// Bit returns the scalar sub-name at position i.
func (n Name) Bit(i int) string { return n.bits[i] }

// Bits returns a copy of all scalar sub-names.
func (n Name) Bits() []string {
	out := make([]string, len(n.bits))
	copy(out, n.bits)
	return out
}

func (n Name) String() string { return n.raw }

func splitTop(s string) ([]string, error) {
	var items []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: %q has unbalanced ']'", ErrSyntax, s)
			}
		case ',':
			if depth == 0 {
				items = append(items, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("%w: %q has unbalanced '['", ErrSyntax, s)
	}
	items = append(items, strings.TrimSpace(s[start:]))
	for _, it := range items {
		if it == "" {
			return nil, fmt.Errorf("%w: %q has an empty element", ErrSyntax, s)
		}
	}
	return items, nil
}

func expandItem(item string) ([]string, error) {
	open := strings.IndexByte(item, '[')
	base := item
	rest := ""
	if open >= 0 {
		base = item[:open]
		rest = item[open:]
	}
	if err := checkIdent(base); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrSyntax, item, err)
	}
	out := []string{base}
	for rest != "" {
		if rest[0] != '[' {
			return nil, fmt.Errorf("%w: %q: unexpected %q after index", ErrSyntax, item, rest)
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil, fmt.Errorf("%w: %q: missing ']'", ErrSyntax, item)
		}
		indices, err := parseIndices(rest[1:end])
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrSyntax, item, err)
		}
		next := make([]string, 0, len(out)*len(indices))
		for _, prefix := range out {
			for _, idx := range indices {
				next = append(next, prefix+"["+strconv.Itoa(idx)+"]")
			}
		}
		if len(next) > maxWidth {
			return nil, fmt.Errorf("%w: %q is wider than %d", ErrSyntax, item, maxWidth)
		}
		out = next
		rest = rest[end+1:]
	}
	return out, nil
}

func parseIndices(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, errors.New("empty index")
		}
		lo, hi, isRange := strings.Cut(part, ":")
		from, err := parseIndex(lo)
		if err != nil {
			return nil, err
		}
		if !isRange {
			out = append(out, from)
			continue
		}
		to, err := parseIndex(hi)
		if err != nil {
			return nil, err
		}
		if span := to - from; span >= maxWidth || -span >= maxWidth {
			return nil, fmt.Errorf("range %q too wide", part)
		}
		if from <= to {
			for i := from; i <= to; i++ {
				out = append(out, i)
			}
		} else {
			for i := from; i >= to; i-- {
				out = append(out, i)
			}
		}
		if len(out) > maxWidth {
			return nil, fmt.Errorf("range %q too wide", part)
		}
	}
	return out, nil
}

func parseIndex(s string) (int, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bad index %q", s)
	}
	return n, nil
}

func checkIdent(s string) error {
	if s == "" {
		return errors.New("missing identifier")
	}
	for _, r := range s {
		switch r {
		case '[', ']', ',', ':', ' ', '\t', '\n':
			return fmt.Errorf("illegal character %q", r)
		}
	}
	return nil
}
