package eval

import "strings"

// ParseExp parses a path expression into its segment sequence. An
// empty expression yields a single identity segment; the result is
// never empty. Unbalanced filter brackets are a parse failure and no
// partial result is returned.
func ParseExp(exp string) ([]Segment, error) {
	segs, rest, err := parseSequence(exp, exp, false)
	if err != nil {
		return nil, err
	}
	if rest != "" {
		return nil, newParseError(exp, "unexpected %q", "]")
	}
	if len(segs) == 0 {
		segs = []Segment{{}}
	}
	return segs, nil
}

// parseSequence consumes segments until the end of the input or, when
// inside a filter, the closing "]" (which it consumes but leaves out
// of the returned remainder).
func parseSequence(exp, src string, inFilter bool) ([]Segment, string, error) {
	var segs []Segment
	// After a "[...]" group the following text may still contribute a
	// test or modifier to the filtered segment ("a[f]?", "a[f]=x").
	merge := false

	for {
		i := strings.IndexAny(exp, "[]")
		if i < 0 {
			if inFilter {
				return nil, "", newParseError(src, "missing %q", "]")
			}
			return appendPath(segs, exp, merge), "", nil
		}
		if exp[i] == ']' {
			if !inFilter {
				return nil, "", newParseError(src, "unexpected %q", "]")
			}
			return appendPath(segs, exp[:i], merge), exp[i+1:], nil
		}

		// "[": the filter group attaches to the segment just parsed.
		segs = appendPath(segs, exp[:i], merge)
		if len(segs) == 0 {
			segs = []Segment{{}}
		}
		rest := exp[i+1:]
		for {
			filter, r, err := parseSequence(rest, src, true)
			if err != nil {
				return nil, "", err
			}
			if len(filter) == 0 {
				filter = []Segment{{}}
			}
			last := &segs[len(segs)-1]
			last.Filters = append(last.Filters, filter)
			rest = r
			// consecutive groups attach to the same segment
			if strings.HasPrefix(rest, "[") {
				rest = rest[1:]
				continue
			}
			break
		}
		exp = rest
		merge = true
	}
}

// appendPath splits a bracket-free stretch of the expression on "::"
// and appends the parsed segments. When merge is set the first piece
// folds its test and modifier into the preceding (filtered) segment
// instead of starting a new one.
func appendPath(segs []Segment, path string, merge bool) []Segment {
	pieces := strings.Split(path, "::")
	start := 0
	if merge && len(segs) > 0 {
		if p := strings.TrimSpace(pieces[0]); p != "" {
			trailer := parseSegmentText(p)
			last := &segs[len(segs)-1]
			if trailer.Test != nil {
				last.Test = trailer.Test
			}
			if trailer.Mod != ModNone {
				last.Mod = trailer.Mod
			}
		}
		start = 1
	}
	for _, p := range pieces[start:] {
		segs = append(segs, parseSegmentText(strings.TrimSpace(p)))
	}
	return segs
}

// parseSegmentText decomposes one segment: an optional leading "!" or
// trailing "?" modifier, then an optional "="/"!=" comparison, leaving
// the remainder as the key. Keys that parse as integers become index
// keys.
func parseSegmentText(s string) Segment {
	if s == "" {
		return Segment{}
	}

	mod := ModNone
	if s[0] == '!' && !strings.HasPrefix(s, "!=") {
		mod = ModNegate
		s = s[1:]
	} else if s[len(s)-1] == '?' {
		mod = ModFirst
		s = s[:len(s)-1]
	}

	if i := strings.Index(s, "="); i >= 0 {
		op, key := OpEq, s[:i]
		if i > 0 && s[i-1] == '!' {
			op, key = OpNe, s[:i-1]
		}
		return Segment{Key: makeKey(key), Test: &Test{Op: op, Operand: s[i+1:]}, Mod: mod}
	}
	return Segment{Key: makeKey(s), Mod: mod}
}
