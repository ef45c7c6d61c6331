package filter

import "strings"

// List is an ordered set of include tokens and "!"-prefixed exclude tokens.
type List []string

// Mode selects how set-valued inputs (tags) satisfy the include tokens.
type Mode string

const (
	ModeAny Mode = "any"
	ModeAll Mode = "all"
)

func (l List) Split() (includes, excludes []string) {
	for _, tok := range l {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if strings.HasPrefix(tok, "!") {
			if ex := strings.TrimSpace(tok[1:]); ex != "" {
				excludes = append(excludes, ex)
			}
			continue
		}
		includes = append(includes, tok)
	}
	return includes, excludes
}

func (l List) Empty() bool {
	inc, exc := l.Split()
	return len(inc) == 0 && len(exc) == 0
}

// MatchID applies l to a single identifier (entity type, item, block).
// Any exclude hit fails; otherwise an empty include set passes and a
// non-empty one needs a match.
func MatchID(l List, id string) bool {
	includes, excludes := l.Split()
	for _, ex := range excludes {
		if SameID(ex, id) {
			return false
		}
	}
	if len(includes) == 0 {
		return true
	}
	for _, in := range includes {
		if SameID(in, id) {
			return true
		}
	}
	return false
}

// MatchAnyID is MatchID over a set of identifiers (entity families): an
// exclude hit on any member fails, and one member satisfying an include is
// enough.
func MatchAnyID(l List, ids []string) bool {
	includes, excludes := l.Split()
	for _, ex := range excludes {
		for _, id := range ids {
			if SameID(ex, id) {
				return false
			}
		}
	}
	if len(includes) == 0 {
		return true
	}
	for _, in := range includes {
		for _, id := range ids {
			if SameID(in, id) {
				return true
			}
		}
	}
	return false
}

// MatchSet applies l to an exact-match set (tags).
func MatchSet(l List, actual []string, mode Mode) bool {
	includes, excludes := l.Split()
	have := make(map[string]struct{}, len(actual))
	for _, a := range actual {
		have[a] = struct{}{}
	}
	for _, ex := range excludes {
		if _, ok := have[ex]; ok {
			return false
		}
	}
	if len(includes) == 0 {
		return true
	}
	if mode == ModeAll {
		for _, in := range includes {
			if _, ok := have[in]; !ok {
				return false
			}
		}
		return true
	}
	for _, in := range includes {
		if _, ok := have[in]; ok {
			return true
		}
	}
	return false
}

// SameID compares identifiers case-insensitively. When exactly one side
// carries a namespace ("minecraft:zombie" vs "zombie") the namespace is
// ignored.
func SameID(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if strings.EqualFold(a, b) {
		return true
	}
	ai := strings.LastIndexByte(a, ':')
	bi := strings.LastIndexByte(b, ':')
	if (ai < 0) == (bi < 0) {
		return false
	}
	return strings.EqualFold(a[ai+1:], b[bi+1:])
}

// Dimension passes when allow is empty or lists actual.
func Dimension(allow []string, actual string) bool {
	empty := true
	for _, d := range allow {
		if strings.TrimSpace(d) == "" {
			continue
		}
		empty = false
		if SameID(d, actual) {
			return true
		}
	}
	return empty
}
