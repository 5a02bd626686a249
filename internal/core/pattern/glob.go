// Package pattern implements the restricted glob matcher and payload filter
// expression evaluator shared by the domain authorizer, the event router,
// and the repository event-type queries.
package pattern

import "strings"

// MatchEventType matches an event type against a glob pattern. Comparison is
// case-sensitive. `*` matches any run of characters including the empty
// string; every other character is literal. No brace, range, or `**`
// constructs are supported.
func MatchEventType(pattern, candidate string) bool {
	return match(pattern, candidate, false)
}

// MatchPath matches a URL path against a path-glob pattern. Comparison is
// case-sensitive, identical rules to MatchEventType.
func MatchPath(pattern, candidate string) bool {
	return match(pattern, candidate, false)
}

// MatchHost matches a host/domain pattern case-insensitively; hosts are the
// one field compared without case sensitivity.
func MatchHost(pattern, candidate string) bool {
	return match(pattern, candidate, true)
}

// AnyMatches reports whether candidate matches at least one pattern in pats
// under event-type glob rules. An empty pats slice means accept-all, which
// is the contract for both Subscription.event_type_patterns and
// CallbackConfiguration.subscribed_event_types.
func AnyMatches(pats []string, candidate string) bool {
	if len(pats) == 0 {
		return true
	}
	for _, p := range pats {
		if MatchEventType(p, candidate) {
			return true
		}
	}
	return false
}

// match implements the restricted glob: split the pattern on '*' into
// literal segments, then verify the candidate contains those segments in
// order, anchored at the start and end by segments adjacent to the string's
// boundaries (i.e., no leading/trailing '*' means no leading/trailing gap).
func match(pattern, candidate string, foldCase bool) bool {
	if foldCase {
		pattern = strings.ToLower(pattern)
		candidate = strings.ToLower(candidate)
	}
	if !strings.Contains(pattern, "*") {
		return pattern == candidate
	}

	segments := strings.Split(pattern, "*")
	pos := 0

	// First segment must be a prefix (pattern doesn't start with '*').
	first := segments[0]
	if first != "" {
		if !strings.HasPrefix(candidate, first) {
			return false
		}
		pos = len(first)
	}

	// Middle segments must appear in order, each search starting after the
	// previous match.
	for i := 1; i < len(segments)-1; i++ {
		seg := segments[i]
		if seg == "" {
			continue
		}
		idx := strings.Index(candidate[pos:], seg)
		if idx == -1 {
			return false
		}
		pos += idx + len(seg)
	}

	// Last segment must be a suffix (pattern doesn't end with '*').
	last := segments[len(segments)-1]
	if last == "" {
		return true
	}
	if !strings.HasSuffix(candidate, last) {
		return false
	}
	// The suffix match must not overlap characters already consumed by a
	// preceding literal match when the pattern is a single "lit1*lit2" shape.
	return len(candidate)-len(last) >= pos
}
