// Package sqlguard rejects requests whose string fields look like SQL
// injection attempts. It is a heuristic secondary defense: the data layer
// still runs every statement through parameterized queries, and this guard is
// never a substitute for that.
package sqlguard

import (
	"regexp"

	"golang.org/x/text/unicode/norm"
)

// Detection patterns, OR'd. False positives on ordinary prose are accepted
// and measured (see observability counters); tune here, not downstream.
var patterns = []*regexp.Regexp{
	// SQL verb followed anywhere later by a target clause.
	regexp.MustCompile(`(?is)\b(union|select|insert|update|delete|drop|create|alter|exec|execute)\b.*\b(from|into|table|database|where)\b`),
	// Boolean-injection shape: OR/AND followed later by an equals sign.
	regexp.MustCompile(`(?is)\b(or|and)\b.*=`),
	// Statement and comment terminators.
	regexp.MustCompile(`--|;|#|/\*|\*/`),
	// Stored-procedure prefixes.
	regexp.MustCompile(`(?i)\b(xp_|sp_)`),
	// Quoted tautology: ' OR '1'='1 and friends.
	regexp.MustCompile(`(?is)['"].*\b(or|and)\b.*['"].*=.*['"]`),
}

// IsSuspicious reports whether input matches any injection pattern. Input is
// NFC-normalized first so decomposed unicode cannot slip keywords past the
// word-boundary matches.
func IsSuspicious(input string) bool {
	if input == "" {
		return false
	}
	normalized := norm.NFC.String(input)
	for _, p := range patterns {
		if p.MatchString(normalized) {
			return true
		}
	}
	return false
}
