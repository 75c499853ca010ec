package conflict

import "strings"

// Predicate classifies a non-success HTTP response as a conflict (and, if
// so, which kind). The default rule preserves the literal behavior this
// system was distilled from: 409/412 are version mismatches, and a 400
// whose body mentions "modified" is a modified-conflict. That substring
// match is fragile (a 400 about an unrelated "modified" field would
// misclassify), so it is expressed as a swappable Predicate rather than
// hardcoded into the resolver.
type Predicate func(status int, body string) (Type, bool)

// DefaultPredicate implements the literal status/substring rule.
func DefaultPredicate(status int, body string) (Type, bool) {
	switch status {
	case 409, 412:
		return TypeVersionMismatch, true
	case 400:
		if strings.Contains(body, "modified") {
			return TypeModifiedConflict, true
		}
	}
	return "", false
}
