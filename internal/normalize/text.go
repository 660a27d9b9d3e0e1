package normalize

import (
	"strings"
)

// Description canonicalizes free text for hashing and matching: lower-cased,
// internal whitespace collapsed to single spaces, trimmed. Two independent
// extractions of the same transaction must converge here.
func Description(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func trimSpace(s string) string {
	return strings.TrimSpace(s)
}
