package reactionroles

import (
	"strings"
)

// Nickname prefixes use a bracket grammar: "[Prefix] Base". splitNickname
// separates the two, treating malformed brackets (no closing bracket, nothing
// after it) as part of the base name.
func splitNickname(nick string) (prefix string, base string) {
	if !strings.HasPrefix(nick, "[") {
		return "", nick
	}

	end := strings.Index(nick, "]")
	if end < 0 {
		return "", nick
	}

	return nick[1:end], strings.TrimLeft(nick[end+1:], " ")
}

// withPrefix replaces any existing bracket prefix on nick with the given one.
func withPrefix(prefix, nick string) string {
	_, base := splitNickname(nick)
	return "[" + prefix + "] " + base
}

// stripPrefix removes the bracket prefix from nick if it matches the given
// prefix exactly, returning the base name and whether anything was stripped.
func stripPrefix(prefix, nick string) (string, bool) {
	current, base := splitNickname(nick)
	if current != prefix {
		return nick, false
	}

	return base, true
}
