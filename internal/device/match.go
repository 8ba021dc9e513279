package device

import "strings"

// NameMatches compares a stored logical device name against a freshly
// discovered one. Receivers get renamed with qualifier suffixes
// ("Lobby TV" reappearing as "Lobby TV Teste"), so matching is
// tolerant: exact, one extra trailing word, or bidirectional substring.
func NameMatches(stored, discovered string) bool {
	s := strings.ToLower(strings.TrimSpace(stored))
	d := strings.ToLower(strings.TrimSpace(discovered))
	if s == "" || d == "" {
		return false
	}
	if s == d {
		return true
	}
	if oneWordSuffix(s, d) || oneWordSuffix(d, s) {
		return true
	}
	return strings.Contains(s, d) || strings.Contains(d, s)
}

// oneWordSuffix reports whether long is short plus exactly one extra
// trailing word.
func oneWordSuffix(short, long string) bool {
	if !strings.HasPrefix(long, short+" ") {
		return false
	}
	rest := strings.TrimSpace(long[len(short):])
	return rest != "" && !strings.Contains(rest, " ")
}
