package kv

import "strings"

const globSpecials = `*?[]\`

// EscapeGlob quotes every MATCH metacharacter in s so it matches only itself.
// Callers building "prefix*" patterns from user input must escape the prefix.
func EscapeGlob(s string) string {
	if !strings.ContainsAny(s, globSpecials) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(globSpecials, s[i]) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

type globToken struct {
	kind byte // '*', '?' or 0 for a literal
	ch   byte
}

func compileGlob(pattern string) []globToken {
	tokens := make([]globToken, 0, len(pattern))
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; {
		case c == '\\' && i+1 < len(pattern):
			i++
			tokens = append(tokens, globToken{ch: pattern[i]})
		case c == '*' || c == '?':
			tokens = append(tokens, globToken{kind: c})
		default:
			tokens = append(tokens, globToken{ch: c})
		}
	}
	return tokens
}

// literalPrefix returns the unescaped text before the first unescaped wildcard.
func literalPrefix(pattern string) string {
	var b strings.Builder
	for _, t := range compileGlob(pattern) {
		if t.kind != 0 {
			break
		}
		b.WriteByte(t.ch)
	}
	return b.String()
}

// matchGlob implements the subset of redis MATCH syntax the store relies on:
// '*' for any run of characters, '?' for exactly one and '\' to quote the next byte.
// Brackets are matched literally.
func matchGlob(pattern, s string) bool {
	tokens := compileGlob(pattern)
	px, sx := 0, 0
	starPx, starSx := -1, 0
	for sx < len(s) {
		switch {
		case px < len(tokens) && tokens[px].kind == '*':
			starPx, starSx = px, sx
			px++
		case px < len(tokens) && (tokens[px].kind == '?' || (tokens[px].kind == 0 && tokens[px].ch == s[sx])):
			px++
			sx++
		case starPx >= 0:
			starSx++
			px, sx = starPx+1, starSx
		default:
			return false
		}
	}
	for px < len(tokens) && tokens[px].kind == '*' {
		px++
	}
	return px == len(tokens)
}
