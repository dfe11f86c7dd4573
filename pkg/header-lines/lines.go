package headerlines

import "strings"

// Prefixes of the header lines the converter acts on.
// Lookups are exact and case-sensitive, separator and trailing space included.
const (
	ContentTypePrefix     = "Content-Type: "
	ContentLengthPrefix   = "Content-Length: "
	OriginalCharsetPrefix = "X-Original-Charset: "
)

// Find returns the first line starting with prefix and its index.
// If no line matches, it returns an empty string and -1.
func Find(lines []string, prefix string) (string, int) {
	for i, line := range lines {
		if strings.HasPrefix(line, prefix) {
			return line, i
		}
	}
	return "", -1
}

// Remove returns a copy of lines without the line at index i.
// The given slice is not modified.
func Remove(lines []string, i int) []string {
	out := make([]string, 0, len(lines))
	out = append(out, lines[:i]...)
	return append(out, lines[i+1:]...)
}

// Value returns the part of line after prefix.
func Value(line, prefix string) string {
	return strings.TrimPrefix(line, prefix)
}
