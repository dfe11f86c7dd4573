package core

import (
	"errors"
	"regexp"

	"github.com/always-cache/charset-converter/pkg/codec"
)

// CanonicalCharset is what inbound messages are relabelled to.
const CanonicalCharset = "utf-8"

var (
	// ErrMalformedCharsetDeclaration means a Content-Type line carries no charset token.
	// Transforms treat it as nothing to do.
	ErrMalformedCharsetDeclaration = errors.New("no charset declared")
	// ErrUnsupportedEncoding means a charset token names no known encoding.
	ErrUnsupportedEncoding = codec.ErrUnsupportedEncoding
	// ErrMissingExpectedHeader means an outbound message has an original charset
	// but no Content-Type line to restore it into.
	ErrMissingExpectedHeader = errors.New("missing Content-Type header")
)

var charsetPattern = regexp.MustCompile(`charset=(\S+)`)

// ExtractCharset returns the charset token declared in a Content-Type header line.
// The token is returned as written, quotes and trailing separators included.
func ExtractCharset(line string) (string, error) {
	m := charsetPattern.FindStringSubmatch(line)
	if m == nil {
		return "", ErrMalformedCharsetDeclaration
	}
	return m[1], nil
}
