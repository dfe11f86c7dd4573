// Package codec maps charset tokens to encodings and transcodes bodies between them.
package codec

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrUnsupportedEncoding is returned for charset tokens that name no known encoding.
var ErrUnsupportedEncoding = errors.New("unsupported encoding")

// Lookup returns the encoding for a charset token.
// IANA names and aliases are tried first, then the WHATWG index. Matching is
// case-insensitive; the token is otherwise used as given.
func Lookup(charset string) (encoding.Encoding, error) {
	if charset == "" {
		return nil, fmt.Errorf("%w: empty charset", ErrUnsupportedEncoding)
	}
	// ianaindex returns a nil encoding without error for names it knows but
	// cannot encode, see https://github.com/golang/go/issues/19421
	if enc, err := ianaindex.IANA.Encoding(charset); err == nil && enc != nil {
		return enc, nil
	}
	if enc, err := ianaindex.MIME.Encoding(charset); err == nil && enc != nil {
		return enc, nil
	}
	if enc, err := htmlindex.Get(charset); err == nil && enc != nil {
		return enc, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, charset)
}

// Transcode reads body as UTF-8 text and encodes that text with charset.
// Invalid UTF-8 becomes U+FFFD, and characters charset cannot represent become
// '?' in charset, so Transcode fails only for unknown charsets.
func Transcode(body []byte, charset string) ([]byte, error) {
	enc, err := Lookup(charset)
	if err != nil {
		return nil, err
	}
	text, err := unicode.UTF8.NewDecoder().Bytes(body)
	if err != nil {
		return nil, fmt.Errorf("decode utf-8: %w", err)
	}
	question, err := enc.NewEncoder().Bytes([]byte("?"))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", charset, err)
	}
	out, _, err := transform.Bytes(&replaceUnmappable{encoder: enc.NewEncoder(), replacement: question}, text)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", charset, err)
	}
	return out, nil
}

// repertoireError is implemented by the errors x/text encoders return for runes
// outside their repertoire.
type repertoireError interface {
	Replacement() byte
}

// replaceUnmappable writes replacement for every rune the encoder cannot represent.
type replaceUnmappable struct {
	encoder     *encoding.Encoder
	replacement []byte
}

func (r *replaceUnmappable) Reset() {
	r.encoder.Reset()
}

func (r *replaceUnmappable) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	nDst, nSrc, err = r.encoder.Transform(dst, src, atEOF)
	for err != nil {
		if _, ok := err.(repertoireError); !ok {
			return nDst, nSrc, err
		}
		if len(dst)-nDst < len(r.replacement) {
			return nDst, nSrc, transform.ErrShortDst
		}
		_, size := utf8.DecodeRune(src[nSrc:])
		nDst += copy(dst[nDst:], r.replacement)
		nSrc += size
		err = nil
		if nSrc < len(src) {
			var dn, sn int
			dn, sn, err = r.encoder.Transform(dst[nDst:], src[nSrc:], atEOF)
			nDst += dn
			nSrc += sn
		}
	}
	return nDst, nSrc, nil
}
