package core

import (
	"fmt"
	"strings"

	"github.com/always-cache/charset-converter/pkg/codec"
	headerlines "github.com/always-cache/charset-converter/pkg/header-lines"
	httpmessage "github.com/always-cache/charset-converter/pkg/http-message"
)

// ProcessInbound relabels a message from its declared charset to utf-8.
//
// The body is read as UTF-8 and written in the declared charset, the charset
// token in the first Content-Type line is replaced by utf-8, and the token is
// kept in an X-Original-Charset line so ProcessOutbound can undo the change.
//
// A nil result with a nil error means the message should be left as it is.
func ProcessInbound(msg httpmessage.Message) ([]byte, error) {
	contentType, i := headerlines.Find(msg.Headers, headerlines.ContentTypePrefix)
	if i < 0 {
		return nil, nil
	}
	charset, err := ExtractCharset(contentType)
	if err != nil {
		// nothing declared, nothing to convert
		return nil, nil
	}

	body, err := codec.Transcode(msg.Body, charset)
	if err != nil {
		return nil, fmt.Errorf("inbound %s: %w", charset, err)
	}

	headers := headerlines.Remove(msg.Headers, i)
	headers = append(headers,
		strings.ReplaceAll(contentType, charset, CanonicalCharset),
		headerlines.OriginalCharsetPrefix+charset,
	)
	return httpmessage.Build(headers, body), nil
}

// ProcessOutbound restores the charset recorded by ProcessInbound.
//
// The body is read as UTF-8 and written in the original charset, the X-Original-Charset
// line is dropped, and the first utf-8 in the Content-Type line is replaced by the
// original token.
//
// A nil result with a nil error means the message should be left as it is.
func ProcessOutbound(msg httpmessage.Message) ([]byte, error) {
	original, i := headerlines.Find(msg.Headers, headerlines.OriginalCharsetPrefix)
	if i < 0 {
		return nil, nil
	}
	charset := headerlines.Value(original, headerlines.OriginalCharsetPrefix)

	headers := headerlines.Remove(msg.Headers, i)
	contentType, j := headerlines.Find(headers, headerlines.ContentTypePrefix)
	if j < 0 {
		return nil, fmt.Errorf("outbound %s: %w", charset, ErrMissingExpectedHeader)
	}

	body, err := codec.Transcode(msg.Body, charset)
	if err != nil {
		return nil, fmt.Errorf("outbound %s: %w", charset, err)
	}

	headers = headerlines.Remove(headers, j)
	headers = append(headers, strings.Replace(contentType, CanonicalCharset, charset, 1))
	return httpmessage.Build(headers, body), nil
}
