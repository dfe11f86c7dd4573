// Package httpmessage splits raw HTTP/1.x messages into header lines and body,
// and builds raw messages back from them.
//
// Header lines are kept verbatim as "Name: value" strings. The first line is the
// request line or the status line. Nothing is canonicalized, folded or validated:
// callers get back exactly the bytes they handed in, line by line.
package httpmessage

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Message is a header line sequence paired with a raw body.
type Message struct {
	Headers []string
	Body    []byte
}

// Info is the result of analyzing a raw message.
type Info struct {
	Headers    []string
	BodyOffset int
}

// ParseError is returned when raw bytes cannot be split into a message.
type ParseError struct {
	Message  string
	Position int
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Position > 0 {
		return fmt.Sprintf("httpmessage: parse error at position %d: %s", e.Position, e.Message)
	}
	return fmt.Sprintf("httpmessage: %s", e.Message)
}

var (
	crlfcrlf = []byte("\r\n\r\n")
	lflf     = []byte("\n\n")
)

// Analyze returns the header lines of raw and the offset at which its body starts.
// Both CRLF and bare LF line endings are accepted.
// A message without a blank line is all headers and has an empty body.
func Analyze(raw []byte) (Info, error) {
	if len(raw) == 0 {
		return Info{}, &ParseError{Message: "empty message"}
	}

	headEnd, bodyOffset := len(raw), len(raw)
	if i := bytes.Index(raw, crlfcrlf); i >= 0 {
		headEnd, bodyOffset = i, i+len(crlfcrlf)
	}
	if i := bytes.Index(raw, lflf); i >= 0 && i < headEnd {
		headEnd, bodyOffset = i, i+len(lflf)
	}

	head := strings.TrimRight(string(raw[:headEnd]), "\r\n")
	if head == "" {
		return Info{}, &ParseError{Message: "missing start line", Position: headEnd}
	}

	lines := strings.Split(head, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}

	return Info{Headers: lines, BodyOffset: bodyOffset}, nil
}

// Parse splits raw into a Message. The body is copied out of raw.
func Parse(raw []byte) (Message, error) {
	info, err := Analyze(raw)
	if err != nil {
		return Message{}, err
	}
	body := make([]byte, len(raw)-info.BodyOffset)
	copy(body, raw[info.BodyOffset:])
	return Message{Headers: info.Headers, Body: body}, nil
}

// Build joins header lines and body into a raw message.
// An existing Content-Length line is updated to the body length, unless the body is
// empty: a declared length without a body (HEAD, 304) is kept. If there is no
// Content-Length, the body is not empty and the message is not chunked, one is appended.
func Build(headers []string, body []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(body) + 64*len(headers))

	hasLength := false
	chunked := false
	for i, line := range headers {
		if i > 0 {
			name, value, _ := strings.Cut(line, ":")
			switch {
			case strings.EqualFold(name, "Content-Length"):
				hasLength = true
				if len(body) > 0 {
					line = name + ": " + strconv.Itoa(len(body))
				}
			case strings.EqualFold(name, "Transfer-Encoding"):
				chunked = strings.Contains(strings.ToLower(value), "chunked")
			}
		}
		buf.WriteString(line)
		buf.WriteString("\r\n")
	}
	if !hasLength && !chunked && len(body) > 0 {
		buf.WriteString("Content-Length: ")
		buf.WriteString(strconv.Itoa(len(body)))
		buf.WriteString("\r\n")
	}

	buf.WriteString("\r\n")
	buf.Write(body)
	return buf.Bytes()
}

// Bytes builds the raw form of m.
func (m Message) Bytes() []byte {
	return Build(m.Headers, m.Body)
}
