package tee

import (
	"bytes"
	"fmt"
	"net/http"
	"time"
)

// ResponseSaver is an http.ResponseWriter that saves the response to a buffer
// in HTTP/1.1 wire format instead of sending it.
type ResponseSaver struct {
	head         *bytes.Buffer
	body         *bytes.Buffer
	header       http.Header
	status       int
	wroteHeaders bool
	CreatedAt    time.Time
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) Header() http.Header {
	return t.header
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) WriteHeader(statusCode int) {
	if t.wroteHeaders {
		return
	}
	// remember that we wrote the headers
	t.wroteHeaders = true
	// set the status code so we can return it later
	t.status = statusCode
	// write http status, headers, and separator to buffer
	// this uses HTTP 1.1 format only
	t.head.WriteString(fmt.Sprintf("HTTP/1.1 %03d %s\r\n", statusCode, http.StatusText(statusCode)))
	t.header.Write(t.head)
	t.head.WriteString("\r\n")
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) Write(b []byte) (int, error) {
	// write headers if not already written
	if !t.wroteHeaders {
		t.WriteHeader(http.StatusOK)
	}
	// write to buffer and return written bytes
	return t.body.Write(b)
}

// Flush is a no-op, everything is kept until Response is called.
func (t *ResponseSaver) Flush() {}

// Response returns the recorded response as a byte slice.
// A handler that wrote nothing produces an empty 200 response.
func (t *ResponseSaver) Response() []byte {
	if !t.wroteHeaders {
		t.WriteHeader(http.StatusOK)
	}
	b := make([]byte, 0, t.head.Len()+t.body.Len())
	b = append(b, t.head.Bytes()...)
	return append(b, t.body.Bytes()...)
}

// StatusCode returns the status code of the response.
func (t *ResponseSaver) StatusCode() int {
	return t.status
}

// NewResponseSaver returns a new ResponseSaver.
func NewResponseSaver() *ResponseSaver {
	return &ResponseSaver{
		CreatedAt: time.Now(),
		head:      &bytes.Buffer{},
		body:      &bytes.Buffer{},
		header:    http.Header{},
	}
}
