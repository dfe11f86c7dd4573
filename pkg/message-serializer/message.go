package serializer

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// RequestToBytes returns the HTTP/1.1 representation of req.
// The body is read fully and put back, so req can still be sent afterwards.
func RequestToBytes(req *http.Request) ([]byte, error) {
	body, err := readBody(req.Body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if len(body) == 0 && req.Body != nil {
		req.Body = http.NoBody
	} else if req.Body != nil {
		req.Body = io.NopCloser(bytes.NewReader(body))
	}
	req.ContentLength = int64(len(body))
	req.TransferEncoding = nil

	host := req.Host
	if host == "" && req.URL != nil {
		host = req.URL.Host
	}

	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "%s %s HTTP/1.1\r\n", req.Method, req.URL.RequestURI())
	if host != "" {
		fmt.Fprintf(buf, "Host: %s\r\n", host)
	}
	writeHeaders(buf, req.Header, len(body))
	buf.Write(body)
	return buf.Bytes(), nil
}

// ResponseToBytes returns the HTTP/1.1 representation of res.
// The body is read fully and put back with a known length.
func ResponseToBytes(res *http.Response) ([]byte, error) {
	body, err := readBody(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	res.Body = io.NopCloser(bytes.NewReader(body))
	res.ContentLength = int64(len(body))
	res.TransferEncoding = nil

	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "HTTP/1.1 %03d %s\r\n", res.StatusCode, http.StatusText(res.StatusCode))
	writeHeaders(buf, res.Header, len(body))
	buf.Write(body)
	return buf.Bytes(), nil
}

// BytesToRequest reads a request from b and gives it the context, origin and
// remote address of orig.
func BytesToRequest(b []byte, orig *http.Request) (*http.Request, error) {
	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(b)))
	if err != nil {
		return nil, err
	}
	req = req.WithContext(orig.Context())
	req.URL.Scheme = orig.URL.Scheme
	req.URL.Host = orig.URL.Host
	req.RemoteAddr = orig.RemoteAddr
	req.TLS = orig.TLS
	// outgoing requests must not carry a request URI
	if orig.RequestURI == "" {
		req.RequestURI = ""
	}
	return req, nil
}

// BytesToResponse reads a response to req from b.
func BytesToResponse(b []byte, req *http.Request) (*http.Response, error) {
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), req)
}

// writeHeaders writes h followed by the blank line that ends the header section.
// Framing headers are replaced by a Content-Length matching the body. A declared
// length without a body (HEAD, 304) is kept as it is.
func writeHeaders(buf *bytes.Buffer, h http.Header, length int) {
	h = h.Clone()
	if h == nil {
		h = http.Header{}
	}
	declared := h.Get("Content-Length")
	h.Del("Content-Length")
	h.Del("Transfer-Encoding")
	h.Write(buf)
	if length > 0 {
		buf.WriteString("Content-Length: " + strconv.Itoa(length) + "\r\n")
	} else if declared != "" {
		buf.WriteString("Content-Length: " + declared + "\r\n")
	}
	buf.WriteString("\r\n")
}

func readBody(rc io.ReadCloser) ([]byte, error) {
	if rc == nil || rc == http.NoBody {
		return nil, nil
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
