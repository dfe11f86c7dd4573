package charsetconverter

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
}

const (
	latin1Response = "HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/html; charset=ISO-8859-1\r\n" +
		"Content-Length: 5\r\n" +
		"\r\n" +
		"hello"
	convertedResponse = "HTTP/1.1 200 OK\r\n" +
		"Content-Length: 5\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"X-Original-Charset: ISO-8859-1\r\n" +
		"\r\n" +
		"hello"
	restoredResponse = "HTTP/1.1 200 OK\r\n" +
		"Content-Length: 5\r\n" +
		"Content-Type: text/html; charset=ISO-8859-1\r\n" +
		"\r\n" +
		"hello"
	latin1Request = "POST /form HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Content-Type: application/x-www-form-urlencoded; charset=ISO-8859-1\r\n" +
		"Content-Length: 5\r\n" +
		"\r\n" +
		"a=b&c"
	convertedRequest = "POST /form HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Content-Length: 5\r\n" +
		"Content-Type: application/x-www-form-urlencoded; charset=utf-8\r\n" +
		"X-Original-Charset: ISO-8859-1\r\n" +
		"\r\n" +
		"a=b&c"
	restoredRequest = "POST /form HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Content-Length: 5\r\n" +
		"Content-Type: application/x-www-form-urlencoded; charset=ISO-8859-1\r\n" +
		"\r\n" +
		"a=b&c"
)

func testConverter() (Converter, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := zerolog.New(buf).Level(zerolog.DebugLevel)
	return NewConverter(&logger), buf
}

func TestRouting(t *testing.T) {
	tests := []struct {
		name  string
		point Point
		dir   Direction
		in    string
		want  string
	}{
		{"proxy request is converted", ProxySide, Request, latin1Request, convertedRequest},
		{"tool request is restored", ToolSide, Request, convertedRequest, restoredRequest},
		{"tool response is converted", ToolSide, Response, latin1Response, convertedResponse},
		{"proxy response is restored", ProxySide, Response, convertedResponse, restoredResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, logs := testConverter()
			out, state := c.Process(tt.point, tt.dir, []byte(tt.in))
			if state != Rewritten {
				t.Fatalf("State is %s", state)
			}
			if string(out) != tt.want {
				t.Fatalf("Output is\n%q\nwant\n%q", out, tt.want)
			}
			if logs.Len() != 0 {
				t.Fatalf("Unexpected logs: %s", logs)
			}
		})
	}
}

func TestOutboundPointsIgnoreUnconvertedMessages(t *testing.T) {
	c, _ := testConverter()
	if out := c.OnProxyMessage(Response, []byte(latin1Response)); out != nil {
		t.Fatalf("Proxy response replaced with %q", out)
	}
	if out := c.OnToolMessage(Request, []byte(latin1Request)); out != nil {
		t.Fatalf("Tool request replaced with %q", out)
	}
}

func TestInboundPointsIgnoreConvertedMarker(t *testing.T) {
	c, _ := testConverter()
	raw := []byte("HTTP/1.1 200 OK\r\nX-Original-Charset: ISO-8859-1\r\n\r\n")
	if out := c.OnToolMessage(Response, raw); out != nil {
		t.Fatalf("Tool response replaced with %q", out)
	}
}

func TestCallbacksReturnReplacement(t *testing.T) {
	c, _ := testConverter()
	if out := c.OnProxyMessage(Request, []byte(latin1Request)); string(out) != convertedRequest {
		t.Fatalf("Proxy request replaced with %q", out)
	}
	if out := c.OnToolMessage(Response, []byte(latin1Response)); string(out) != convertedResponse {
		t.Fatalf("Tool response replaced with %q", out)
	}
}

func TestUnsupportedCharsetIsLogged(t *testing.T) {
	c, logs := testConverter()
	raw := []byte("HTTP/1.1 200 OK\r\nContent-Type: text/html; charset=bogus-9999\r\n\r\nhello")
	out, state := c.Process(ToolSide, Response, raw)
	if state != Unmodified || !bytes.Equal(out, raw) {
		t.Fatalf("Message changed: %s %q", state, out)
	}
	if !strings.Contains(logs.String(), "unsupported encoding") {
		t.Fatalf("Logs are %s", logs)
	}
	if !strings.Contains(logs.String(), `"level":"error"`) {
		t.Fatalf("Logs are %s", logs)
	}
}

func TestMissingContentTypeIsLogged(t *testing.T) {
	c, logs := testConverter()
	raw := []byte("HTTP/1.1 200 OK\r\nX-Original-Charset: ISO-8859-1\r\n\r\nhello")
	if out := c.OnProxyMessage(Response, raw); out != nil {
		t.Fatalf("Message replaced with %q", out)
	}
	if !strings.Contains(logs.String(), "missing Content-Type header") {
		t.Fatalf("Logs are %s", logs)
	}
}

func TestEmptyMessageIsLogged(t *testing.T) {
	c, logs := testConverter()
	if out := c.OnProxyMessage(Request, nil); out != nil {
		t.Fatalf("Message replaced with %q", out)
	}
	if !strings.Contains(logs.String(), "Could not parse message") {
		t.Fatalf("Logs are %s", logs)
	}
}

func TestConvertedMessagesAreIndependent(t *testing.T) {
	c, _ := testConverter()
	done := make(chan []byte)
	for i := 0; i < 8; i++ {
		go func() {
			done <- c.OnToolMessage(Response, []byte(latin1Response))
		}()
	}
	for i := 0; i < 8; i++ {
		if out := <-done; string(out) != convertedResponse {
			t.Fatalf("Output is %q", out)
		}
	}
}
