package core

import (
	"errors"
	"strings"
	"testing"

	httpmessage "github.com/always-cache/charset-converter/pkg/http-message"
)

func message(body string, headers ...string) httpmessage.Message {
	return httpmessage.Message{Headers: headers, Body: []byte(body)}
}

func lines(t *testing.T, raw []byte) []string {
	t.Helper()
	msg, err := httpmessage.Parse(raw)
	if err != nil {
		t.Fatalf("Could not parse %q: %v", raw, err)
	}
	return msg.Headers
}

func assertLines(t *testing.T, got []string, want ...string) {
	t.Helper()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("Headers are\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestInboundRewritesHeaders(t *testing.T) {
	out, err := ProcessInbound(message("hello",
		"HTTP/1.1 200 OK",
		"Content-Type: text/html; charset=ISO-8859-1",
		"Content-Length: 5",
	))
	if err != nil {
		t.Fatalf("ProcessInbound() error = %v", err)
	}
	want := "HTTP/1.1 200 OK\r\n" +
		"Content-Length: 5\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"X-Original-Charset: ISO-8859-1\r\n" +
		"\r\n" +
		"hello"
	if string(out) != want {
		t.Fatalf("ProcessInbound() =\n%q\nwant\n%q", out, want)
	}
}

func TestInboundEncodesBodyInDeclaredCharset(t *testing.T) {
	out, err := ProcessInbound(message("café",
		"HTTP/1.1 200 OK",
		"Content-Type: text/plain; charset=iso-8859-1",
	))
	if err != nil {
		t.Fatalf("ProcessInbound() error = %v", err)
	}
	msg, _ := httpmessage.Parse(out)
	if string(msg.Body) != "caf\xe9" {
		t.Fatalf("Body is %q", msg.Body)
	}
	assertLines(t, msg.Headers,
		"HTTP/1.1 200 OK",
		"Content-Type: text/plain; charset=utf-8",
		"X-Original-Charset: iso-8859-1",
		"Content-Length: 4",
	)
}

func TestInboundReplacesEveryTokenOccurrence(t *testing.T) {
	out, err := ProcessInbound(message("",
		"HTTP/1.1 200 OK",
		"Content-Type: text/x-ISO-8859-1; charset=ISO-8859-1",
	))
	if err != nil {
		t.Fatalf("ProcessInbound() error = %v", err)
	}
	assertLines(t, lines(t, out),
		"HTTP/1.1 200 OK",
		"Content-Type: text/x-utf-8; charset=utf-8",
		"X-Original-Charset: ISO-8859-1",
	)
}

func TestInboundWithoutContentType(t *testing.T) {
	msg := message("hello", "HTTP/1.1 200 OK", "Server: Test")
	out, err := ProcessInbound(msg)
	if err != nil || out != nil {
		t.Fatalf("ProcessInbound() = %q, %v", out, err)
	}
	assertLines(t, msg.Headers, "HTTP/1.1 200 OK", "Server: Test")
}

func TestInboundWithoutCharset(t *testing.T) {
	out, err := ProcessInbound(message("{}", "HTTP/1.1 200 OK", "Content-Type: application/json"))
	if err != nil || out != nil {
		t.Fatalf("ProcessInbound() = %q, %v", out, err)
	}
}

func TestInboundContentTypeIsCaseSensitive(t *testing.T) {
	out, err := ProcessInbound(message("hi", "HTTP/1.1 200 OK", "content-type: text/html; charset=ISO-8859-1"))
	if err != nil || out != nil {
		t.Fatalf("ProcessInbound() = %q, %v", out, err)
	}
}

func TestInboundUnsupportedCharset(t *testing.T) {
	msg := message("hello", "HTTP/1.1 200 OK", "Content-Type: text/html; charset=bogus-9999")
	out, err := ProcessInbound(msg)
	if !errors.Is(err, ErrUnsupportedEncoding) {
		t.Fatalf("ProcessInbound() error = %v", err)
	}
	if out != nil {
		t.Fatalf("ProcessInbound() = %q", out)
	}
	assertLines(t, msg.Headers, "HTTP/1.1 200 OK", "Content-Type: text/html; charset=bogus-9999")
}

func TestInboundOnlyFirstContentType(t *testing.T) {
	msg := message("ok",
		"HTTP/1.1 200 OK",
		"Content-Type: text/html; charset=ISO-8859-1",
		"Content-Type: text/plain; charset=ISO-8859-1",
		"Content-Length: 2",
	)
	out, err := ProcessInbound(msg)
	if err != nil {
		t.Fatalf("ProcessInbound() error = %v", err)
	}
	assertLines(t, lines(t, out),
		"HTTP/1.1 200 OK",
		"Content-Type: text/plain; charset=ISO-8859-1",
		"Content-Length: 2",
		"Content-Type: text/html; charset=utf-8",
		"X-Original-Charset: ISO-8859-1",
	)
	// the input sequence is not touched
	assertLines(t, msg.Headers,
		"HTTP/1.1 200 OK",
		"Content-Type: text/html; charset=ISO-8859-1",
		"Content-Type: text/plain; charset=ISO-8859-1",
		"Content-Length: 2",
	)
}

func TestOutboundRestoresCharset(t *testing.T) {
	out, err := ProcessOutbound(message("hello",
		"POST /form HTTP/1.1",
		"Host: example.com",
		"Content-Type: text/html; charset=utf-8",
		"X-Original-Charset: windows-1252",
		"Content-Length: 5",
	))
	if err != nil {
		t.Fatalf("ProcessOutbound() error = %v", err)
	}
	want := "POST /form HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Content-Length: 5\r\n" +
		"Content-Type: text/html; charset=windows-1252\r\n" +
		"\r\n" +
		"hello"
	if string(out) != want {
		t.Fatalf("ProcessOutbound() =\n%q\nwant\n%q", out, want)
	}
}

func TestOutboundReplacesFirstUTF8Only(t *testing.T) {
	out, err := ProcessOutbound(message("",
		"HTTP/1.1 200 OK",
		"X-Original-Charset: ISO-8859-1",
		"Content-Type: text/plain; charset=utf-8; profile=utf-8",
	))
	if err != nil {
		t.Fatalf("ProcessOutbound() error = %v", err)
	}
	assertLines(t, lines(t, out),
		"HTTP/1.1 200 OK",
		"Content-Type: text/plain; charset=ISO-8859-1; profile=utf-8",
	)
}

func TestInboundLegacyBodyBecomesQuestionMarks(t *testing.T) {
	out, err := ProcessInbound(message("caf\xe9 \xe0 la carte",
		"HTTP/1.1 200 OK",
		"Content-Type: text/plain; charset=ISO-8859-1",
	))
	if err != nil {
		t.Fatalf("ProcessInbound() error = %v", err)
	}
	msg, _ := httpmessage.Parse(out)
	if string(msg.Body) != "caf? ? la carte" {
		t.Fatalf("Body is %q", msg.Body)
	}
}

func TestOutboundEncodesBody(t *testing.T) {
	out, err := ProcessOutbound(message("naïve",
		"HTTP/1.1 200 OK",
		"Content-Type: text/plain; charset=utf-8",
		"X-Original-Charset: ISO-8859-1",
	))
	if err != nil {
		t.Fatalf("ProcessOutbound() error = %v", err)
	}
	msg, _ := httpmessage.Parse(out)
	if string(msg.Body) != "na\xefve" {
		t.Fatalf("Body is %q", msg.Body)
	}
}

func TestOutboundWithoutOriginalCharset(t *testing.T) {
	out, err := ProcessOutbound(message("hello", "HTTP/1.1 200 OK", "Content-Type: text/html; charset=utf-8"))
	if err != nil || out != nil {
		t.Fatalf("ProcessOutbound() = %q, %v", out, err)
	}
}

func TestOutboundWithoutContentType(t *testing.T) {
	out, err := ProcessOutbound(message("hello", "HTTP/1.1 200 OK", "X-Original-Charset: ISO-8859-1"))
	if !errors.Is(err, ErrMissingExpectedHeader) {
		t.Fatalf("ProcessOutbound() error = %v", err)
	}
	if out != nil {
		t.Fatalf("ProcessOutbound() = %q", out)
	}
}

func TestOutboundUnsupportedCharset(t *testing.T) {
	out, err := ProcessOutbound(message("hello",
		"HTTP/1.1 200 OK",
		"Content-Type: text/html; charset=utf-8",
		"X-Original-Charset: bogus-9999",
	))
	if !errors.Is(err, ErrUnsupportedEncoding) || out != nil {
		t.Fatalf("ProcessOutbound() = %q, %v", out, err)
	}
}

// TestRoundTrip checks that an inbound then outbound pass gives back the declared
// charset. Bodies only come back byte-identical when they are valid UTF-8 that the
// charset can represent unchanged, which holds for ASCII.
func TestRoundTrip(t *testing.T) {
	body := "<html><body>Hello, World!</body></html>"
	for _, charset := range []string{"ISO-8859-1", "windows-1252", "KOI8-R", "Shift_JIS", "utf-8"} {
		t.Run(charset, func(t *testing.T) {
			in, err := ProcessInbound(message(body,
				"HTTP/1.1 200 OK",
				"Content-Type: text/html; charset="+charset,
			))
			if err != nil || in == nil {
				t.Fatalf("ProcessInbound() = %q, %v", in, err)
			}
			inMsg, err := httpmessage.Parse(in)
			if err != nil {
				t.Fatal(err)
			}
			out, err := ProcessOutbound(inMsg)
			if err != nil || out == nil {
				t.Fatalf("ProcessOutbound() = %q, %v", out, err)
			}
			outMsg, err := httpmessage.Parse(out)
			if err != nil {
				t.Fatal(err)
			}
			if string(outMsg.Body) != body {
				t.Fatalf("Body is %q", outMsg.Body)
			}
			assertLines(t, outMsg.Headers,
				"HTTP/1.1 200 OK",
				"Content-Length: 39",
				"Content-Type: text/html; charset="+charset,
			)
		})
	}
}
