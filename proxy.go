package charsetconverter

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/always-cache/charset-converter/history"
	headerlines "github.com/always-cache/charset-converter/pkg/header-lines"
	httpmessage "github.com/always-cache/charset-converter/pkg/http-message"
	serializer "github.com/always-cache/charset-converter/pkg/message-serializer"
	responsetransformer "github.com/always-cache/charset-converter/pkg/response-transformer"
	tee "github.com/always-cache/charset-converter/pkg/response-writer-tee"

	"github.com/rs/zerolog"
)

type Config struct {
	// URL of the origin server.
	// Origins with paths are not supported.
	OriginURL url.URL
	// Hostname to use for HTTP requests and TLS negotiation.
	// Use if needed if e.g. the origin URL is just an IP address.
	OriginHost string
	// Transport to the origin. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Rules the tool applies to converted responses.
	Rules responsetransformer.Rules
	// Optional storage for the exchanges the tool sees.
	History history.Store
}

// Proxy is a reverse proxy with charset conversion at both interception points.
// Everything between the two points (rules, history) works on utf-8 messages.
type Proxy struct {
	converter    Converter
	history      history.Store
	log          zerolog.Logger
	reverseproxy httputil.ReverseProxy
}

// CreateProxy initializes the proxy for the configured origin.
func CreateProxy(config Config) *Proxy {
	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}

	// create a child logger and add defaults
	logger = logger.With().
		Str("origin", config.OriginURL.String()).
		Logger()

	p := &Proxy{
		converter: NewConverter(&logger),
		history:   config.History,
		log:       logger,
	}

	host := config.OriginURL.Host
	hostHeader := host
	transport := config.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if config.OriginHost != "" {
		hostHeader = config.OriginHost
		if config.Transport == nil {
			transport = &http.Transport{
				TLSClientConfig: &tls.Config{
					ServerName: config.OriginHost,
				},
			}
		}
	}

	p.reverseproxy = httputil.ReverseProxy{
		Director: createDirector(config.OriginURL.Scheme, host, hostHeader),
		Transport: &Transport{
			Base:      transport,
			Converter: p.converter,
			Observe:   p.record,
		},
		ModifyResponse: config.Rules.Apply,
		ErrorHandler:   p.handleError,
	}

	return p
}

// ServeHTTP implements the http.Handler interface.
// This is the proxy-side interception point.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := p.log.With().Str("method", r.Method).Str("url", r.URL.String()).Logger()
	log.Trace().Interface("headers", r.Header).Msg("Incoming request")

	raw, err := serializer.RequestToBytes(r)
	if err != nil {
		log.Error().Err(err).Msg("Could not read request")
		http.Error(w, "Could not read request", http.StatusBadRequest)
		return
	}
	if converted := p.converter.OnProxyMessage(Request, raw); converted != nil {
		if req, err := serializer.BytesToRequest(converted, r); err != nil {
			log.Error().Err(err).Msg("Could not read converted request")
		} else {
			r = req
		}
	}

	rs := tee.NewResponseSaver()
	p.reverseproxy.ServeHTTP(rs, r)

	rawRes := rs.Response()
	if converted := p.converter.OnProxyMessage(Response, rawRes); converted != nil {
		rawRes = converted
	}
	res, err := serializer.BytesToResponse(rawRes, r)
	if err != nil {
		log.Error().Err(err).Msg("Could not read response")
		http.Error(w, "Could not read response", http.StatusBadGateway)
		return
	}

	bytesWritten := send(w, res, log)
	log.Debug().
		Int("status", res.StatusCode).
		Int64("bytes", bytesWritten).
		Dur("duration", time.Since(rs.CreatedAt)).
		Msg("Sending response to client")
}

// record stores an exchange the way the tool saw it.
func (p *Proxy) record(req *http.Request, rawRequest, rawResponse []byte, status int) {
	if p.history == nil {
		return
	}
	e := history.NewEntry(req.Method, req.URL.String(), status)
	e.Request = rawRequest
	e.Response = rawResponse
	if info, err := httpmessage.Analyze(rawResponse); err == nil {
		if line, i := headerlines.Find(info.Headers, headerlines.OriginalCharsetPrefix); i >= 0 {
			e.OriginalCharset = headerlines.Value(line, headerlines.OriginalCharsetPrefix)
		}
	}
	if err := p.history.Put(e); err != nil {
		p.log.Error().Err(err).Msg("Could not record exchange")
	}
}

func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	p.log.Error().Err(err).Str("url", r.URL.String()).Msg("Error connecting to origin")
	http.Error(w, "Could not connect to origin", http.StatusBadGateway)
}

func send(w http.ResponseWriter, res *http.Response, log zerolog.Logger) int64 {
	defer res.Body.Close()
	copyHeader(w.Header(), res.Header)
	w.WriteHeader(res.StatusCode)
	bytesWritten, err := io.Copy(w, res.Body)
	if err != nil {
		log.Error().Err(err).Msg("Could not write response body to client")
	}
	return bytesWritten
}

func createDirector(scheme, host, hostHeader string) func(req *http.Request) {
	return func(req *http.Request) {
		req.URL.Scheme = scheme
		req.URL.Host = host
		if hostHeader != "" {
			req.Host = hostHeader
		}
		// bodies must reach the converter uncompressed
		req.Header.Del("Accept-Encoding")
	}
}

func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		// this is a warkaround to remove default headers sent by an upstream proxy
		// some servers do not like the presence of these headers in the downstream request
		if k != "X-Forwarded-For" && k != "X-Forwarded-Proto" && k != "X-Forwarded-Host" {
			for _, v := range vv {
				dst.Add(k, v)
			}
		}
	}
}
