package charsetconverter

import (
	"net/http"

	serializer "github.com/always-cache/charset-converter/pkg/message-serializer"
)

// Transport intercepts traffic at the tool side.
// Requests the tool sends get their original charset back before reaching Base,
// and responses from Base are converted to utf-8 before the tool sees them.
type Transport struct {
	// Transport to the origin. http.DefaultTransport is used if nil.
	Base http.RoundTripper
	// Converter used for both directions.
	Converter Converter
	// Optional function called with every exchange as the tool saw it:
	// the request before restoration and the response after conversion.
	Observe func(req *http.Request, rawRequest, rawResponse []byte, status int)
}

// RoundTrip implements the http.RoundTripper interface.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	log := t.Converter.log

	rawReq, err := serializer.RequestToBytes(req)
	if err != nil {
		return nil, err
	}
	outReq := req
	if raw := t.Converter.OnToolMessage(Request, rawReq); raw != nil {
		if converted, err := serializer.BytesToRequest(raw, req); err != nil {
			log.Error().Err(err).Msg("Could not read converted request")
		} else {
			outReq = converted
		}
	}

	res, err := base.RoundTrip(outReq)
	if err != nil {
		return nil, err
	}

	rawRes, err := serializer.ResponseToBytes(res)
	if err != nil {
		return nil, err
	}
	if raw := t.Converter.OnToolMessage(Response, rawRes); raw != nil {
		if converted, err := serializer.BytesToResponse(raw, req); err != nil {
			log.Error().Err(err).Msg("Could not read converted response")
		} else {
			res, rawRes = converted, raw
		}
	}
	// the tool gets the response to the request it sent
	res.Request = req

	if t.Observe != nil {
		t.Observe(req, rawReq, rawRes, res.StatusCode)
	}
	return res, nil
}
