package charsetconverter

import (
	"github.com/always-cache/charset-converter/core"
	httpmessage "github.com/always-cache/charset-converter/pkg/http-message"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Direction is the direction of an intercepted message.
type Direction int

const (
	Request Direction = iota
	Response
)

func (d Direction) String() string {
	if d == Request {
		return "request"
	}
	return "response"
}

// Point is where a message was intercepted.
//
// The proxy side sees requests before the tool does and responses after the tool
// is done with them. The tool side sees requests the tool sends onward and the
// responses it gets back.
type Point int

const (
	ProxySide Point = iota
	ToolSide
)

func (p Point) String() string {
	if p == ProxySide {
		return "proxy"
	}
	return "tool"
}

// State tells whether a message was replaced.
type State int

const (
	Unmodified State = iota
	Rewritten
)

func (s State) String() string {
	if s == Rewritten {
		return "rewritten"
	}
	return "unmodified"
}

// Converter routes intercepted messages to the inbound or outbound transform.
// It holds no mutable state and is safe for concurrent use.
type Converter struct {
	log zerolog.Logger
}

// NewConverter returns a converter that reports failures to logger.
// The global zerolog logger is used if logger is nil.
func NewConverter(logger *zerolog.Logger) Converter {
	if logger == nil {
		return Converter{log: log.Logger}
	}
	return Converter{log: *logger}
}

// Process converts one raw message intercepted at point.
//
// Messages entering the tool's view (proxy-side requests, tool-side responses) are
// relabelled to utf-8; messages leaving it are restored to their original charset.
// Every failure is logged and leaves the message unmodified.
func (c Converter) Process(point Point, dir Direction, raw []byte) (out []byte, state State) {
	log := c.log.With().Str("point", point.String()).Str("direction", dir.String()).Logger()
	out, state = raw, Unmodified

	defer func() {
		if err := recover(); err != nil {
			log.WithLevel(zerolog.ErrorLevel).Interface("error", err).Msg("Panic while converting message")
			out, state = raw, Unmodified
		}
	}()

	msg, err := httpmessage.Parse(raw)
	if err != nil {
		log.Error().Err(err).Msg("Could not parse message")
		return
	}

	var rebuilt []byte
	if entersTool(point, dir) {
		rebuilt, err = core.ProcessInbound(msg)
	} else {
		rebuilt, err = core.ProcessOutbound(msg)
	}
	if err != nil {
		log.Error().Err(err).Msg("Could not convert message")
		return
	}
	if rebuilt == nil {
		log.Trace().Msg("Nothing to convert")
		return
	}

	log.Trace().Msgf("Converted message (%d bytes)", len(rebuilt))
	return rebuilt, Rewritten
}

// OnProxyMessage handles a message intercepted at the proxy side.
// It returns the replacement bytes, or nil if the original should be kept.
func (c Converter) OnProxyMessage(dir Direction, raw []byte) []byte {
	return replacement(c.Process(ProxySide, dir, raw))
}

// OnToolMessage handles a message intercepted at the tool side.
// It returns the replacement bytes, or nil if the original should be kept.
func (c Converter) OnToolMessage(dir Direction, raw []byte) []byte {
	return replacement(c.Process(ToolSide, dir, raw))
}

func entersTool(point Point, dir Direction) bool {
	return (point == ProxySide && dir == Request) || (point == ToolSide && dir == Response)
}

func replacement(out []byte, state State) []byte {
	if state != Rewritten {
		return nil
	}
	return out
}
