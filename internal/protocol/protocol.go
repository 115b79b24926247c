// Package protocol defines the wire format spoken on a session's control
// socket: newline-delimited JSON, UTF-8, one message per line. Requests
// carry a "type" tag; responses are flat objects without one.
package protocol

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// MaxLineBytes is the hard cap on a single framed line, requests and
// responses alike. A connection that sends a longer line is closed after
// an "oversize" error.
const MaxLineBytes = 1024 * 1024

// Request types.
const (
	TypeGetScrollback = "get_scrollback"
	TypeGetCursor     = "get_cursor"
	TypeGetSize       = "get_size"
	TypeInject        = "inject"
	TypeSubscribe     = "subscribe"
)

// Error kinds reported in ErrorResponse.Error.
const (
	ErrParse       = "parse"
	ErrUnknownType = "unknown_type"
	ErrBadRequest  = "bad_request"
	ErrOversize    = "oversize"
	ErrIO          = "io"
)

// Request is the union of all request fields. Type dispatch happens on the
// Type tag; fields not used by a given type are ignored.
type Request struct {
	Type string `json:"type"`

	// Lines limits get_scrollback to the last N lines. Nil means the
	// full buffer.
	Lines *int `json:"lines,omitempty"`

	// Data is the byte payload for inject.
	Data string `json:"data,omitempty"`
}

// ScrollbackResponse answers get_scrollback.
type ScrollbackResponse struct {
	Lines []string `json:"lines"`
}

// CursorResponse answers get_cursor. Coordinates are 0-indexed.
type CursorResponse struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// SizeResponse answers get_size. Session is the session ID and Pid the
// wrapped child's process ID.
type SizeResponse struct {
	Rows    int    `json:"rows"`
	Cols    int    `json:"cols"`
	Session string `json:"session,omitempty"`
	Pid     int    `json:"pid,omitempty"`
}

// OkResponse acknowledges inject and subscribe.
type OkResponse struct {
	Ok bool `json:"ok"`
}

// ErrorResponse reports a per-message failure. The connection stays open
// except for framing errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StreamFrame is one server-push frame on a subscribed connection.
// Exactly one of Chunk or Dropped is meaningful: a data frame carries
// Chunk (with B64 set when the payload was not valid UTF-8), a loss
// marker carries Dropped > 0.
type StreamFrame struct {
	Chunk   string `json:"chunk,omitempty"`
	B64     bool   `json:"b64,omitempty"`
	Dropped int    `json:"dropped,omitempty"`
}

// NewChunkFrame wraps raw terminal bytes for the wire. Valid UTF-8 is
// sent as-is; anything else is base64-encoded and flagged so the client
// can reassemble the exact byte stream.
func NewChunkFrame(data []byte) StreamFrame {
	if utf8.Valid(data) {
		return StreamFrame{Chunk: string(data)}
	}
	return StreamFrame{Chunk: encodeBase64(data), B64: true}
}

// ParseRequest decodes one request line. The returned error message is
// safe to echo back to the client.
func ParseRequest(line []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Request{}, fmt.Errorf("malformed JSON: %v", err)
	}
	if req.Type == "" {
		return Request{}, fmt.Errorf("missing type field")
	}
	return req, nil
}

// Validate checks type-specific field constraints.
func (r Request) Validate() error {
	switch r.Type {
	case TypeGetScrollback:
		if r.Lines != nil && *r.Lines < 0 {
			return fmt.Errorf("lines must be non-negative")
		}
	case TypeInject:
		if r.Data == "" {
			return fmt.Errorf("inject requires a data field")
		}
	case TypeGetCursor, TypeGetSize, TypeSubscribe:
	default:
		return fmt.Errorf("unknown request type %q", r.Type)
	}
	return nil
}
