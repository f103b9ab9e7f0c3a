// Package model defines shared types for the proxy.
package model

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// BodyKind tags which variant a Body holds.
type BodyKind int

const (
	BodyEmpty BodyKind = iota
	BodyRaw
	BodyParsed
)

// Body is an inbound request payload: nothing, raw bytes, or an already
// decoded value that is sent upstream as JSON.
type Body struct {
	kind   BodyKind
	raw    []byte
	parsed any
}

// EmptyBody returns a Body with no payload.
func EmptyBody() Body { return Body{} }

// RawBody wraps b. A nil or zero-length slice yields an empty Body.
func RawBody(b []byte) Body {
	if len(b) == 0 {
		return Body{}
	}
	return Body{kind: BodyRaw, raw: b}
}

// ParsedBody wraps a decoded value. A nil value yields an empty Body.
func ParsedBody(v any) Body {
	if v == nil {
		return Body{}
	}
	return Body{kind: BodyParsed, parsed: v}
}

// Kind reports the variant held by b.
func (b Body) Kind() BodyKind { return b.kind }

// IsEmpty reports whether b carries no payload.
func (b Body) IsEmpty() bool { return b.kind == BodyEmpty }

// Encode returns the bytes to put on the wire. Raw payloads pass through
// unchanged and parsed values are JSON-encoded.
func (b Body) Encode() ([]byte, error) {
	switch b.kind {
	case BodyRaw:
		return b.raw, nil
	case BodyParsed:
		data, err := json.Marshal(b.parsed)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		return data, nil
	default:
		return nil, nil
	}
}

// InboundRequest is a client request received under the proxy prefix.
type InboundRequest struct {
	Ctx    context.Context
	Method string
	RawURL string // path plus optional "?query", as received
	Header http.Header
	Body   Body
}

// OutboundRequest is the rewritten request sent to the upstream.
type OutboundRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// UpstreamResponse is the fully read upstream reply.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ProxyResponse is what gets written back to the client.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	JSON       bool
}

// ErrorBody is the JSON shape of every error produced by the proxy itself.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
