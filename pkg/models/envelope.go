// Package models holds the wire envelopes exchanged with the host.
package models

import "encoding/json"

type ContentType string

const (
	ContentTypeText   ContentType = "text"
	ContentTypeJSON   ContentType = "json"
	ContentTypeBinary ContentType = "binary"
)

func (c ContentType) Valid() bool {
	switch c {
	case ContentTypeText, ContentTypeJSON, ContentTypeBinary:
		return true
	default:
		return false
	}
}

// Readiness lines written once the load phase has finished.
const (
	PipeInitComplete = "PIPE_INIT_COMPLETE"
	LoadingComplete  = "loading complete"
)

// DefaultPipePath is the host-owned FIFO whose presence selects server mode.
const DefaultPipePath = "/tmp/algoout"

// Request is one inbound line in server mode.
type Request struct {
	ContentType string          `json:"content_type"`
	Data        json.RawMessage `json:"data"`
}

type Metadata struct {
	ContentType ContentType `json:"content_type"`
}

// Response is the success envelope. Result is serialized structurally, so
// binary results must already be base64 text by the time they land here.
type Response struct {
	Result   any      `json:"result"`
	Metadata Metadata `json:"metadata"`
}

type ErrorBody struct {
	Message    string `json:"message"`
	Stacktrace string `json:"stacktrace"`
	ErrorType  string `json:"error_type"`
}

// ErrorResponse is the failure envelope. It never carries a result.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
