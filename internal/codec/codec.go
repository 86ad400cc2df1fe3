// Package codec converts between the line-oriented wire envelopes and the
// values handed to and returned from an algorithm.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"

	"algoadk/go-runtime/pkg/models"
)

type InvalidContentTypeError struct {
	ContentType string
}

func (e *InvalidContentTypeError) Error() string {
	return "Invalid content_type: " + e.ContentType
}

type MalformedRequestError struct {
	Err error
}

func (e *MalformedRequestError) Error() string {
	if e.Err == nil {
		return "malformed request"
	}
	return "malformed request: " + e.Err.Error()
}

func (e *MalformedRequestError) Unwrap() error {
	return e.Err
}

// ParseRequestLine decodes exactly one request object from a single input line.
func ParseRequestLine(line []byte) (models.Request, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	var req models.Request
	if err := dec.Decode(&req); err != nil {
		return models.Request{}, &MalformedRequestError{Err: err}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return models.Request{}, &MalformedRequestError{Err: errors.New("unexpected trailing json tokens")}
	}
	return req, nil
}

// PayloadFromRequest returns the value an apply call receives for req.
// text and json pass data through unchanged; binary is base64 decoded.
// JSON numbers arrive as json.Number so they encode back exactly.
func PayloadFromRequest(req models.Request) (any, error) {
	switch models.ContentType(req.ContentType) {
	case models.ContentTypeText, models.ContentTypeJSON:
		if len(req.Data) == 0 {
			return nil, nil
		}
		dec := json.NewDecoder(bytes.NewReader(req.Data))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, &MalformedRequestError{Err: err}
		}
		return v, nil
	case models.ContentTypeBinary:
		var encoded string
		if err := json.Unmarshal(req.Data, &encoded); err != nil {
			return nil, &MalformedRequestError{Err: errors.New("binary data must be a base64 string")}
		}
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, &MalformedRequestError{Err: errors.Wrap(err, "decode binary data")}
		}
		return raw, nil
	default:
		return nil, &InvalidContentTypeError{ContentType: req.ContentType}
	}
}

// Classify picks the content type for an apply result. Byte slices are
// checked before strings so binary results always round-trip as binary.
// Only the exact types []byte and string are binary and text; named types
// such as `type Label string` or `type Blob []byte` are json and encode the
// way encoding/json renders them (a JSON string, base64 for byte slices).
func Classify(v any) models.ContentType {
	switch v.(type) {
	case []byte:
		return models.ContentTypeBinary
	case string:
		return models.ContentTypeText
	default:
		return models.ContentTypeJSON
	}
}

// ResponseFor builds the success envelope for v, classifying it once.
func ResponseFor(v any) models.Response {
	ct := Classify(v)
	result := v
	if ct == models.ContentTypeBinary {
		result = base64.StdEncoding.EncodeToString(v.([]byte))
	}
	return models.Response{
		Result:   result,
		Metadata: models.Metadata{ContentType: ct},
	}
}

// MarshalResponse renders the success envelope for v as one line of JSON.
func MarshalResponse(v any) (string, error) {
	return marshalLine(ResponseFor(v))
}

// MarshalError renders a failure envelope as one line of JSON.
func MarshalError(resp models.ErrorResponse) (string, error) {
	return marshalLine(resp)
}

func marshalLine(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", errors.Wrap(err, "encode response")
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
