package client

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jrsteele09/flowcraft-client/authmodel"
)

// Response is a completed 2xx response with its body already read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals a JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if v == nil || len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// errorMessage pulls "detail" out of a FlowCraft error body. Anything else
// (validation error lists, HTML from a proxy) falls back to the raw body.
func errorMessage(body []byte) string {
	var errResp authmodel.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Detail != "" {
		return errResp.Detail
	}
	const maxRaw = 512
	if len(body) > maxRaw {
		return string(body[:maxRaw])
	}
	return string(body)
}

func newServerError(status int, body []byte) *ServerError {
	return &ServerError{
		StatusCode: status,
		Message:    errorMessage(body),
		Body:       body,
	}
}
