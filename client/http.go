package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	headerUserAgent   = "User-Agent"
	headerRequestID   = "X-Request-ID"
	contentTypeJSON   = "application/json"
)

// Backend routes, relative to the base URL.
const (
	routeLogin     = "/auth/login"
	routeRegister  = "/auth/register"
	routeProfile   = "/auth/profile"
	routeTestToken = "/auth/test-token"
	routeRefresh   = "/auth/refresh"
)

func marshalBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if raw, ok := body.([]byte); ok {
		return raw, nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return payload, nil
}

// resolve joins path onto the base URL, keeping any query string.
func (c *Client) resolve(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse path %q: %w", path, err)
	}
	joined, err := url.JoinPath(c.baseURL, ref.Path)
	if err != nil {
		return "", fmt.Errorf("failed to build URL: %w", err)
	}
	if ref.RawQuery == "" {
		return joined, nil
	}
	u, err := url.Parse(joined)
	if err != nil {
		return "", fmt.Errorf("failed to build URL: %w", err)
	}
	u.RawQuery = ref.RawQuery
	return u.String(), nil
}

// send performs one HTTP round trip. accessToken, when non-empty, is sent as
// a bearer credential. Any status code is returned as a *Response; only a
// transport failure is an error, and it is always a *NetworkError.
func (c *Client) send(ctx context.Context, method, path string, payload []byte, accessToken string) (*Response, error) {
	reqURL, err := c.resolve(path)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.New().String()
	req.Header.Set(headerUserAgent, c.userAgent)
	req.Header.Set(headerAccept, contentTypeJSON)
	req.Header.Set(headerRequestID, requestID)
	if payload != nil {
		req.Header.Set(headerContentType, contentTypeJSON)
	}
	if accessToken != "" {
		(&oauth2.Token{AccessToken: accessToken, TokenType: "bearer"}).SetAuthHeader(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Str("request_id", requestID).Msg("Request failed")
		return nil, &NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: method + " " + path, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Str("request_id", requestID).
		Bool("authenticated", accessToken != "").
		Msg("Request completed")

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

func isSuccess(status int) bool {
	return status < http.StatusBadRequest
}
