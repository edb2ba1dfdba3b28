package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jrsteele09/flowcraft-client/authmodel"
	"github.com/jrsteele09/flowcraft-client/sessions"
)

var errNoRefreshToken = errors.New("no refresh token stored")

// Request executes an authenticated call. body is JSON encoded unless it is
// already a []byte.
//
// A 401 triggers at most one refresh and at most one retry of the original
// call. If the refresh cannot be made or fails for any reason (including a
// network failure) the session is cleared and ErrSessionExpired is returned.
// Every other failure is returned unchanged and leaves the session alone.
//
// Concurrent calls that see the same expired token refresh independently.
func (c *Client) Request(ctx context.Context, method, path string, body any) (*Response, error) {
	payload, err := marshalBody(body)
	if err != nil {
		return nil, err
	}
	resp, err := c.request(ctx, method, path, payload, false)
	c.metrics.observeRequest(method, err)
	return resp, err
}

// Do is Request followed by decoding the JSON response into result.
func (c *Client) Do(ctx context.Context, method, path string, body, result any) error {
	resp, err := c.Request(ctx, method, path, body)
	if err != nil {
		return err
	}
	return resp.Decode(result)
}

func (c *Client) request(ctx context.Context, method, path string, payload []byte, retried bool) (*Response, error) {
	accessToken, _ := c.session.AccessToken()

	resp, err := c.send(ctx, method, path, payload, accessToken)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		if !isSuccess(resp.StatusCode) {
			return nil, newServerError(resp.StatusCode, resp.Body)
		}
		return resp, nil
	}

	// The retry's outcome is final, 401 included.
	if retried {
		return nil, newServerError(resp.StatusCode, resp.Body)
	}

	if err := c.refresh(ctx); err != nil {
		c.expire(path, err)
		return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	return c.request(ctx, method, path, payload, true)
}

// refresh makes one POST /auth/refresh attempt and stores the rotated pair.
// It is never retried.
func (c *Client) refresh(ctx context.Context) (err error) {
	defer func() { c.metrics.observeRefresh(err) }()

	refreshToken, ok := c.session.RefreshToken()
	if !ok {
		return errNoRefreshToken
	}

	payload, err := marshalBody(authmodel.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}

	// the refresh token is the sole credential on this call
	resp, err := c.send(ctx, http.MethodPost, routeRefresh, payload, "")
	if err != nil {
		return err
	}
	if !isSuccess(resp.StatusCode) {
		return newServerError(resp.StatusCode, resp.Body)
	}

	var tokens authmodel.TokenResponse
	if err := resp.Decode(&tokens); err != nil {
		return err
	}
	if !tokens.Complete() {
		return errors.New("refresh response is missing a token")
	}

	c.session.SetToken(tokens.Token(c.now()))
	c.logger.Debug().Msg("Access token refreshed")
	return nil
}

func (c *Client) expire(path string, cause error) {
	c.session.ClearWithCause(sessions.CauseExpired)
	c.metrics.sessionExpired.Inc()
	c.logger.Warn().Err(cause).Str("path", path).Msg("Session expired, refresh failed")
}
