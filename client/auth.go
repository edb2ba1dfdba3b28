package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/jrsteele09/flowcraft-client/authmodel"
	"github.com/jrsteele09/flowcraft-client/sessions"
	"github.com/jrsteele09/flowcraft-client/users"
)

// Login exchanges credentials for a token pair, stores it, then loads the
// user's profile with the new access token. The session is Authenticated only
// once both steps succeed; a failed profile fetch rolls the tokens back.
func (c *Client) Login(ctx context.Context, email, password string) (*users.Profile, error) {
	c.session.SetLoading(true)
	defer c.session.SetLoading(false)

	payload, err := marshalBody(authmodel.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, http.MethodPost, routeLogin, payload, "")
	if err != nil {
		return nil, err
	}
	if isCredentialsRejection(resp.StatusCode) {
		return nil, invalidCredentials(errorMessage(resp.Body))
	}
	if !isSuccess(resp.StatusCode) {
		return nil, newServerError(resp.StatusCode, resp.Body)
	}

	var tokens authmodel.TokenResponse
	if err := resp.Decode(&tokens); err != nil {
		return nil, err
	}
	if !tokens.Complete() {
		return nil, &ServerError{StatusCode: resp.StatusCode, Message: "login response is missing a token", Body: resp.Body}
	}

	// never pair the new tokens with a previous user's profile
	c.session.SetUser(nil)
	c.session.SetToken(tokens.Token(c.now()))

	profile, err := c.fetchProfile(ctx, tokens.AccessToken)
	if err != nil {
		c.session.Clear()
		c.logger.Warn().Err(err).Msg("Login: profile fetch failed, tokens rolled back")
		return nil, err
	}
	c.session.SetUser(profile)

	c.logger.Info().Str("user_id", profile.ID).Msg("Logged in")
	return profile, nil
}

func isCredentialsRejection(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// Logout clears the session and notifies its listeners, which drop any
// state derived from the old session. It never fails and makes no network call.
func (c *Client) Logout() {
	c.session.ClearWithCause(sessions.CauseLogout)
	c.logger.Info().Msg("Logged out")
}

// CheckSession validates a token left by a previous process. On success the
// profile is cached and the session is Authenticated. On an invalid token or
// any error the session is cleared. No refresh is attempted.
func (c *Client) CheckSession(ctx context.Context) bool {
	accessToken, ok := c.session.AccessToken()
	if !ok {
		c.session.Clear()
		return false
	}

	c.session.SetLoading(true)
	defer c.session.SetLoading(false)

	if err := c.validateToken(ctx, accessToken); err != nil {
		c.logger.Info().Err(err).Msg("Stored session is not valid")
		c.session.ClearWithCause(sessions.CauseExpired)
		return false
	}

	profile, err := c.fetchProfile(ctx, accessToken)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Stored session: profile fetch failed")
		c.session.ClearWithCause(sessions.CauseExpired)
		return false
	}
	c.session.SetUser(profile)
	return true
}

var errTokenInvalid = errors.New("token reported invalid")

func (c *Client) validateToken(ctx context.Context, accessToken string) error {
	resp, err := c.send(ctx, http.MethodPost, routeTestToken, nil, accessToken)
	if err != nil {
		return err
	}
	if !isSuccess(resp.StatusCode) {
		return newServerError(resp.StatusCode, resp.Body)
	}

	var validation authmodel.TokenValidation
	if err := resp.Decode(&validation); err != nil {
		return err
	}
	if !validation.Valid {
		return errTokenInvalid
	}
	return nil
}

// fetchProfile loads GET /auth/profile with an explicit token. It has no
// refresh path of its own.
func (c *Client) fetchProfile(ctx context.Context, accessToken string) (*users.Profile, error) {
	resp, err := c.send(ctx, http.MethodGet, routeProfile, nil, accessToken)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return nil, newServerError(resp.StatusCode, resp.Body)
	}

	var profile users.Profile
	if err := resp.Decode(&profile); err != nil {
		return nil, err
	}
	if profile.ID == "" {
		return nil, &ServerError{StatusCode: resp.StatusCode, Message: "profile response has no id", Body: resp.Body}
	}
	return &profile, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, req authmodel.RegisterRequest) (*users.Profile, error) {
	payload, err := marshalBody(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, http.MethodPost, routeRegister, payload, "")
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return nil, newServerError(resp.StatusCode, resp.Body)
	}

	var profile users.Profile
	if err := resp.Decode(&profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Profile reloads the current user's profile through Request and caches it.
func (c *Client) Profile(ctx context.Context) (*users.Profile, error) {
	var profile users.Profile
	if err := c.Do(ctx, http.MethodGet, routeProfile, nil, &profile); err != nil {
		return nil, err
	}
	c.session.SetUser(&profile)
	return &profile, nil
}

// UpdateProfile changes the current user's profile and caches the result.
func (c *Client) UpdateProfile(ctx context.Context, update users.ProfileUpdate) (*users.Profile, error) {
	var profile users.Profile
	if err := c.Do(ctx, http.MethodPut, routeProfile, update, &profile); err != nil {
		return nil, err
	}
	c.session.SetUser(&profile)
	return &profile, nil
}
