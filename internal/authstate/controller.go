package authstate

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/countersign/pkg/esign"
	"github.com/aussiebroadwan/countersign/pkg/slogx"
)

// Controller drives the state Store from user actions and from the token
// lifecycle events its Session reports. It owns purging stored tokens when
// authentication fails.
type Controller struct {
	client  *esign.SDKClient
	session *esign.Session
	state   *Store
}

// NewController builds a Controller with its own Session over tokens.
func NewController(client *esign.SDKClient, tokens esign.TokenStore, state *Store, opts ...esign.SessionOption) *Controller {
	c := &Controller{client: client, state: state}
	c.session = client.NewSession(tokens, c, opts...)
	return c
}

// Session returns the authenticated session the controller observes.
func (c *Controller) Session() *esign.Session { return c.session }

// State returns the state store.
func (c *Controller) State() *Store { return c.state }

// Boot performs the silent refresh the application starts with. No stored
// pair leaves the session anonymous. A failed refresh is not returned; it
// leaves the state in error. An account that cannot be loaded after the
// refresh is returned and also leaves the state in error, so an
// authenticated state always carries its user.
func (c *Controller) Boot(ctx context.Context) error {
	if err := c.session.UpdateToken(ctx); err != nil {
		c.state.Dispatch(AuthErrored{Message: message(err)})
		return err
	}

	if !c.session.HasTokens() {
		c.state.Dispatch(LoggedOut{})
		return nil
	}

	c.session.RefreshTokenRequest(ctx)
	if !c.state.Snapshot().IsAuthenticated {
		return nil
	}

	user, err := c.session.CurrentUser(ctx)
	if err != nil {
		slogx.FromContext(ctx).Warn("failed to load current user", "err", err)
		if clearErr := c.session.ClearTokens(ctx); clearErr != nil {
			slogx.FromContext(ctx).Error("failed to purge tokens", "err", clearErr)
		}
		c.state.Dispatch(AuthErrored{Message: message(err)})
		return fmt.Errorf("load current user: %w", err)
	}

	c.state.Dispatch(RefreshSucceeded{User: user})
	return nil
}

// Login exchanges credentials for tokens and loads the account.
// Errors are returned so a form can show them.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	c.state.Dispatch(LoginStarted{})

	pair, err := c.client.ObtainToken(ctx, email, password)
	if err != nil {
		c.state.Dispatch(LoginFailed{Message: message(err)})
		return err
	}

	if err := c.session.SetTokens(ctx, *pair); err != nil {
		c.state.Dispatch(LoginFailed{Message: message(err)})
		return err
	}

	user, err := c.session.CurrentUser(ctx)
	if err != nil {
		_ = c.session.ClearTokens(ctx)
		c.state.Dispatch(LoginFailed{Message: message(err)})
		return err
	}

	c.state.Dispatch(LoginSucceeded{User: user})
	return nil
}

// Register creates an account. It does not log in.
// Errors are returned so a form can show them.
func (c *Controller) Register(ctx context.Context, req esign.RegisterRequest) (*esign.User, error) {
	c.state.Dispatch(RegisterStarted{})

	user, err := c.client.Register(ctx, req)
	if err != nil {
		c.state.Dispatch(AuthErrored{Message: message(err)})
		return nil, err
	}

	c.state.Dispatch(RegisterFinished{Message: "Account created. You can now log in."})
	return user, nil
}

// Logout forgets the stored tokens.
func (c *Controller) Logout(ctx context.Context) error {
	err := c.session.ClearTokens(ctx)
	c.state.Dispatch(LoggedOut{})
	return err
}

// RefreshStarted implements esign.AuthObserver.
func (c *Controller) RefreshStarted(context.Context) {
	c.state.Dispatch(RefreshStarted{})
}

// Refreshed implements esign.AuthObserver.
func (c *Controller) Refreshed(context.Context) {
	c.state.Dispatch(RefreshSucceeded{})
}

// AuthFailed implements esign.AuthObserver. The stored pair is purged;
// the error state lasts until the next successful login.
func (c *Controller) AuthFailed(ctx context.Context, err error) {
	if clearErr := c.session.ClearTokens(ctx); clearErr != nil {
		slogx.FromContext(ctx).Error("failed to purge tokens", "err", clearErr)
	}

	var refreshErr *esign.RefreshError
	if errors.As(err, &refreshErr) {
		c.state.Dispatch(RefreshFailed{Message: message(err)})
		return
	}
	c.state.Dispatch(AuthErrored{Message: message(err)})
}

// message picks the text to show for err.
func message(err error) string {
	var apiErr *esign.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return err.Error()
}
