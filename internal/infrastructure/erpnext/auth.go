package erpnext

import (
	"context"
	"net/http"
	"net/url"
)

// LoginResult is a successful upstream login
type LoginResult struct {
	SessionID string
	User      string
	FullName  string
}

// Login opens an upstream session and returns its sid cookie
func (c *Client) Login(ctx context.Context, user, password string) (*LoginResult, error) {
	resp, err := c.do(ctx, request{
		op:     "login",
		method: http.MethodPost,
		path:   methodPath("login"),
		form:   url.Values{"usr": {user}, "pwd": {password}},
	})
	if err != nil {
		return nil, err
	}

	var sid string
	for _, ck := range resp.cookies() {
		if ck.Name == sessionCookie && ck.Value != "" && ck.Value != guestSessionSID {
			sid = ck.Value
		}
	}
	if sid == "" {
		return nil, &Error{Status: resp.status, Message: "login response carries no session cookie", kind: ErrInvalidResponse}
	}

	var body struct {
		FullName string `json:"full_name"`
	}
	// full_name is informational; a body without it is still a valid login.
	_ = decodeJSON(resp.body, &body)

	return &LoginResult{SessionID: sid, User: user, FullName: body.FullName}, nil
}

// Logout closes the upstream session
func (c *Client) Logout(ctx context.Context, sid string) error {
	_, err := c.do(ctx, request{
		op:     "logout",
		method: http.MethodGet,
		path:   methodPath("logout"),
		sid:    sid,
	})
	return err
}

// LoggedUser returns the user owning sid
func (c *Client) LoggedUser(ctx context.Context, sid string) (string, error) {
	resp, err := c.do(ctx, request{
		op:     "get_logged_user",
		method: http.MethodGet,
		path:   methodPath("frappe.auth.get_logged_user"),
		sid:    sid,
	})
	if err != nil {
		return "", err
	}
	var user string
	if err := decodeEnvelope(resp.body, "message", &user); err != nil {
		return "", err
	}
	return user, nil
}

// Ping checks that the site answers
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, request{
		op:     "ping",
		method: http.MethodGet,
		path:   methodPath("ping"),
	})
	if err != nil {
		return err
	}
	var msg string
	if err := decodeEnvelope(resp.body, "message", &msg); err != nil {
		return err
	}
	if msg != "pong" {
		return &Error{Status: resp.status, Message: "unexpected ping answer " + msg, kind: ErrInvalidResponse}
	}
	return nil
}
