package iouapi

import (
	"context"
	"errors"
	"strings"
)

// Session is the backend's answer to a Google sign-in.
type Session struct {
	UserID int64  `json:"user_id"`
	Token  string `json:"token"`
	Name   string `json:"name"`
}

// ExchangeGoogleToken calls POST /auth/google with a Google id_token and
// returns the backend session. The client's own token is not required.
func (c *Client) ExchangeGoogleToken(ctx context.Context, idToken string) (*Session, error) {
	body := struct {
		IDToken string `json:"id_token"`
	}{IDToken: idToken}

	var out Session
	if err := c.post(ctx, "/auth/google", body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Token) == "" || out.UserID == 0 {
		return nil, errors.New("sign-in response is missing token or user_id")
	}
	return &out, nil
}
