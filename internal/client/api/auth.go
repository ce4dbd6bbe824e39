package api

import (
	"context"
	"net/http"
	"net/url"
)

// Session is the token pair returned by the auth endpoint.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignIn exchanges credentials for a session and installs the access token
// on the client. Failures surface as *common.AuthError for the classifier.
func (c *Client) SignIn(ctx context.Context, email, password string) (Session, error) {
	q := url.Values{}
	q.Set("grant_type", "password")

	var s Session
	err := c.do(ctx, http.MethodPost, "/auth/v1/token", q, signInRequest{Email: email, Password: password}, &s)
	if err != nil {
		return Session{}, err
	}
	c.SetToken(s.AccessToken)
	return s, nil
}
