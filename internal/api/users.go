package api

import (
	"context"
	"net/http"
	"net/url"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Message     string `json:"message,omitempty"`
	AccessToken string `json:"access_token"`
	UserID      int    `json:"user_id,omitempty"`
}

// SignupRequest mirrors the backend's signup body. VegNon is true for a
// vegetarian diet and Gender is true for male.
type SignupRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Email    string  `json:"email"`
	Disease  string  `json:"disease"`
	Height   float64 `json:"height"`
	Weight   float64 `json:"weight"`
	VegNon   bool    `json:"veg_non"`
	Gender   bool    `json:"gender"`
}

type SignupResponse struct {
	Message string `json:"message"`
	UserID  int    `json:"user_id"`
}

type Profile struct {
	Height         *float64 `json:"height"`
	Weight         *float64 `json:"weight"`
	DietPreference string   `json:"diet_preference"`
}

type UpdateUserRequest struct {
	Disease string  `json:"disease"`
	Height  float64 `json:"height"`
	Weight  float64 `json:"weight"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (c *Client) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	var out LoginResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/users/login", "", LoginRequest{Username: username, Password: password}, &out)
	return out, err
}

func (c *Client) Signup(ctx context.Context, in SignupRequest) (SignupResponse, error) {
	var out SignupResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/users/signup", "", in, &out)
	return out, err
}

func (c *Client) Profile(ctx context.Context, token, userID string) (Profile, error) {
	var out Profile
	err := c.do(ctx, http.MethodGet, "/api/v1/users/profile/"+url.PathEscape(userID), token, nil, &out)
	return out, err
}

func (c *Client) UpdateUser(ctx context.Context, token, userID string, in UpdateUserRequest) error {
	return c.do(ctx, http.MethodPut, "/api/v1/users/update-user/"+url.PathEscape(userID), token, in, nil)
}

func (c *Client) ChangePassword(ctx context.Context, token, userID string, in ChangePasswordRequest) error {
	return c.do(ctx, http.MethodPut, "/api/v1/users/change-password/"+url.PathEscape(userID), token, in, nil)
}
