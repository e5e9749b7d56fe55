package advisoryapi

import (
	"context"
	"net/http"
)

// SendOTPResponse is the reply to a send-otp request. Development servers
// echo the code in OTP.
type SendOTPResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
	OTP     string `json:"otp,omitempty"`
}

// VerifyOTPResponse carries the issued session.
type VerifyOTPResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Email     string `json:"email"`
}

// SessionStatus is the reply to check-session.
type SessionStatus struct {
	Authenticated bool   `json:"authenticated"`
	Email         string `json:"email"`
}

func (c *Client) SendOTP(ctx context.Context, email string) (*SendOTPResponse, error) {
	var out SendOTPResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/send-otp", nil, map[string]string{"email": email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) VerifyOTP(ctx context.Context, email, otp string) (*VerifyOTPResponse, error) {
	var out VerifyOTPResponse
	body := map[string]string{"email": email, "otp": otp}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/verify-otp", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckSession validates the session attached to ctx.
func (c *Client) CheckSession(ctx context.Context) (*SessionStatus, error) {
	var out SessionStatus
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/check-session", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout ends the session attached to ctx on the server.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil)
}
