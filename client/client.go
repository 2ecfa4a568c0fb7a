// Package client is the HTTP client for the rewards ledger API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	models "loyalty-cart/model"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
	// Actor is sent as X-Customer-Email on admin calls.
	Actor string
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type userEnvelope struct {
	Message string      `json:"message"`
	User    models.User `json:"user"`
}

type errEnvelope struct {
	Message string `json:"message"`
	Current *int64 `json:"current"`
}

// do sends body as JSON and decodes a 2xx response into out. Failures to
// reach the server or to parse its body are Transient; error statuses are
// mapped back to their kinds.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Actor != "" {
		req.Header.Set("X-Customer-Email", c.Actor)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return models.NewTransient("ledger unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.NewTransient("read response", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return models.NewTransient("non-JSON response", err)
		}
		return nil
	}

	var e errEnvelope
	if len(raw) == 0 || json.Unmarshal(raw, &e) != nil || e.Message == "" {
		e.Message = fmt.Sprintf("ledger returned %d", resp.StatusCode)
	}
	return &models.Error{Kind: kindFor(resp.StatusCode, e), Message: e.Message, Current: e.Current}
}

func kindFor(code int, e errEnvelope) models.Kind {
	switch code {
	case http.StatusBadRequest:
		if e.Current != nil {
			return models.KindInsufficientPoints
		}
		return models.KindValidation
	case http.StatusNotFound:
		return models.KindNotFound
	case http.StatusConflict:
		return models.KindConflict
	case http.StatusUnauthorized:
		return models.KindUnauthorized
	case http.StatusForbidden:
		return models.KindForbidden
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return models.KindTransient
	default:
		return models.KindServer
	}
}

type pointsBody struct {
	Email  string `json:"email"`
	Points int64  `json:"points"`
}

func (c *Client) GetBalance(ctx context.Context, email string) (int64, error) {
	var out struct {
		Rewards int64 `json:"rewards"`
	}
	q := url.Values{"email": {models.NormalizeEmail(email)}}
	if err := c.do(ctx, http.MethodGet, "/api/rewards?"+q.Encode(), nil, &out); err != nil {
		return 0, err
	}
	return out.Rewards, nil
}

func (c *Client) Redeem(ctx context.Context, email string, points int64) (models.User, error) {
	return c.pointsCall(ctx, "/api/rewards/redeem", email, points)
}

func (c *Client) Refund(ctx context.Context, email string, points int64) (models.User, error) {
	return c.pointsCall(ctx, "/api/rewards/refund", email, points)
}

func (c *Client) Credit(ctx context.Context, email string, points int64) (models.User, error) {
	return c.pointsCall(ctx, "/api/rewards/credit", email, points)
}

func (c *Client) pointsCall(ctx context.Context, path, email string, points int64) (models.User, error) {
	var out userEnvelope
	err := c.do(ctx, http.MethodPost, path, pointsBody{Email: models.NormalizeEmail(email), Points: points}, &out)
	return out.User, err
}

func (c *Client) SetBalance(ctx context.Context, email string, rewards int64) (int64, error) {
	var out struct {
		Rewards int64 `json:"rewards"`
	}
	body := map[string]interface{}{"email": models.NormalizeEmail(email), "rewards": rewards}
	if err := c.do(ctx, http.MethodPatch, "/api/rewards/set", body, &out); err != nil {
		return 0, err
	}
	return out.Rewards, nil
}

func (c *Client) Register(ctx context.Context, fullName, email, password string) (models.User, error) {
	var out userEnvelope
	body := map[string]string{"full_name": fullName, "email": email, "password": password}
	err := c.do(ctx, http.MethodPost, "/api/auth/register", body, &out)
	return out.User, err
}

func (c *Client) Login(ctx context.Context, email, password string) (models.User, error) {
	var out userEnvelope
	body := map[string]string{"email": email, "password": password}
	err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &out)
	return out.User, err
}

func (c *Client) ChangePassword(ctx context.Context, email, current, next string) error {
	body := map[string]string{"email": email, "currentPassword": current, "newPassword": next}
	return c.do(ctx, http.MethodPost, "/api/password/change", body, nil)
}

func (c *Client) Customers(ctx context.Context) ([]models.CustomerView, error) {
	var out []models.CustomerView
	err := c.do(ctx, http.MethodGet, "/api/admin/customers", nil, &out)
	return out, err
}

type Health struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.do(ctx, http.MethodGet, "/api/health", nil, &out)
	return out, err
}
