package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vovakirdan/directchat/internal/proto"
)

// API is the request/response surface the stores consume.
type API interface {
	CheckAuth(ctx context.Context) (proto.UserDTO, error)
	Signup(ctx context.Context, fullName, email, password string) (proto.UserDTO, error)
	Login(ctx context.Context, email, password string) (proto.UserDTO, error)
	Logout(ctx context.Context) error
	UpdateProfile(ctx context.Context, profilePic string) (proto.UserDTO, error)

	Contacts(ctx context.Context) ([]proto.UserDTO, error)
	ChatPartners(ctx context.Context) ([]proto.UserDTO, error)
	Messages(ctx context.Context, peerID int64) ([]proto.MessageDTO, error)
	SendMessage(ctx context.Context, peerID int64, text, image string) (proto.MessageDTO, error)
}

type errorBody struct {
	Message string `json:"message"`
}

// HTTPClient talks to the REST API. The session cookie lives in its cookie jar.
type HTTPClient struct {
	base *url.URL
	rest *resty.Client
}

// NewHTTPClient builds an API client for baseURL (for example "http://localhost:3000").
func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	rest := resty.New().
		SetBaseURL(base.String()+"/api").
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &HTTPClient{base: base, rest: rest}, nil
}

// SessionHeader returns the handshake headers that carry the session cookie.
func (c *HTTPClient) SessionHeader() http.Header {
	header := http.Header{}
	jar := c.rest.GetClient().Jar
	if jar == nil {
		return header
	}
	for _, cookie := range jar.Cookies(c.base) {
		header.Add("Cookie", cookie.Name+"="+cookie.Value)
	}
	return header
}

// WebSocketURL is the live connection endpoint next to the API.
func (c *HTTPClient) WebSocketURL() string {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, result any) error {
	var apiErr errorBody
	req := c.rest.R().SetContext(ctx).SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	if resp.IsError() {
		return &APIError{Status: resp.StatusCode(), Message: apiErr.Message}
	}
	return nil
}

func (c *HTTPClient) CheckAuth(ctx context.Context) (proto.UserDTO, error) {
	var user proto.UserDTO
	err := c.do(ctx, http.MethodGet, "/auth/check", nil, &user)
	return user, err
}

func (c *HTTPClient) Signup(ctx context.Context, fullName, email, password string) (proto.UserDTO, error) {
	var user proto.UserDTO
	err := c.do(ctx, http.MethodPost, "/auth/signup", map[string]string{
		"fullName": fullName,
		"email":    email,
		"password": password,
	}, &user)
	return user, err
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (proto.UserDTO, error) {
	var user proto.UserDTO
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &user)
	return user, err
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

func (c *HTTPClient) UpdateProfile(ctx context.Context, profilePic string) (proto.UserDTO, error) {
	var user proto.UserDTO
	err := c.do(ctx, http.MethodPut, "/auth/update-profile", map[string]string{"profilePic": profilePic}, &user)
	return user, err
}

func (c *HTTPClient) Contacts(ctx context.Context) ([]proto.UserDTO, error) {
	users := make([]proto.UserDTO, 0)
	err := c.do(ctx, http.MethodGet, "/messages/contacts", nil, &users)
	return users, err
}

func (c *HTTPClient) ChatPartners(ctx context.Context) ([]proto.UserDTO, error) {
	users := make([]proto.UserDTO, 0)
	err := c.do(ctx, http.MethodGet, "/messages/chats", nil, &users)
	return users, err
}

func (c *HTTPClient) Messages(ctx context.Context, peerID int64) ([]proto.MessageDTO, error) {
	msgs := make([]proto.MessageDTO, 0)
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/messages/%d", peerID), nil, &msgs)
	return msgs, err
}

func (c *HTTPClient) SendMessage(ctx context.Context, peerID int64, text, image string) (proto.MessageDTO, error) {
	var msg proto.MessageDTO
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/messages/send/%d", peerID), map[string]string{
		"text":  text,
		"image": image,
	}, &msg)
	return msg, err
}
