package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/roach88/chartsync/internal/apperr"
	"github.com/roach88/chartsync/internal/diagram"
)

// Client talks to the sync server's JSON API.
//
// Every request carries the bearer token. A 401 from any call surfaces as an
// Unauthorized error; callers treat it as a global signal to
// re-authenticate.
type Client struct {
	httpClient *http.Client
	base       string

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sets the initial session token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for the API rooted at base, e.g.
// http://localhost:8080/sync/api.
func New(base string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		base:       strings.TrimRight(base, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current session token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the session token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Signup creates an account and stores the returned token.
func (c *Client) Signup(ctx context.Context, email, password, name string) (*AuthResponse, error) {
	var out AuthResponse
	in := map[string]string{"email": email, "password": password, "name": name}
	if err := c.request(ctx, http.MethodPost, "/auth/signup", in, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Login authenticates and stores the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	in := map[string]string{"email": email, "password": password}
	if err := c.request(ctx, http.MethodPost, "/auth/login", in, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.request(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateMe changes the user's name and/or email. Empty values are left as
// they are.
func (c *Client) UpdateMe(ctx context.Context, name, email string) (*User, error) {
	var out User
	in := map[string]string{}
	if name != "" {
		in["name"] = name
	}
	if email != "" {
		in["email"] = email
	}
	if err := c.request(ctx, http.MethodPut, "/auth/me", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChangePassword replaces the password. The session token stays valid.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	in := map[string]string{"current_password": current, "new_password": next}
	return c.request(ctx, http.MethodPut, "/auth/password", in, nil)
}

// SyncDiagram creates the diagram or overwrites its latest version in place.
func (c *Client) SyncDiagram(ctx context.Context, d *diagram.Diagram) (*SyncResult, error) {
	var out SyncResult
	if err := c.request(ctx, http.MethodPost, "/diagrams/sync", d, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PushDiagram creates or replaces the diagram and records a new version.
func (c *Client) PushDiagram(ctx context.Context, d *diagram.Diagram, description string) (*SyncResult, error) {
	var out SyncResult
	in := pushRequest{Diagram: d, Description: description}
	if err := c.request(ctx, http.MethodPost, "/diagrams/push", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PullDiagram fetches version of diagram id. A version of 0 means latest.
func (c *Client) PullDiagram(ctx context.Context, id string, version int) (*Pulled, error) {
	path := "/diagrams/pull/" + url.PathEscape(id)
	if version > 0 {
		path += "?version=" + strconv.Itoa(version)
	}

	var out Pulled
	if err := c.request(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PullAll fetches the latest version of every diagram of the user.
func (c *Client) PullAll(ctx context.Context) ([]Pulled, error) {
	var out struct {
		Diagrams []Pulled `json:"diagrams"`
		Count    int      `json:"count"`
	}
	if err := c.request(ctx, http.MethodGet, "/diagrams/pull-all", nil, &out); err != nil {
		return nil, err
	}
	if out.Diagrams == nil {
		out.Diagrams = []Pulled{}
	}
	return out.Diagrams, nil
}

// ListDiagrams returns the metadata of every diagram of the user.
func (c *Client) ListDiagrams(ctx context.Context) ([]DiagramInfo, error) {
	out := []DiagramInfo{}
	if err := c.request(ctx, http.MethodGet, "/diagrams", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDiagram returns the metadata of one diagram.
func (c *Client) GetDiagram(ctx context.Context, id string) (*DiagramInfo, error) {
	var out DiagramInfo
	if err := c.request(ctx, http.MethodGet, "/diagrams/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteDiagram removes the diagram and all its versions.
func (c *Client) DeleteDiagram(ctx context.Context, id string) error {
	return c.request(ctx, http.MethodDelete, "/diagrams/"+url.PathEscape(id), nil, nil)
}

// ListVersions returns the version history of a diagram, newest first.
func (c *Client) ListVersions(ctx context.Context, id string) ([]VersionInfo, error) {
	out := []VersionInfo{}
	if err := c.request(ctx, http.MethodGet, "/diagrams/"+url.PathEscape(id)+"/versions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteVersion removes one version. The server refuses the latest and the
// only version.
func (c *Client) DeleteVersion(ctx context.Context, id string, version int) error {
	path := "/diagrams/" + url.PathEscape(id) + "/versions/" + strconv.Itoa(version)
	return c.request(ctx, http.MethodDelete, path, nil, nil)
}

// CreateSnapshot copies the latest version into a new version.
func (c *Client) CreateSnapshot(ctx context.Context, id, description string) (*SyncResult, error) {
	var out SyncResult
	in := map[string]string{"description": description}
	if err := c.request(ctx, http.MethodPost, "/diagrams/"+url.PathEscape(id)+"/snapshot", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) request(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return apperr.Wrap(err, apperr.CodeMalformedPayload, "encode request")
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInvalid, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeNetworkFailure, method+" "+path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(resp.Body)
		return statusError(method, path, resp.StatusCode, payload)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Wrap(err, apperr.CodeMalformedPayload, "decode "+method+" "+path)
	}
	return nil
}

// StatusError is a non-2xx response from the server.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
}

func statusError(method, path string, status int, payload []byte) error {
	msg := strings.TrimSpace(string(payload))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(payload, &body) == nil && body.Error != "" {
		msg = body.Error
	}

	code := apperr.CodeInvalid
	switch {
	case status == http.StatusUnauthorized:
		code = apperr.CodeUnauthorized
	case status == http.StatusNotFound:
		code = apperr.CodeNotFound
	case status >= 500:
		code = apperr.CodeNetworkFailure
	}
	return apperr.Wrap(&StatusError{Status: status, Message: msg}, code, method+" "+path)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}
