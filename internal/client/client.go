// Package client talks to the notesy API on behalf of a Session.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"notesy/internal/editor"
	"notesy/internal/note"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
	Session *Session
}

func New(baseURL string, s *Session) *Client {
	if s == nil {
		s = &Session{}
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 2 * time.Minute},
		Session: s,
	}
}

type authResponse struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    SessionUser `json:"user"`
}

// Register creates an account and starts a session for it.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	var out authResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return err
	}
	return c.start(out)
}

func (c *Client) Login(ctx context.Context, email, password string) error {
	var out authResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return err
	}
	return c.start(out)
}

func (c *Client) start(out authResponse) error {
	c.Session.Token = out.Token
	c.Session.User = out.User
	return c.Session.Save()
}

// Me asks the API who the session belongs to.
func (c *Client) Me(ctx context.Context) (*SessionUser, error) {
	var out struct {
		User SessionUser `json:"user"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *Client) Logout() error {
	return c.Session.Clear()
}

func (c *Client) ListNotes(ctx context.Context, f note.Filter) ([]note.Note, error) {
	q := url.Values{}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if len(f.Tags) > 0 {
		q.Set("tags", strings.Join(f.Tags, ","))
	}
	path := "/notes"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []note.Note
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetNote(ctx context.Context, id uint64) (*note.Note, error) {
	var out note.Note
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/notes/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateNote posts a submission built from a new draft.
func (c *Client) CreateNote(ctx context.Context, s *editor.Submission) (*note.Note, error) {
	return c.submit(ctx, http.MethodPost, "/notes", s)
}

// UpdateNote puts a submission built from an edit draft.
func (c *Client) UpdateNote(ctx context.Context, s *editor.Submission) (*note.Note, error) {
	if s.NoteID == 0 {
		return nil, fmt.Errorf("update needs a note id")
	}
	return c.submit(ctx, http.MethodPut, fmt.Sprintf("/notes/%d", s.NoteID), s)
}

func (c *Client) DeleteNote(ctx context.Context, id uint64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/notes/%d", id), nil, nil)
}

func (c *Client) submit(ctx context.Context, method, path string, s *editor.Submission) (*note.Note, error) {
	req, err := c.newRequest(ctx, method, path, bytes.NewReader(s.Body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", s.ContentType)

	var out note.Note
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.Session.Authenticated() {
		req.Header.Set("Authorization", "Bearer "+c.Session.Token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 16<<20))
	if err != nil {
		return err
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		apiErr := &APIError{Status: res.StatusCode}
		var body struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &body) == nil && body.Message != "" {
			apiErr.Message = body.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
