// Package github stores the task document in a GitHub repository through
// the repository contents API. The blob SHA of the file is the
// compare-and-swap token, and every write is a commit.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
	"golang.org/x/oauth2"

	"github.com/nibzard/mdtasks/internal/store"
)

// DefaultAPIURL is the public GitHub REST endpoint.
const DefaultAPIURL = "https://api.github.com"

var blobURLPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)/blob/([^/]+)/(.+)`)

// Location is a file in a repository at a ref.
type Location struct {
	Owner string
	Repo  string
	Ref   string
	Path  string
}

// Identity returns the store identity of the file.
func (l Location) Identity() store.Identity {
	return store.Identity{Path: l.Path, Ref: l.Ref}
}

// ParseBlobURL parses a browser URL such as
// https://github.com/owner/repo/blob/main/tasks.md.
func ParseBlobURL(raw string) (Location, error) {
	m := blobURLPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Location{}, fmt.Errorf("invalid GitHub blob URL %q: expected https://github.com/<owner>/<repo>/blob/<ref>/<path>", raw)
	}
	path := m[4]
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	return Location{Owner: m[1], Repo: m[2], Ref: m[3], Path: path}, nil
}

// APIError is a non-success response from the GitHub API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github API error %d: %s", e.StatusCode, e.Message)
}

// Client talks to one repository.
type Client struct {
	httpClient *http.Client
	baseURL    string
	owner      string
	repo       string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API endpoint, such as GitHub
// Enterprise or a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the HTTP client. The token passed to New is then
// ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New returns a client for owner/repo authenticated with token. An empty
// token makes unauthenticated requests.
func New(ctx context.Context, token, owner, repo string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultAPIURL,
		owner:   owner,
		repo:    repo,
	}
	if token != "" {
		c.httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	} else {
		c.httpClient = http.DefaultClient
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type contentResponse struct {
	Type     string `json:"type"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
	SHA      string `json:"sha"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type putResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Get implements store.Store.
func (c *Client) Get(ctx context.Context, id store.Identity) (store.Document, error) {
	endpoint := c.contentsURL(id.Path)
	if id.Ref != "" {
		endpoint += "?ref=" + url.QueryEscape(id.Ref)
	}
	var resp contentResponse
	status, err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	if status == http.StatusNotFound {
		return store.Document{}, fmt.Errorf("%s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return store.Document{}, err
	}
	if resp.Type != "" && resp.Type != "file" {
		return store.Document{}, fmt.Errorf("%s is a %s, not a file", id.Path, resp.Type)
	}
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(resp.Content, "\n", ""))
	if err != nil {
		return store.Document{}, fmt.Errorf("decode content of %s: %w", id.Path, err)
	}
	return store.Document{Content: string(data), Token: resp.SHA}, nil
}

// Put implements store.Store. GitHub answers a stale SHA with 409, and a
// create without SHA over an existing file with 422; both are conflicts.
func (c *Client) Put(ctx context.Context, id store.Identity, content, token, message string) (string, error) {
	body, err := sonic.Marshal(putRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString([]byte(content)),
		SHA:     token,
		Branch:  id.Ref,
	})
	if err != nil {
		return "", err
	}
	var resp putResponse
	status, err := c.do(ctx, http.MethodPut, c.contentsURL(id.Path), body, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && isConflictStatus(status, apiErr.Message) {
			return "", fmt.Errorf("%s: %w: %s", id, store.ErrConflict, apiErr.Message)
		}
		return "", err
	}
	return resp.Content.SHA, nil
}

func isConflictStatus(status int, message string) bool {
	switch status {
	case http.StatusConflict, http.StatusPreconditionFailed:
		return true
	case http.StatusUnprocessableEntity:
		return strings.Contains(strings.ToLower(message), "sha")
	}
	return false
}

// GetAt returns the content of path at ref, which may be a commit SHA.
func (c *Client) GetAt(ctx context.Context, path, ref string) (string, error) {
	doc, err := c.Get(ctx, store.Identity{Path: path, Ref: ref})
	if err != nil {
		return "", err
	}
	return doc.Content, nil
}

// Commit is the part of a commit the webhook needs.
type Commit struct {
	SHA     string
	Parents []string
}

type commitResponse struct {
	SHA     string `json:"sha"`
	Parents []struct {
		SHA string `json:"sha"`
	} `json:"parents"`
}

// Commit fetches a commit and its parent SHAs.
func (c *Client) Commit(ctx context.Context, sha string) (Commit, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/commits/%s", c.baseURL, url.PathEscape(c.owner), url.PathEscape(c.repo), url.PathEscape(sha))
	var resp commitResponse
	if _, err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return Commit{}, err
	}
	out := Commit{SHA: resp.SHA, Parents: make([]string, 0, len(resp.Parents))}
	for _, p := range resp.Parents {
		out.Parents = append(out.Parents, p.SHA)
	}
	return out, nil
}

// ParentSHA returns the first parent of sha, or "" for a root commit.
func (c *Client) ParentSHA(ctx context.Context, sha string) (string, error) {
	commit, err := c.Commit(ctx, sha)
	if err != nil {
		return "", err
	}
	if len(commit.Parents) == 0 {
		return "", nil
	}
	return commit.Parents[0], nil
}

func (c *Client) contentsURL(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.baseURL, url.PathEscape(c.owner), url.PathEscape(c.repo), strings.Join(segments, "/"))
}

// do sends a request and decodes a 2xx JSON body into out. The status code
// is returned whenever a response was received.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("github API request failed: %w", err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return resp.StatusCode, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		msg := strings.TrimSpace(string(data))
		if sonic.Unmarshal(data, &e) == nil && e.Message != "" {
			msg = e.Message
		}
		return resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out != nil && len(data) > 0 {
		if err := sonic.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding github response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
