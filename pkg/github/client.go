// Package github is a minimal client for the GitHub REST API covering the
// operations the registry sync engine needs: repository creation, reading
// the remote HEAD, pushing file trees as single commits via the git data
// API, and enabling Pages hosting. Failures map to classified error kinds;
// retry policy belongs to the caller.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/uifoundry/registry-studio/pkg/snapshot"
)

const defaultAPIURL = "https://api.github.com"

// DefaultBranch is the branch the sync engine pushes to and reads HEAD
// from.
const DefaultBranch = "main"

// Client talks to the GitHub REST API on behalf of one token.
type Client struct {
	apiURL     string
	token      string
	httpClient *http.Client
	branch     string
}

// Option configures a Client.
type Option func(*Client)

// WithAPIURL overrides the API base URL (GitHub Enterprise, tests).
func WithAPIURL(apiURL string) Option {
	return func(c *Client) { c.apiURL = strings.TrimSuffix(apiURL, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBranch overrides the branch used for pushes and HEAD reads.
func WithBranch(branch string) Option {
	return func(c *Client) { c.branch = branch }
}

// NewClient creates a client authenticated with the given token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		apiURL:     defaultAPIURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		branch:     DefaultBranch,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateRepoRequest describes the repository to create.
type CreateRepoRequest struct {
	Name        string
	Description string
	Private     bool
	// Org, when set, creates the repository under an organization instead
	// of the token's user account.
	Org string
}

// Repo is the subset of the repository response the sync engine uses.
type Repo struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	HTMLURL       string `json:"html_url"`
	Private       bool   `json:"private"`
	DefaultBranch string `json:"default_branch"`
}

// CreateRepo creates a new repository and returns it. A name collision
// surfaces as an ErrKindRemoteConflict error; it is never retried or
// auto-renamed here.
func (c *Client) CreateRepo(ctx context.Context, create CreateRepoRequest) (*Repo, error) {
	endpoint := "/user/repos"
	if create.Org != "" {
		endpoint = fmt.Sprintf("/orgs/%s/repos", create.Org)
	}

	body := map[string]any{
		"name":        create.Name,
		"description": create.Description,
		"private":     create.Private,
		"auto_init":   false,
	}

	req, err := c.newRequest(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}

	var repo Repo
	if err := c.doRequest(req, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// GetRemoteCommitSHA returns the commit SHA at the head of the push branch.
// It never mutates remote state; the orchestrator uses it as the freshness
// oracle before an incremental push.
func (c *Client) GetRemoteCommitSHA(ctx context.Context, owner, repo string) (string, error) {
	endpoint := fmt.Sprintf("/repos/%s/%s/git/ref/heads/%s", owner, repo, c.branch)
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	var ref gitRef
	if err := c.doRequest(req, &ref); err != nil {
		return "", err
	}
	return ref.Object.SHA, nil
}

// PushFiles creates one commit containing exactly the given files and
// points the push branch at it. It works against an empty repository (the
// commit has no parent and the ref is created) as well as an existing one.
// Returns the new commit SHA.
func (c *Client) PushFiles(ctx context.Context, owner, repo string, files []snapshot.FileEntry, message string) (string, error) {
	parentSHA, err := c.GetRemoteCommitSHA(ctx, owner, repo)
	if err != nil {
		if !IsKind(err, ErrKindNotFound) && !IsKind(err, ErrKindRemoteConflict) {
			return "", err
		}
		parentSHA = "" // empty repository
	}

	entries := make([]treeEntry, 0, len(files))
	for _, f := range files {
		blobSHA, err := c.createBlob(ctx, owner, repo, f.Content)
		if err != nil {
			return "", fmt.Errorf("create blob for %s: %w", f.Path, err)
		}
		sha := blobSHA
		entries = append(entries, treeEntry{Path: f.Path, Mode: "100644", Type: "blob", SHA: &sha})
	}

	treeSHA, err := c.createTree(ctx, owner, repo, "", entries)
	if err != nil {
		return "", err
	}

	var parents []string
	if parentSHA != "" {
		parents = []string{parentSHA}
	}
	commitSHA, err := c.createCommit(ctx, owner, repo, message, treeSHA, parents)
	if err != nil {
		return "", err
	}

	if parentSHA == "" {
		if err := c.createRef(ctx, owner, repo, commitSHA); err != nil {
			return "", err
		}
	} else {
		if err := c.updateRef(ctx, owner, repo, commitSHA); err != nil {
			return "", err
		}
	}
	return commitSHA, nil
}

// PushFilesIncremental builds one commit containing exactly the given
// upserts and deletions, parented on parentSHA, and fast-forwards the push
// branch to it. If the branch no longer points at parentSHA the ref update
// is not a fast forward and fails with ErrKindRemoteConflict: the commit
// is never silently rebased onto a moved HEAD.
func (c *Client) PushFilesIncremental(ctx context.Context, owner, repo string, upserts []snapshot.FileEntry, deletions []string, parentSHA, message string) (string, error) {
	if parentSHA == "" {
		return "", fmt.Errorf("incremental push requires a parent commit SHA")
	}

	baseTreeSHA, err := c.getCommitTreeSHA(ctx, owner, repo, parentSHA)
	if err != nil {
		return "", err
	}

	entries := make([]treeEntry, 0, len(upserts)+len(deletions))
	for _, f := range upserts {
		blobSHA, err := c.createBlob(ctx, owner, repo, f.Content)
		if err != nil {
			return "", fmt.Errorf("create blob for %s: %w", f.Path, err)
		}
		sha := blobSHA
		entries = append(entries, treeEntry{Path: f.Path, Mode: "100644", Type: "blob", SHA: &sha})
	}
	for _, p := range deletions {
		// A null SHA tree entry removes the path from the base tree.
		entries = append(entries, treeEntry{Path: p, Mode: "100644", Type: "blob", SHA: nil})
	}

	treeSHA, err := c.createTree(ctx, owner, repo, baseTreeSHA, entries)
	if err != nil {
		return "", err
	}

	commitSHA, err := c.createCommit(ctx, owner, repo, message, treeSHA, []string{parentSHA})
	if err != nil {
		return "", err
	}

	if err := c.updateRef(ctx, owner, repo, commitSHA); err != nil {
		return "", err
	}
	return commitSHA, nil
}

// EnableGitHubPages turns on Pages hosting for the push branch. This is
// best-effort: hosting activates asynchronously and the URL is predictable,
// so API errors are swallowed and the predicted URL returned.
func (c *Client) EnableGitHubPages(ctx context.Context, owner, repo string) string {
	pagesURL := fmt.Sprintf("https://%s.github.io/%s/", owner, repo)

	body := map[string]any{
		"source": map[string]string{"branch": c.branch, "path": "/"},
	}
	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/%s/pages", owner, repo), body)
	if err != nil {
		return pagesURL
	}
	_ = c.doRequest(req, nil)
	return pagesURL
}

// GetAuthenticatedUser returns the login of the token's user. Used to
// determine the repository owner for exports without an explicit org.
func (c *Client) GetAuthenticatedUser(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/user", nil)
	if err != nil {
		return "", err
	}
	var user struct {
		Login string `json:"login"`
	}
	if err := c.doRequest(req, &user); err != nil {
		return "", err
	}
	return user.Login, nil
}

type gitRef struct {
	Ref    string `json:"ref"`
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

type treeEntry struct {
	Path string  `json:"path"`
	Mode string  `json:"mode"`
	Type string  `json:"type"`
	SHA  *string `json:"sha"`
}

func (c *Client) createBlob(ctx context.Context, owner, repo string, content []byte) (string, error) {
	body := map[string]string{
		"content":  base64.StdEncoding.EncodeToString(content),
		"encoding": "base64",
	}
	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/%s/git/blobs", owner, repo), body)
	if err != nil {
		return "", err
	}
	var blob struct {
		SHA string `json:"sha"`
	}
	if err := c.doRequest(req, &blob); err != nil {
		return "", err
	}
	return blob.SHA, nil
}

func (c *Client) createTree(ctx context.Context, owner, repo, baseTreeSHA string, entries []treeEntry) (string, error) {
	body := map[string]any{"tree": entries}
	if baseTreeSHA != "" {
		body["base_tree"] = baseTreeSHA
	}
	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/%s/git/trees", owner, repo), body)
	if err != nil {
		return "", err
	}
	var tree struct {
		SHA string `json:"sha"`
	}
	if err := c.doRequest(req, &tree); err != nil {
		return "", err
	}
	return tree.SHA, nil
}

func (c *Client) getCommitTreeSHA(ctx context.Context, owner, repo, commitSHA string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s/git/commits/%s", owner, repo, commitSHA), nil)
	if err != nil {
		return "", err
	}
	var commit struct {
		Tree struct {
			SHA string `json:"sha"`
		} `json:"tree"`
	}
	if err := c.doRequest(req, &commit); err != nil {
		return "", err
	}
	return commit.Tree.SHA, nil
}

func (c *Client) createCommit(ctx context.Context, owner, repo, message, treeSHA string, parents []string) (string, error) {
	if parents == nil {
		parents = []string{}
	}
	body := map[string]any{
		"message": message,
		"tree":    treeSHA,
		"parents": parents,
	}
	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/%s/git/commits", owner, repo), body)
	if err != nil {
		return "", err
	}
	var commit struct {
		SHA string `json:"sha"`
	}
	if err := c.doRequest(req, &commit); err != nil {
		return "", err
	}
	return commit.SHA, nil
}

func (c *Client) createRef(ctx context.Context, owner, repo, commitSHA string) error {
	body := map[string]string{
		"ref": "refs/heads/" + c.branch,
		"sha": commitSHA,
	}
	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/%s/git/refs", owner, repo), body)
	if err != nil {
		return err
	}
	return c.doRequest(req, nil)
}

func (c *Client) updateRef(ctx context.Context, owner, repo, commitSHA string) error {
	// force=false makes a non-fast-forward update fail instead of
	// clobbering commits pushed by someone else.
	body := map[string]any{
		"sha":   commitSHA,
		"force": false,
	}
	req, err := c.newRequest(ctx, http.MethodPatch, fmt.Sprintf("/repos/%s/%s/git/refs/heads/%s", owner, repo, c.branch), body)
	if err != nil {
		return err
	}
	return c.doRequest(req, nil)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	u, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, err
	}
	u.Path = path.Join(u.Path, endpoint)

	var req *http.Request
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		req, err = http.NewRequestWithContext(ctx, method, u.String(), strings.NewReader(string(jsonBody)))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
		if err != nil {
			return nil, err
		}
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", "registry-studio/1.0")

	return req, nil
}

func (c *Client) doRequest(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Kind: ErrKindUnknown, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		rateLimited := resp.Header.Get("X-RateLimit-Remaining") == "0"
		message := resp.Status
		var errBody struct {
			Message string `json:"message"`
		}
		if data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16)); err == nil {
			if json.Unmarshal(data, &errBody) == nil && errBody.Message != "" {
				message = errBody.Message
			}
		}
		return &APIError{
			Kind:       kindFromStatus(resp.StatusCode, rateLimited),
			StatusCode: resp.StatusCode,
			Message:    message,
		}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return &APIError{Kind: ErrKindUnknown, StatusCode: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
		}
	}
	return nil
}
