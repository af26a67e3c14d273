package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uifoundry/registry-studio/pkg/snapshot"
)

// fakeGitHub is a minimal in-memory stand-in for the GitHub git data API.
type fakeGitHub struct {
	mu        sync.Mutex
	headSHA   string
	blobCount int
	treeCount int
	commits   int
	refCalls  []string
	failRef   bool // simulate a non-fast-forward ref update
}

func (f *fakeGitHub) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /user/repos", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name string `json:"name"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Name == "taken" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			fmt.Fprint(w, `{"message":"name already exists on this account"}`)
			return
		}
		json.NewEncoder(w).Encode(Repo{
			Name:          body.Name,
			FullName:      "octo/" + body.Name,
			HTMLURL:       "https://github.com/octo/" + body.Name,
			DefaultBranch: "main",
		})
	})

	mux.HandleFunc("GET /repos/octo/widgets/git/ref/heads/main", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.headSHA == "" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"Not Found"}`)
			return
		}
		fmt.Fprintf(w, `{"ref":"refs/heads/main","object":{"sha":"%s"}}`, f.headSHA)
	})

	mux.HandleFunc("POST /repos/octo/widgets/git/blobs", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.blobCount++
		n := f.blobCount
		f.mu.Unlock()
		fmt.Fprintf(w, `{"sha":"blob-%d"}`, n)
	})

	mux.HandleFunc("POST /repos/octo/widgets/git/trees", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.treeCount++
		n := f.treeCount
		f.mu.Unlock()
		fmt.Fprintf(w, `{"sha":"tree-%d"}`, n)
	})

	mux.HandleFunc("GET /repos/octo/widgets/git/commits/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sha":"c1","tree":{"sha":"base-tree"}}`)
	})

	mux.HandleFunc("POST /repos/octo/widgets/git/commits", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.commits++
		n := f.commits
		f.mu.Unlock()
		fmt.Fprintf(w, `{"sha":"commit-%d"}`, n)
	})

	mux.HandleFunc("POST /repos/octo/widgets/git/refs", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.refCalls = append(f.refCalls, "create")
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"ref":"refs/heads/main","object":{"sha":"commit-1"}}`)
	})

	mux.HandleFunc("PATCH /repos/octo/widgets/git/refs/heads/main", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.refCalls = append(f.refCalls, "update")
		if f.failRef {
			w.WriteHeader(http.StatusUnprocessableEntity)
			fmt.Fprint(w, `{"message":"Update is not a fast forward"}`)
			return
		}
		fmt.Fprint(w, `{"ref":"refs/heads/main","object":{"sha":"updated"}}`)
	})

	mux.HandleFunc("POST /repos/octo/widgets/pages", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"message":"already enabled"}`)
	})

	return mux
}

func newTestClient(t *testing.T, f *fakeGitHub) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewClient("test-token", WithAPIURL(srv.URL))
}

func TestCreateRepo(t *testing.T) {
	client := newTestClient(t, &fakeGitHub{})

	repo, err := client.CreateRepo(context.Background(), CreateRepoRequest{Name: "widgets"})
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/octo/widgets", repo.HTMLURL)
}

func TestCreateRepoNameTaken(t *testing.T) {
	client := newTestClient(t, &fakeGitHub{})

	_, err := client.CreateRepo(context.Background(), CreateRepoRequest{Name: "taken"})
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrKindRemoteConflict))
}

func TestGetRemoteCommitSHA(t *testing.T) {
	client := newTestClient(t, &fakeGitHub{headSHA: "abc123"})

	sha, err := client.GetRemoteCommitSHA(context.Background(), "octo", "widgets")
	require.NoError(t, err)
	assert.Equal(t, "abc123", sha)
}

func TestGetRemoteCommitSHAMissingRef(t *testing.T) {
	client := newTestClient(t, &fakeGitHub{})

	_, err := client.GetRemoteCommitSHA(context.Background(), "octo", "widgets")
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrKindNotFound))
}

func TestPushFilesToEmptyRepoCreatesRef(t *testing.T) {
	fake := &fakeGitHub{}
	client := newTestClient(t, fake)

	files := []snapshot.FileEntry{
		{Path: "registry.json", Content: []byte("{}")},
		{Path: "index.html", Content: []byte("<html></html>")},
	}
	sha, err := client.PushFiles(context.Background(), "octo", "widgets", files, "initial export")
	require.NoError(t, err)
	assert.Equal(t, "commit-1", sha)
	assert.Equal(t, 2, fake.blobCount)
	assert.Equal(t, []string{"create"}, fake.refCalls)
}

func TestPushFilesToExistingRepoUpdatesRef(t *testing.T) {
	fake := &fakeGitHub{headSHA: "c1"}
	client := newTestClient(t, fake)

	sha, err := client.PushFiles(context.Background(), "octo", "widgets",
		[]snapshot.FileEntry{{Path: "a", Content: []byte("x")}}, "push")
	require.NoError(t, err)
	assert.Equal(t, "commit-1", sha)
	assert.Equal(t, []string{"update"}, fake.refCalls)
}

func TestPushFilesIncremental(t *testing.T) {
	fake := &fakeGitHub{headSHA: "c1"}
	client := newTestClient(t, fake)

	sha, err := client.PushFilesIncremental(context.Background(), "octo", "widgets",
		[]snapshot.FileEntry{{Path: "registry/button/button.tsx", Content: []byte("B")}},
		[]string{"registry/card/card.tsx"},
		"c1", "update button")
	require.NoError(t, err)
	assert.Equal(t, "commit-1", sha)
	assert.Equal(t, 1, fake.blobCount)
	assert.Equal(t, []string{"update"}, fake.refCalls)
}

func TestPushFilesIncrementalRequiresParent(t *testing.T) {
	client := newTestClient(t, &fakeGitHub{})

	_, err := client.PushFilesIncremental(context.Background(), "octo", "widgets", nil, nil, "", "msg")
	require.Error(t, err)
}

func TestPushFilesIncrementalNonFastForward(t *testing.T) {
	fake := &fakeGitHub{headSHA: "c1", failRef: true}
	client := newTestClient(t, fake)

	_, err := client.PushFilesIncremental(context.Background(), "octo", "widgets",
		[]snapshot.FileEntry{{Path: "a", Content: []byte("x")}}, nil, "c1", "msg")
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrKindRemoteConflict))
}

func TestEnableGitHubPagesSwallowsErrors(t *testing.T) {
	client := newTestClient(t, &fakeGitHub{})

	pagesURL := client.EnableGitHubPages(context.Background(), "octo", "widgets")
	assert.Equal(t, "https://octo.github.io/widgets/", pagesURL)
}

func TestErrorKindMapping(t *testing.T) {
	assert.Equal(t, ErrKindUnauthorized, kindFromStatus(401, false))
	assert.Equal(t, ErrKindUnauthorized, kindFromStatus(403, false))
	assert.Equal(t, ErrKindRateLimited, kindFromStatus(403, true))
	assert.Equal(t, ErrKindNotFound, kindFromStatus(404, false))
	assert.Equal(t, ErrKindRemoteConflict, kindFromStatus(409, false))
	assert.Equal(t, ErrKindRemoteConflict, kindFromStatus(422, false))
	assert.Equal(t, ErrKindRateLimited, kindFromStatus(429, false))
	assert.Equal(t, ErrKindUnknown, kindFromStatus(500, false))
}
