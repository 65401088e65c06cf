package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bytedance/sonic"

	"github.com/nibzard/mdtasks/internal/store"
)

// fakeRepo serves the subset of the contents and commits API the client uses.
type fakeRepo struct {
	mu      sync.Mutex
	files   map[string]string // path -> content
	shas    map[string]string // path -> blob sha
	commits map[string][]string
	seq     int
	puts    []putRequest
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		files:   map[string]string{},
		shas:    map[string]string{},
		commits: map[string][]string{},
	}
}

func (f *fakeRepo) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	const contents = "/repos/octo/notes/contents/"
	const commits = "/repos/octo/notes/commits/"
	switch {
	case strings.HasPrefix(r.URL.Path, contents) && r.Method == http.MethodGet:
		path := strings.TrimPrefix(r.URL.Path, contents)
		key := path + "@" + r.URL.Query().Get("ref")
		content, ok := f.files[key]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"type":     "file",
			"encoding": "base64",
			"content":  wrap(base64.StdEncoding.EncodeToString([]byte(content))),
			"sha":      f.shas[key],
		})
	case strings.HasPrefix(r.URL.Path, contents) && r.Method == http.MethodPut:
		path := strings.TrimPrefix(r.URL.Path, contents)
		body, _ := io.ReadAll(r.Body)
		var req putRequest
		if err := sonic.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		f.puts = append(f.puts, req)
		key := path + "@" + req.Branch
		current, exists := f.shas[key]
		switch {
		case exists && req.SHA == "":
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": `Invalid request. "sha" wasn't supplied.`})
			return
		case exists && req.SHA != current:
			writeJSON(w, http.StatusConflict, map[string]string{"message": fmt.Sprintf("%s does not match %s", path, req.SHA)})
			return
		}
		data, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad base64"})
			return
		}
		f.seq++
		sha := fmt.Sprintf("blob%d", f.seq)
		f.files[key] = string(data)
		f.shas[key] = sha
		status := http.StatusOK
		if !exists {
			status = http.StatusCreated
		}
		writeJSON(w, status, map[string]any{"content": map[string]string{"sha": sha}})
	case strings.HasPrefix(r.URL.Path, commits):
		sha := strings.TrimPrefix(r.URL.Path, commits)
		parents, ok := f.commits[sha]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "No commit found"})
			return
		}
		list := make([]map[string]string, 0, len(parents))
		for _, p := range parents {
			list = append(list, map[string]string{"sha": p})
		}
		writeJSON(w, http.StatusOK, map[string]any{"sha": sha, "parents": list})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "unexpected " + r.Method + " " + r.URL.Path})
	}
}

func (f *fakeRepo) seed(path, ref, content, sha string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path+"@"+ref] = content
	f.shas[path+"@"+ref] = sha
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, _ := sonic.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

// wrap breaks base64 into 60-char lines the way the contents API does.
func wrap(s string) string {
	var b strings.Builder
	for len(s) > 60 {
		b.WriteString(s[:60])
		b.WriteByte('\n')
		s = s[60:]
	}
	b.WriteString(s)
	return b.String()
}

func newTestClient(t *testing.T) (*Client, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	srv := httptest.NewServer(repo)
	t.Cleanup(srv.Close)
	return New(context.Background(), "", "octo", "notes", WithBaseURL(srv.URL+"/")), repo
}

func TestParseBlobURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Location
		wantErr bool
	}{
		{
			name:  "root file",
			input: "https://github.com/octo/notes/blob/main/tasks.md",
			want:  Location{Owner: "octo", Repo: "notes", Ref: "main", Path: "tasks.md"},
		},
		{
			name:  "nested path",
			input: "https://github.com/octo/notes/blob/dev/docs/todo/tasks.md",
			want:  Location{Owner: "octo", Repo: "notes", Ref: "dev", Path: "docs/todo/tasks.md"},
		},
		{
			name:  "query and fragment dropped",
			input: "https://github.com/octo/notes/blob/main/tasks.md?plain=1#L3",
			want:  Location{Owner: "octo", Repo: "notes", Ref: "main", Path: "tasks.md"},
		},
		{
			name:  "escaped path",
			input: "https://github.com/octo/notes/blob/main/my%20tasks.md",
			want:  Location{Owner: "octo", Repo: "notes", Ref: "main", Path: "my tasks.md"},
		},
		{name: "tree url", input: "https://github.com/octo/notes/tree/main", wantErr: true},
		{name: "not github", input: "https://example.com/x/y/blob/main/a.md", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBlobURL(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseBlobURL: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseBlobURL: got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLocationIdentity(t *testing.T) {
	loc := Location{Owner: "o", Repo: "r", Ref: "main", Path: "tasks.md"}
	if got := loc.Identity().String(); got != "tasks.md@main" {
		t.Errorf("Identity: got %q", got)
	}
}

func TestGet(t *testing.T) {
	client, repo := newTestClient(t)
	long := strings.Repeat("| row |\n", 40)
	repo.seed("docs/tasks.md", "main", long, "abc123")

	doc, err := client.Get(context.Background(), store.Identity{Path: "docs/tasks.md", Ref: "main"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Content != long {
		t.Errorf("content: got %q", doc.Content)
	}
	if doc.Token != "abc123" {
		t.Errorf("token: got %q, want abc123", doc.Token)
	}

	_, err = client.Get(context.Background(), store.Identity{Path: "missing.md", Ref: "main"})
	if !store.IsNotFound(err) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPut(t *testing.T) {
	ctx := context.Background()
	id := store.Identity{Path: "tasks.md", Ref: "main"}

	t.Run("create then update", func(t *testing.T) {
		client, repo := newTestClient(t)
		token, err := client.Put(ctx, id, "v1", "", "[bot] init")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		token2, err := client.Put(ctx, id, "v2", token, "[bot] update - now")
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if token2 == token {
			t.Errorf("expected new token after update, got %q twice", token)
		}
		doc, err := client.Get(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if doc.Content != "v2" || doc.Token != token2 {
			t.Errorf("Get after Put: got %+v", doc)
		}
		if len(repo.puts) != 2 {
			t.Fatalf("expected 2 puts, got %d", len(repo.puts))
		}
		first := repo.puts[0]
		if first.Message != "[bot] init" || first.Branch != "main" || first.SHA != "" {
			t.Errorf("create request: got %+v", first)
		}
		if repo.puts[1].SHA != token {
			t.Errorf("update sha: got %q, want %q", repo.puts[1].SHA, token)
		}
	})

	t.Run("stale sha is a conflict", func(t *testing.T) {
		client, repo := newTestClient(t)
		repo.seed("tasks.md", "main", "remote", "fresh")
		_, err := client.Put(ctx, id, "local", "stale", "msg")
		if !store.IsConflict(err) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("create over existing file is a conflict", func(t *testing.T) {
		client, repo := newTestClient(t)
		repo.seed("tasks.md", "main", "remote", "fresh")
		_, err := client.Put(ctx, id, "local", "", "msg")
		if !store.IsConflict(err) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})
}

func TestPutServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "Resource not accessible by integration"})
	}))
	defer srv.Close()

	client := New(context.Background(), "", "octo", "notes", WithBaseURL(srv.URL))
	_, err := client.Put(context.Background(), store.Identity{Path: "tasks.md"}, "x", "", "msg")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("status: got %d, want 403", apiErr.StatusCode)
	}
	if store.IsConflict(err) {
		t.Error("403 must not be a conflict")
	}
	if !strings.Contains(err.Error(), "not accessible") {
		t.Errorf("error message: got %q", err.Error())
	}
}

func TestAuthorizationHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, map[string]any{"sha": "c1", "parents": []any{}})
	}))
	defer srv.Close()

	client := New(context.Background(), "secret", "octo", "notes", WithBaseURL(srv.URL))
	if _, err := client.Commit(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}
	if got != "Bearer secret" {
		t.Errorf("Authorization: got %q, want %q", got, "Bearer secret")
	}
}

func TestCommitAndGetAt(t *testing.T) {
	client, repo := newTestClient(t)
	repo.commits["c2"] = []string{"c1"}
	repo.commits["c1"] = nil
	repo.seed("tasks.md", "c2", "after", "b2")
	repo.seed("tasks.md", "c1", "before", "b1")
	ctx := context.Background()

	parent, err := client.ParentSHA(ctx, "c2")
	if err != nil {
		t.Fatalf("ParentSHA: %v", err)
	}
	if parent != "c1" {
		t.Errorf("ParentSHA: got %q, want c1", parent)
	}
	root, err := client.ParentSHA(ctx, "c1")
	if err != nil || root != "" {
		t.Errorf("ParentSHA(root): got (%q, %v), want empty", root, err)
	}

	content, err := client.GetAt(ctx, "tasks.md", parent)
	if err != nil {
		t.Fatalf("GetAt: %v", err)
	}
	if content != "before" {
		t.Errorf("GetAt: got %q, want before", content)
	}

	if _, err := client.Commit(ctx, "nope"); err == nil {
		t.Error("expected error for unknown commit")
	}
}
