// Package webhook turns GitHub push events into task-level change
// notifications for commits that mdtasks did not write itself.
package webhook

import (
	"context"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nibzard/mdtasks/internal/diff"
	"github.com/nibzard/mdtasks/internal/logging"
)

var (
	botUpdatePattern = regexp.MustCompile(`^\[bot\] update -`)
	botInitPattern   = regexp.MustCompile(`^\[bot\] init\s*$`)
)

// PushEvent is the part of a GitHub push payload the handler reads.
type PushEvent struct {
	Ref        string     `json:"ref"`
	Repository Repository `json:"repository"`
	Commits    []Commit   `json:"commits"`
	HeadCommit *Commit    `json:"head_commit,omitempty"`
	Pusher     *Person    `json:"pusher,omitempty"`
}

// Repository identifies the pushed repository.
type Repository struct {
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
}

// Person is a commit author or pusher.
type Person struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

// Commit is one commit of a push.
type Commit struct {
	ID       string   `json:"id"`
	Message  string   `json:"message"`
	URL      string   `json:"url"`
	Author   Person   `json:"author"`
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Removed  []string `json:"removed"`
}

// IsExternalCommit reports whether c was written by someone other than
// mdtasks. Commits made by the persistence layer carry fixed messages.
func IsExternalCommit(c Commit) bool {
	msg := strings.TrimSpace(c.Message)
	return !botUpdatePattern.MatchString(msg) && !botInitPattern.MatchString(msg)
}

// Touches reports whether c added or modified the file at path.
func (c Commit) Touches(path string) bool {
	for _, list := range [][]string{c.Added, c.Modified} {
		for _, p := range list {
			if p != "" && strings.HasSuffix(path, p) {
				return true
			}
		}
	}
	return false
}

// CommitSource reads file contents at historical commits.
type CommitSource interface {
	GetAt(ctx context.Context, path, ref string) (string, error)
	ParentSHA(ctx context.Context, sha string) (string, error)
}

// Notification is one commit's task changes.
type Notification struct {
	Repository string          `json:"repository"`
	Commit     diff.CommitInfo `json:"commit"`
	Diff       diff.TaskDiff   `json:"diff"`
	Text       string          `json:"text"`
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Result summarizes one push.
type Result struct {
	Considered int `json:"considered"`
	Notified   int `json:"notified"`
	Failed     int `json:"failed"`
}

// Handler processes push events for one task file.
type Handler struct {
	source   CommitSource
	path     string
	branch   string
	notifier Notifier
	logger   *log.Logger
}

// NewHandler returns a Handler watching path. When branch is set, pushes to
// other branches are ignored.
func NewHandler(source CommitSource, path, branch string, notifier Notifier, logger *log.Logger) *Handler {
	return &Handler{
		source:   source,
		path:     path,
		branch:   branch,
		notifier: notifier,
		logger:   logging.OrDiscard(logger).With("path", path),
	}
}

// HandlePush diffs every external commit in ev that touched the task file
// against its first parent and notifies when tasks changed. A failing
// commit is logged and counted; the others are still processed.
func (h *Handler) HandlePush(ctx context.Context, ev PushEvent) Result {
	var res Result
	if h.branch != "" && ev.Ref != "" && ev.Ref != "refs/heads/"+h.branch {
		h.logger.Debug("ignoring push to other branch", "op", "webhook", "ref", ev.Ref)
		return res
	}

	for _, c := range ev.Commits {
		if !IsExternalCommit(c) || !c.Touches(h.path) {
			continue
		}
		res.Considered++
		notified, err := h.handleCommit(ctx, ev.Repository, c)
		if err != nil {
			res.Failed++
			h.logger.Error("failed to process commit", "op", "webhook", "commit", c.ID, "err", err)
			continue
		}
		if notified {
			res.Notified++
		}
	}
	h.logger.Info("processed push", "op", "webhook", "ref", ev.Ref,
		"commits", len(ev.Commits), "considered", res.Considered, "notified", res.Notified, "failed", res.Failed)
	return res
}

func (h *Handler) handleCommit(ctx context.Context, repo Repository, c Commit) (bool, error) {
	after, err := h.source.GetAt(ctx, h.path, c.ID)
	if err != nil {
		return false, err
	}
	before := h.parentContent(ctx, c.ID)

	d := diff.Analyze(before, after)
	if !diff.HasChanges(d) {
		h.logger.Debug("commit has no task changes", "op", "webhook", "commit", c.ID)
		return false, nil
	}

	author := c.Author.Name
	if author == "" {
		author = c.Author.Username
	}
	info := diff.CommitInfo{SHA: c.ID, Message: c.Message, Author: author, URL: c.URL}
	n := Notification{
		Repository: repo.FullName,
		Commit:     info,
		Diff:       d,
		Text:       diff.Render(d, info),
	}
	if err := h.notifier.Notify(ctx, n); err != nil {
		return false, err
	}
	return true, nil
}

// parentContent returns the task file at the commit's first parent, or ""
// when there is no parent or it cannot be read.
func (h *Handler) parentContent(ctx context.Context, sha string) string {
	parent, err := h.source.ParentSHA(ctx, sha)
	if err != nil {
		h.logger.Warn("could not resolve parent commit, diffing against empty", "op", "webhook", "commit", sha, "err", err)
		return ""
	}
	if parent == "" {
		return ""
	}
	content, err := h.source.GetAt(ctx, h.path, parent)
	if err != nil {
		h.logger.Warn("could not read parent content, diffing against empty", "op", "webhook", "commit", sha, "parent", parent, "err", err)
		return ""
	}
	return content
}
