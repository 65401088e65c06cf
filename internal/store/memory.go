package store

import (
	"context"
	"fmt"
	"sync"
)

// Commit records one accepted write to a Memory store.
type Commit struct {
	Identity Identity
	Message  string
	Token    string
}

// Memory is a Store kept in process memory. Tokens are version counters.
type Memory struct {
	mu      sync.Mutex
	docs    map[Identity]memoryDoc
	version int
	commits []Commit
}

type memoryDoc struct {
	content string
	token   string
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[Identity]memoryDoc)}
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, id Identity) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{Content: doc.content, Token: doc.token}, nil
}

// Put implements Store.
func (m *Memory) Put(ctx context.Context, id Identity, content, token, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, exists := m.docs[id]
	switch {
	case exists && current.token != token:
		return "", fmt.Errorf("%s: %w", id, ErrConflict)
	case !exists && token != "":
		return "", fmt.Errorf("%s: %w", id, ErrConflict)
	}
	m.version++
	next := fmt.Sprintf("v%d", m.version)
	m.docs[id] = memoryDoc{content: content, token: next}
	m.commits = append(m.commits, Commit{Identity: id, Message: message, Token: next})
	return next, nil
}

// Commits returns the accepted writes in order.
func (m *Memory) Commits() []Commit {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Commit, len(m.commits))
	copy(out, m.commits)
	return out
}
