// Package store defines the compare-and-swap document store the task
// document is persisted in, plus in-memory and local-file implementations.
//
// Every implementation returns an opaque token with each read. A write must
// present the token of the state it was based on; if the document changed in
// between, the write is rejected with ErrConflict. An empty token means the
// caller expects the document not to exist yet.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned by Put when the presented token is stale.
	ErrConflict = errors.New("document changed since it was read")
)

// Identity names a document: a path and an optional ref such as a branch.
type Identity struct {
	Path string `json:"path" toml:"path"`
	Ref  string `json:"ref,omitempty" toml:"ref"`
}

func (id Identity) String() string {
	if id.Ref == "" {
		return id.Path
	}
	return id.Path + "@" + id.Ref
}

// Document is the content of a document and the token identifying that
// version of it.
type Document struct {
	Content string
	Token   string
}

// Store reads and conditionally writes whole documents.
type Store interface {
	// Get returns the current document or ErrNotFound.
	Get(ctx context.Context, id Identity) (Document, error)
	// Put writes content if token matches the current version and returns
	// the new token. message describes the change for stores that keep
	// history. A stale token yields ErrConflict.
	Put(ctx context.Context, id Identity, content, token, message string) (string, error)
}

// IsConflict reports whether err is a compare-and-swap rejection.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotFound reports whether err means the document does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ContentToken derives a version token from content. Stores without a native
// version number use it.
func ContentToken(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
