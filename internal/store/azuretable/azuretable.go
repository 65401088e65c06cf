// Package azuretable keeps the task document as a single Azure Tables
// entity. The entity ETag is the compare-and-swap token.
package azuretable

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"github.com/nibzard/mdtasks/internal/store"
)

// MaxContentBytes is the largest document a string property can hold.
const MaxContentBytes = 64 * 1024

const defaultPartition = "default"

// tableClient is the subset of *aztables.Client the store uses.
type tableClient interface {
	GetEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
	AddEntity(ctx context.Context, entity []byte, options *aztables.AddEntityOptions) (aztables.AddEntityResponse, error)
	UpdateEntity(ctx context.Context, entity []byte, options *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error)
}

type documentEntity struct {
	aztables.Entity
	Path    string `json:"Path"`
	Content string `json:"Content"`
	Message string `json:"Message"`
}

// Store implements store.Store on one table.
type Store struct {
	table tableClient
}

// New wraps an existing table client.
func New(table tableClient) *Store {
	return &Store{table: table}
}

// NewFromConnectionString connects to table, creating it if needed.
func NewFromConnectionString(ctx context.Context, connStr, table string) (*Store, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: 15 * time.Second,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, fmt.Errorf("azure tables client: %w", err)
	}
	client := svc.NewClient(table)
	if _, err := client.CreateTable(ctx, nil); err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
			return nil, fmt.Errorf("create table %s: %w", table, err)
		}
	}
	return New(client), nil
}

// keys maps an identity to entity keys. Row keys may not contain '/', so the
// path is base64url encoded.
func keys(id store.Identity) (partition, row string) {
	partition = id.Ref
	if partition == "" {
		partition = defaultPartition
	}
	return partition, base64.RawURLEncoding.EncodeToString([]byte(id.Path))
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, id store.Identity) (store.Document, error) {
	pk, rk := keys(id)
	resp, err := s.table.GetEntity(ctx, pk, rk, nil)
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return store.Document{}, fmt.Errorf("%s: %w", id, store.ErrNotFound)
		}
		return store.Document{}, fmt.Errorf("get entity %s: %w", id, err)
	}
	var ent documentEntity
	if err := sonic.Unmarshal(resp.Value, &ent); err != nil {
		return store.Document{}, fmt.Errorf("decode entity %s: %w", id, err)
	}
	return store.Document{Content: ent.Content, Token: string(resp.ETag)}, nil
}

// Put implements store.Store. An empty token adds the entity; otherwise the
// entity is replaced only if its ETag still matches.
func (s *Store) Put(ctx context.Context, id store.Identity, content, token, message string) (string, error) {
	if len(content) > MaxContentBytes {
		return "", fmt.Errorf("document %s is %d bytes, table entities hold at most %d", id, len(content), MaxContentBytes)
	}
	pk, rk := keys(id)
	payload, err := sonic.Marshal(documentEntity{
		Entity:  aztables.Entity{PartitionKey: pk, RowKey: rk},
		Path:    id.Path,
		Content: content,
		Message: message,
	})
	if err != nil {
		return "", err
	}

	var etag azcore.ETag
	if token == "" {
		resp, err := s.table.AddEntity(ctx, payload, nil)
		if err != nil {
			return "", wrapWriteError(id, err)
		}
		etag = resp.ETag
	} else {
		match := azcore.ETag(token)
		resp, err := s.table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &match, UpdateMode: aztables.UpdateModeReplace})
		if err != nil {
			return "", wrapWriteError(id, err)
		}
		etag = resp.ETag
	}
	return string(etag), nil
}

// wrapWriteError maps 409 (already exists), 412 (ETag mismatch) and 404
// (deleted since read) to store.ErrConflict.
func wrapWriteError(id store.Identity, err error) error {
	switch statusCode(err) {
	case http.StatusConflict, http.StatusPreconditionFailed, http.StatusNotFound:
		return fmt.Errorf("%s: %w: %v", id, store.ErrConflict, err)
	}
	return fmt.Errorf("write entity %s: %w", id, err)
}

func statusCode(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}
