// Package persist loads and saves the task document through a
// compare-and-swap store.
//
// Every operation starts from a fresh read; nothing is cached between calls.
// Concurrent writers are reconciled by the store's compare-and-swap and the
// bounded retry in package cas, never by locks held here.
package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nibzard/mdtasks/internal/cas"
	"github.com/nibzard/mdtasks/internal/logging"
	"github.com/nibzard/mdtasks/internal/markdown"
	"github.com/nibzard/mdtasks/internal/store"
	"github.com/nibzard/mdtasks/internal/task"
)

const (
	// InitMessage is the commit message of the write that creates a missing
	// document.
	InitMessage = "[bot] init"
	// UpdateMessagePrefix starts the commit message of every save.
	UpdateMessagePrefix = "[bot] update - "
	// TimestampLayout formats last_synced and commit timestamps.
	TimestampLayout = "2006-01-02T15:04:05.000Z"

	tracerName = "github.com/nibzard/mdtasks/internal/persist"
)

// ErrNoTimezone is returned by Save when the metadata has no timezone.
var ErrNoTimezone = errors.New("metadata timezone is not set")

// OpError wraps a store failure that is not retried.
type OpError struct {
	Op       string
	Identity store.Identity
	Err      error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Identity, e.Err)
}

// Unwrap returns the underlying error.
func (e *OpError) Unwrap() error {
	return e.Err
}

// Snapshot is the decoded state of the document at one read.
type Snapshot struct {
	Metadata task.Metadata
	Data     task.Data
	// Token identifies the version read. It is empty when the document was
	// missing and could not be created.
	Token string
	// Created is set when this read created the document.
	Created bool
	// Warnings lists rows that could not be decoded.
	Warnings []string
}

// Coordinator reads and writes one task document.
type Coordinator struct {
	store           store.Store
	id              store.Identity
	policy          cas.Policy
	logger          *log.Logger
	now             func() time.Time
	tracer          trace.Tracer
	defaultTimezone string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPolicy sets the retry policy for saves.
func WithPolicy(p cas.Policy) Option {
	return func(c *Coordinator) {
		if p.IsConflict == nil {
			p.IsConflict = store.IsConflict
		}
		c.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) { c.logger = logging.OrDiscard(l) }
}

// WithClock sets the time source used for last_synced and commit messages.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithTracerProvider sets where spans go. The global provider is used by
// default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Coordinator) { c.tracer = tp.Tracer(tracerName) }
}

// WithDefaultTimezone sets the timezone written into a newly created
// document.
func WithDefaultTimezone(tz string) Option {
	return func(c *Coordinator) { c.defaultTimezone = tz }
}

// New returns a Coordinator for the document id in s.
func New(s store.Store, id store.Identity, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:  s,
		id:     id,
		policy: cas.DefaultPolicy(store.IsConflict),
		logger: logging.Discard(),
		now:    time.Now,
		tracer: otel.GetTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("path", id.Path, "ref", id.Ref)
	return c
}

// Identity returns the document this coordinator manages.
func (c *Coordinator) Identity() store.Identity {
	return c.id
}

// Query reads and decodes the document. A missing document is created from
// the default skeleton; if that write fails the skeleton is still returned.
// Invalid tasks are logged and kept as they are.
func (c *Coordinator) Query(ctx context.Context) (Snapshot, error) {
	ctx, span := c.tracer.Start(ctx, "persist.query", trace.WithAttributes(c.attrs()...))
	defer span.End()

	snap, err := c.query(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Snapshot{}, err
	}
	span.SetAttributes(
		attribute.Int("mdtasks.tasks.uncompleted", len(snap.Data.Uncompleted)),
		attribute.Int("mdtasks.tasks.completed", len(snap.Data.Completed)),
		attribute.Bool("mdtasks.document.created", snap.Created),
	)
	span.SetStatus(codes.Ok, "")
	return snap, nil
}

func (c *Coordinator) query(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	doc, err := c.store.Get(ctx, c.id)
	switch {
	case err == nil:
	case store.IsNotFound(err):
		doc.Content = markdown.DefaultContent(c.defaultTimezone)
		token, putErr := c.store.Put(ctx, c.id, doc.Content, "", InitMessage)
		if putErr != nil {
			c.logger.Warn("could not create task document", "op", "query", "err", putErr)
		} else {
			doc.Token = token
			snap.Created = true
			c.logger.Info("created task document", "op", "query")
		}
	default:
		return Snapshot{}, &OpError{Op: "query", Identity: c.id, Err: err}
	}

	result := markdown.Decode(doc.Content)
	for _, w := range result.Warnings {
		c.logger.Warn("skipped table row", "op", "query", "reason", w)
	}
	for i, t := range result.Tasks {
		r := task.Validate(t)
		if !r.Valid {
			c.logger.Error("invalid task", "op", "query", "task", t.Name, "index", i, "errors", r.Messages())
		}
		for _, w := range r.Warnings {
			c.logger.Warn("task warning", "op", "query", "task", t.Name, "warning", w)
		}
	}

	snap.Metadata = result.Metadata
	snap.Data = task.Partition(result.Tasks)
	snap.Token = doc.Token
	snap.Warnings = result.Warnings
	return snap, nil
}

// Save validates, encodes and writes the document. Any invalid uncompleted
// task aborts the save with *task.ValidationErrors before anything is
// written. The tag catalog and last_synced are recomputed. Conflicting
// writes are retried with a fresh token; exhaustion yields
// *cas.ExhaustedError.
func (c *Coordinator) Save(ctx context.Context, data task.Data, meta task.Metadata) error {
	ctx, span := c.tracer.Start(ctx, "persist.save", trace.WithAttributes(c.attrs()...))
	defer span.End()

	attempts, err := c.save(ctx, data, meta)
	span.SetAttributes(attribute.Int("mdtasks.save.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (c *Coordinator) save(ctx context.Context, data task.Data, meta task.Metadata) (int, error) {
	if err := task.ValidateAll(data.Uncompleted); err != nil {
		c.logger.Error("refusing to save invalid tasks", "op", "save", "err", err)
		return 0, err
	}
	if meta.Timezone == "" {
		return 0, ErrNoTimezone
	}

	now := c.now().UTC().Format(TimestampLayout)
	meta.Tags = task.TagCatalog(data.Uncompleted)
	meta.LastSynced = now
	content := markdown.Encode(data, meta)
	message := UpdateMessagePrefix + now

	token, err := c.currentToken(ctx)
	if err != nil {
		return 0, &OpError{Op: "save", Identity: c.id, Err: err}
	}

	write := func(ctx context.Context, token string) error {
		_, err := c.store.Put(ctx, c.id, content, token, message)
		if store.IsConflict(err) {
			c.logger.Warn("document changed during save, retrying", "op", "save")
		}
		return err
	}
	attempts, err := cas.Do(ctx, c.policy, token, c.currentToken, write)
	if err != nil {
		var exhausted *cas.ExhaustedError
		if errors.As(err, &exhausted) {
			exhausted.Subject = c.id.String()
			c.logger.Error("giving up on save", "op", "save", "attempts", attempts)
			return attempts, exhausted
		}
		return attempts, &OpError{Op: "save", Identity: c.id, Err: err}
	}
	c.logger.Info("saved tasks", "op", "save", "attempts", attempts,
		"uncompleted", len(data.Uncompleted), "completed", len(data.Completed))
	return attempts, nil
}

// currentToken reads the token of the stored document. A missing document
// yields the empty token so the next write creates it.
func (c *Coordinator) currentToken(ctx context.Context) (string, error) {
	doc, err := c.store.Get(ctx, c.id)
	if store.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return doc.Token, nil
}

func (c *Coordinator) attrs() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("mdtasks.document.path", c.id.Path),
		attribute.String("mdtasks.document.ref", c.id.Ref),
	}
}
