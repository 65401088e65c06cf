package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/nibzard/mdtasks/internal/logging"
)

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier returns a notifier that logs at info level.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{logger: logging.OrDiscard(logger)}
}

// Notify implements Notifier.
func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	l.logger.Info("tasks changed outside mdtasks",
		"op", "notify",
		"commit", n.Commit.ShortSHA(),
		"author", n.Commit.Author,
		"added", len(n.Diff.Added),
		"removed", len(n.Diff.Removed),
		"modified", len(n.Diff.Modified),
		"completed", len(n.Diff.Completed),
		"reopened", len(n.Diff.Uncompleted),
		"text", n.Text,
	)
	return nil
}

// queueClient is the subset of *azqueue.QueueClient QueueNotifier uses.
type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// QueueMessage is the JSON body of each queued notification.
type QueueMessage struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"createdAt"`
	Payload   Notification `json:"payload"`
}

// QueueNotifier enqueues notifications on an Azure Storage queue for a
// separate delivery worker.
type QueueNotifier struct {
	queue queueClient
	now   func() time.Time
}

// NewQueueNotifier wraps an existing queue client.
func NewQueueNotifier(queue queueClient) *QueueNotifier {
	return &QueueNotifier{queue: queue, now: time.Now}
}

// NewQueueNotifierFromConnectionString connects to queue, creating it if
// needed.
func NewQueueNotifierFromConnectionString(ctx context.Context, connStr, queue string) (*QueueNotifier, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: time.Minute,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queue, &opts)
	if err != nil {
		return nil, fmt.Errorf("azure queue client: %w", err)
	}
	if _, err := q.Create(ctx, nil); err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == "QueueAlreadyExists") {
			return nil, fmt.Errorf("create queue %s: %w", queue, err)
		}
	}
	return NewQueueNotifier(q), nil
}

// Notify implements Notifier.
func (q *QueueNotifier) Notify(ctx context.Context, n Notification) error {
	data, err := sonic.Marshal(QueueMessage{
		ID:        uuid.NewString(),
		CreatedAt: q.now().UTC(),
		Payload:   n,
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if _, err := q.queue.EnqueueMessage(ctx, string(data), nil); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
