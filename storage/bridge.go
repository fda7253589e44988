package storage

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"boardsync/domain"
	"boardsync/subscription"
)

// Queue is the dequeue side of a message queue.
type Queue interface {
	Dequeue(ctx context.Context) (text, msgID, popReceipt string, ok bool, err error)
	Delete(ctx context.Context, msgID, popReceipt string) error
}

// AzureQueue adapts an azqueue client to the Queue interface.
type AzureQueue struct {
	client *azqueue.QueueClient
}

// NewAzureQueue creates a queue consumer from the given connection string.
func NewAzureQueue(connStr, queueName string) (*AzureQueue, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	client, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &opts)
	if err != nil {
		return nil, err
	}
	return &AzureQueue{client: client}, nil
}

func (q *AzureQueue) Dequeue(ctx context.Context) (string, string, string, bool, error) {
	resp, err := q.client.DequeueMessage(ctx, nil)
	if err != nil {
		return "", "", "", false, err
	}
	if len(resp.Messages) == 0 {
		return "", "", "", false, nil
	}
	msg := resp.Messages[0]
	return *msg.MessageText, *msg.MessageID, *msg.PopReceipt, true, nil
}

func (q *AzureQueue) Delete(ctx context.Context, msgID, popReceipt string) error {
	_, err := q.client.DeleteMessage(ctx, msgID, popReceipt, nil)
	return err
}

// Bridge drains the domain event queue and republishes each event on the
// board's pub/sub channel, so subscribed viewers see changes as they land in
// the read model. Malformed messages are deleted without publishing.
type Bridge struct {
	queue Queue
	rc    *redis.Client
	idle  time.Duration
}

// NewBridge creates a bridge between the given queue and Redis client.
func NewBridge(queue Queue, rc *redis.Client) *Bridge {
	return &Bridge{queue: queue, rc: rc, idle: time.Second}
}

// Run consumes until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		text, msgID, popReceipt, ok, err := b.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Error("dequeue event")
			b.sleep(ctx)
			continue
		}
		if !ok {
			b.sleep(ctx)
			continue
		}
		var ev domain.Event
		if err := sonic.UnmarshalString(text, &ev); err != nil {
			log.WithError(err).Error("unable to parse queued event")
		} else if ev.BoardID == "" {
			log.WithField("eventId", ev.ID).Warn("queued event has no board id")
		} else if err := b.rc.Publish(ctx, subscription.ChannelPrefix+ev.BoardID, text).Err(); err != nil {
			log.WithError(err).Error("publish event")
			b.sleep(ctx)
			continue
		}
		if err := b.queue.Delete(ctx, msgID, popReceipt); err != nil {
			log.WithError(err).Error("delete queued event")
		}
	}
}

func (b *Bridge) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(b.idle):
	}
}
