package duelboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrAlexPushkin/LetsGoDuel/pkg/duel"
	"github.com/redis/go-redis/v9"
)

// DefaultInflightTTL bounds how long a crashed reconciliation can block a signature.
const DefaultInflightTTL = 2 * time.Minute

// reserveScript atomically checks the processed set and takes the in-flight marker.
// KEYS[1] = processed set, KEYS[2] = in-flight key, ARGV[1] = signature, ARGV[2] = ttl ms
var reserveScript = redis.NewScript(`
if redis.call('SISMEMBER', KEYS[1], ARGV[1]) == 1 then
	return 0
end
if redis.call('SET', KEYS[2], '1', 'NX', 'PX', ARGV[2]) then
	return 1
end
return 0
`)

// Client provides instance-scoped Redis operations for the duel service.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
	inflightTTL  time.Duration
}

// NewClient creates a new client for the specified instance.
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
		inflightTTL:  DefaultInflightTTL,
	}, nil
}

// InstanceName returns the namespace this client writes under.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PublishMessage mirrors an observer notification to the duel_events channel.
func (c *Client) PublishMessage(ctx context.Context, msg *duel.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal duel message: %w", err)
	}

	channel := DuelEventsChannel(c.instanceName)
	if err := c.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish duel message: %w", err)
	}

	return nil
}

// Reserve marks a ledger signature as in flight for a duel.
// Returns false if the signature was already processed or is being processed.
// Implements reconcile.SignatureLedger.
func (c *Client) Reserve(ctx context.Context, duelID, signature string) (bool, error) {
	keys := []string{
		SignaturesKey(c.instanceName, duelID),
		InflightKey(c.instanceName, duelID, signature),
	}

	n, err := reserveScript.Run(ctx, c.rdb, keys, signature, c.inflightTTL.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to reserve signature: %w", err)
	}

	return n == 1, nil
}

// Commit records a reserved signature as processed and drops its in-flight marker.
func (c *Client) Commit(ctx context.Context, duelID, signature string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, SignaturesKey(c.instanceName, duelID), signature)
		pipe.Del(ctx, InflightKey(c.instanceName, duelID, signature))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit signature: %w", err)
	}
	return nil
}

// Release drops the in-flight marker so a redelivery of the signature can retry.
func (c *Client) Release(ctx context.Context, duelID, signature string) error {
	if err := c.rdb.Del(ctx, InflightKey(c.instanceName, duelID, signature)).Err(); err != nil {
		return fmt.Errorf("failed to release signature: %w", err)
	}
	return nil
}

// PushAnnouncement appends text to the outbound announcement queue.
func (c *Client) PushAnnouncement(ctx context.Context, text string) error {
	if err := c.rdb.RPush(ctx, AnnouncementsKey(c.instanceName), text).Err(); err != nil {
		return fmt.Errorf("failed to queue announcement: %w", err)
	}
	return nil
}

// Announcements returns up to limit queued announcements, oldest first, without removing them.
func (c *Client) Announcements(ctx context.Context, limit int64) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}
	texts, err := c.rdb.LRange(ctx, AnnouncementsKey(c.instanceName), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read announcements: %w", err)
	}
	return texts, nil
}

// Subscription represents an active Pub/Sub subscription to duel events.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan *duel.Message
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of mirrored observer notifications.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *duel.Message {
	return s.events
}

// Errors returns the channel of subscription errors.
// The subscription continues after errors; malformed messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeMessages subscribes to the duel_events mirror for this instance.
// Redis Pub/Sub is at-most-once: a slow watcher may miss messages.
func (c *Client) SubscribeMessages(ctx context.Context) (*Subscription, error) {
	channel := DuelEventsChannel(c.instanceName)
	pubsub := c.rdb.Subscribe(ctx, channel)

	// Wait for the subscription to be confirmed so no message published
	// after this call returns is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to duel events: %w", err)
	}

	eventsChan := make(chan *duel.Message, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var m duel.Message
				if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal duel event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &m:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
