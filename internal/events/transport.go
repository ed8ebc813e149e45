package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// HeaderPartitionKey carries the partition key on NATS messages.
const HeaderPartitionKey = "Partition-Key"

// ErrTransportNotConnected is returned by Send before Connect succeeded.
var ErrTransportNotConnected = errors.New("event transport not connected")

// Message is one serialised event ready for the broker.
type Message struct {
	Topic   string
	Key     string
	Payload []byte
}

// Transport moves serialised events to a broker.
type Transport interface {
	Name() string
	Connect(ctx context.Context) error
	Send(ctx context.Context, msg Message) error
	Close() error
}

// NATSDialer opens a NATS connection.
type NATSDialer func(ctx context.Context) (*nats.Conn, error)

// NATSTransport publishes each topic to the subject "<prefix>.<topic>".
type NATSTransport struct {
	dial   NATSDialer
	prefix string

	mu   sync.RWMutex
	conn *nats.Conn
}

// NewNATSTransport builds a NATS transport; the connection is opened by Connect.
func NewNATSTransport(dial NATSDialer, prefix string) *NATSTransport {
	return &NATSTransport{dial: dial, prefix: strings.Trim(prefix, ".")}
}

func (t *NATSTransport) Name() string { return "nats" }

func (t *NATSTransport) Connect(ctx context.Context) error {
	if t.dial == nil {
		return errors.New("nats dialer not configured")
	}
	conn, err := t.dial(ctx)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	return nil
}

// Subject returns the NATS subject used for topic.
func (t *NATSTransport) Subject(topic string) string {
	if t.prefix == "" {
		return topic
	}
	return t.prefix + "." + topic
}

func (t *NATSTransport) Send(_ context.Context, msg Message) error {
	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()
	if conn == nil {
		return ErrTransportNotConnected
	}

	out := nats.NewMsg(t.Subject(msg.Topic))
	out.Data = msg.Payload
	if msg.Key != "" {
		out.Header.Set(HeaderPartitionKey, msg.Key)
	}
	if err := conn.PublishMsg(out); err != nil {
		return fmt.Errorf("nats publish %s: %w", out.Subject, err)
	}
	return nil
}

func (t *NATSTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Drain()
}

// RedisDialer opens a Redis client.
type RedisDialer func(ctx context.Context) (*redis.Client, error)

// RedisEnvelope is the message body written to Redis channels.
type RedisEnvelope struct {
	Key     string          `json:"key,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// RedisTransport publishes each topic to the channel "<prefix>:<topic>".
type RedisTransport struct {
	dial        RedisDialer
	prefix      string
	closeClient bool

	mu     sync.RWMutex
	client *redis.Client
}

// NewRedisTransport builds a transport that dials its own client and closes it on Close.
func NewRedisTransport(dial RedisDialer, prefix string) *RedisTransport {
	return &RedisTransport{dial: dial, prefix: strings.Trim(prefix, ":"), closeClient: true}
}

// NewRedisTransportWithClient reuses an existing client, which Close leaves open.
func NewRedisTransportWithClient(client *redis.Client, prefix string) *RedisTransport {
	return &RedisTransport{
		dial: func(ctx context.Context) (*redis.Client, error) {
			if err := client.Ping(ctx).Err(); err != nil {
				return nil, err
			}
			return client, nil
		},
		prefix: strings.Trim(prefix, ":"),
	}
}

func (t *RedisTransport) Name() string { return "redis" }

func (t *RedisTransport) Connect(ctx context.Context) error {
	if t.dial == nil {
		return errors.New("redis dialer not configured")
	}
	client, err := t.dial(ctx)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.client = client
	t.mu.Unlock()
	return nil
}

// Channel returns the Redis channel used for topic.
func (t *RedisTransport) Channel(topic string) string {
	if t.prefix == "" {
		return topic
	}
	return t.prefix + ":" + topic
}

func (t *RedisTransport) Send(ctx context.Context, msg Message) error {
	t.mu.RLock()
	client := t.client
	t.mu.RUnlock()
	if client == nil {
		return ErrTransportNotConnected
	}

	body, err := json.Marshal(RedisEnvelope{Key: msg.Key, Payload: msg.Payload})
	if err != nil {
		return err
	}
	channel := t.Channel(msg.Topic)
	if err := client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

func (t *RedisTransport) Close() error {
	t.mu.Lock()
	client := t.client
	t.client = nil
	t.mu.Unlock()
	if client == nil || !t.closeClient {
		return nil
	}
	return client.Close()
}
