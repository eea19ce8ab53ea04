package commandlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLog records commands in one Redis stream per store. Streams keep
// insertion order and survive process restarts, which is all the replay
// path needs.
type RedisLog struct {
	client    redis.Cmdable
	keyPrefix string
	closer    func() error
}

// NewRedisLog wraps an existing client. keyPrefix namespaces the stream
// keys, e.g. "ocpi:log:".
func NewRedisLog(client redis.Cmdable, keyPrefix string) *RedisLog {
	if keyPrefix == "" {
		keyPrefix = "ocpi:log:"
	}
	return &RedisLog{client: client, keyPrefix: keyPrefix}
}

// WithCloser attaches the underlying connection's Close so the log owns
// the client lifecycle.
func (l *RedisLog) WithCloser(closer func() error) *RedisLog {
	l.closer = closer
	return l
}

func (l *RedisLog) key(store string) string {
	return l.keyPrefix + store
}

// Append XADDs one entry to the store's stream.
func (l *RedisLog) Append(ctx context.Context, store, command string, payload any, eventTrackingID, userID string) error {
	cmd, err := encodeCommand(store, command, payload, eventTrackingID, userID)
	if err != nil {
		return err
	}
	values := map[string]any{
		"command":           cmd.Command,
		"event_tracking_id": cmd.EventTrackingID,
		"ts":                cmd.Timestamp.Format(time.RFC3339Nano),
	}
	if cmd.UserID != "" {
		values["user_id"] = cmd.UserID
	}
	if cmd.Payload != nil {
		values["payload"] = string(cmd.Payload)
	}
	if err := l.client.XAdd(ctx, &redis.XAddArgs{Stream: l.key(store), Values: values}).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", store, err)
	}
	return nil
}

// LoadAll XRANGEs the whole stream in id order.
func (l *RedisLog) LoadAll(ctx context.Context, store string) ([]Command, error) {
	msgs, err := l.client.XRange(ctx, l.key(store), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("xrange %s: %w", store, err)
	}
	cmds := make([]Command, 0, len(msgs))
	for _, msg := range msgs {
		cmd := Command{Store: store}
		if v, ok := msg.Values["command"].(string); ok {
			cmd.Command = v
		}
		if v, ok := msg.Values["event_tracking_id"].(string); ok {
			cmd.EventTrackingID = v
		}
		if v, ok := msg.Values["user_id"].(string); ok {
			cmd.UserID = v
		}
		if v, ok := msg.Values["payload"].(string); ok {
			cmd.Payload = json.RawMessage(v)
		}
		if v, ok := msg.Values["ts"].(string); ok {
			ts, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return nil, fmt.Errorf("%s stream entry %s: bad timestamp: %w", store, msg.ID, err)
			}
			cmd.Timestamp = ts
		}
		if cmd.Command == "" {
			return nil, fmt.Errorf("%s stream entry %s: missing command", store, msg.ID)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// Close closes the underlying client when this log owns it.
func (l *RedisLog) Close() error {
	if l.closer != nil {
		return l.closer()
	}
	return nil
}
