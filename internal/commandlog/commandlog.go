// Package commandlog provides the append-only durable log every accepted
// mutation is written to, and the replay path used at startup to rebuild
// the in-memory registries. Two backends exist: a JSON-lines file per store
// and a Redis stream per store.
package commandlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Command is one recorded mutation.
type Command struct {
	Store           string          `json:"store"`
	Command         string          `json:"command"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	EventTrackingID string          `json:"event_tracking_id"`
	UserID          string          `json:"user_id,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}

// Log is the durable append-only record of accepted mutations. Append is
// called after the in-memory mutation is already visible to readers;
// LoadAll is called once at startup, never during live request handling.
type Log interface {
	Append(ctx context.Context, store, command string, payload any, eventTrackingID, userID string) error
	LoadAll(ctx context.Context, store string) ([]Command, error)
	Close() error
}

// Applier consumes one replayed command.
type Applier func(ctx context.Context, cmd Command) error

// Replay feeds every recorded command of store, in order, to apply. A
// failing applier aborts the replay: a log that cannot be replayed is a
// hard startup failure, not something to limp past.
func Replay(ctx context.Context, log Log, store string, apply Applier) error {
	cmds, err := log.LoadAll(ctx, store)
	if err != nil {
		return fmt.Errorf("load %s log: %w", store, err)
	}
	for i, cmd := range cmds {
		if err := apply(ctx, cmd); err != nil {
			return fmt.Errorf("replay %s record %d (%s): %w", store, i, cmd.Command, err)
		}
	}
	return nil
}

func encodeCommand(store, command string, payload any, eventTrackingID, userID string) (Command, error) {
	cmd := Command{
		Store:           store,
		Command:         command,
		EventTrackingID: eventTrackingID,
		UserID:          userID,
		Timestamp:       time.Now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Command{}, fmt.Errorf("marshal %s payload: %w", command, err)
		}
		cmd.Payload = data
	}
	return cmd, nil
}
