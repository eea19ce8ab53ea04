package commandlog

import (
	"context"
	"sync"
)

// MemoryLog keeps commands in memory. Tests and ephemeral deployments use
// it; it replays like the durable backends but forgets on restart.
type MemoryLog struct {
	mu   sync.Mutex
	cmds map[string][]Command
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{cmds: make(map[string][]Command)}
}

func (l *MemoryLog) Append(_ context.Context, store, command string, payload any, eventTrackingID, userID string) error {
	cmd, err := encodeCommand(store, command, payload, eventTrackingID, userID)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cmds[store] = append(l.cmds[store], cmd)
	return nil
}

func (l *MemoryLog) LoadAll(_ context.Context, store string) ([]Command, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Command(nil), l.cmds[store]...), nil
}

func (l *MemoryLog) Close() error { return nil }
