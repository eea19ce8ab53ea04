package commandlog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileLog appends commands as JSON lines, one file per store, under a base
// directory. It favors clarity over write throughput: the log is a
// recovery record, not a hot path.
type FileLog struct {
	dir string

	mu    sync.Mutex
	files map[string]*os.File
}

// NewFileLog creates the base directory if needed.
func NewFileLog(dir string) (*FileLog, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create command log dir: %w", err)
	}
	return &FileLog{dir: dir, files: make(map[string]*os.File)}, nil
}

func (l *FileLog) path(store string) string {
	// Store names are internal identifiers, but keep path traversal out
	// anyway.
	name := strings.ReplaceAll(store, string(os.PathSeparator), "_")
	return filepath.Join(l.dir, name+".jsonl")
}

// Append writes one command as a single JSON line and flushes it.
func (l *FileLog) Append(ctx context.Context, store, command string, payload any, eventTrackingID, userID string) error {
	cmd, err := encodeCommand(store, command, payload, eventTrackingID, userID)
	if err != nil {
		return err
	}
	line, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := l.file(store)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append to %s log: %w", store, err)
	}
	return nil
}

// LoadAll reads every recorded command of store in append order. A missing
// file is an empty log; a malformed line is a hard error.
func (l *FileLog) LoadAll(ctx context.Context, store string) ([]Command, error) {
	f, err := os.Open(l.path(store))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s log: %w", store, err)
	}
	defer f.Close()

	var cmds []Command
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var cmd Command
		if err := json.Unmarshal([]byte(line), &cmd); err != nil {
			return nil, fmt.Errorf("%s log line %d: %w", store, lineNo, err)
		}
		cmds = append(cmds, cmd)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s log: %w", store, err)
	}
	return cmds, nil
}

// Close closes every open log file.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for store, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s log: %w", store, err)
		}
		delete(l.files, store)
	}
	return firstErr
}

// file returns the open append handle for store, creating it on first use.
// Callers hold l.mu.
func (l *FileLog) file(store string) (*os.File, error) {
	if f, ok := l.files[store]; ok {
		return f, nil
	}
	f, err := os.OpenFile(l.path(store), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open %s log: %w", store, err)
	}
	l.files[store] = f
	return f, nil
}
