package logging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// RejectionLogConfig configures a RejectionLog.
type RejectionLogConfig struct {
	Path     string // default /var/log/aclc/rejections.log
	MaxSize  int64  // bytes before rotation, default 10MB
	MaxFiles int    // rotated files kept, default 5
}

// RejectionLog appends rejections to a file as JSON lines, rotating it
// once it grows past MaxSize.
type RejectionLog struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	maxSize  int64
	maxFiles int
	written  int64
}

// NewRejectionLog opens (or creates) the log file.
func NewRejectionLog(cfg RejectionLogConfig) (*RejectionLog, error) {
	path := cfg.Path
	if path == "" {
		path = "/var/log/aclc/rejections.log"
	}
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = 10 * 1024 * 1024
	}
	maxFiles := cfg.MaxFiles
	if maxFiles <= 0 {
		maxFiles = 5
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open rejection log: %w", err)
	}
	rl := &RejectionLog{
		file:     f,
		path:     path,
		maxSize:  maxSize,
		maxFiles: maxFiles,
	}
	if info, err := f.Stat(); err == nil {
		rl.written = info.Size()
	}
	return rl, nil
}

// Write appends rec as one JSON line.
func (rl *RejectionLog) Write(rec RejectionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.file == nil {
		return fmt.Errorf("rejection log closed")
	}
	n, err := rl.file.Write(data)
	if err != nil {
		return err
	}
	rl.written += int64(n)
	if rl.written >= rl.maxSize {
		rl.rotate()
	}
	return nil
}

// Follow writes every record delivered on sub until the channel is
// closed or stop is closed.
func (rl *RejectionLog) Follow(sub *Subscription, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case rec, ok := <-sub.C:
			if !ok {
				return
			}
			if err := rl.Write(rec); err != nil {
				slog.Warn("rejection log write failed", "path", rl.path, "err", err)
			}
		}
	}
}

// Close closes the file.
func (rl *RejectionLog) Close() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.file != nil {
		err := rl.file.Close()
		rl.file = nil
		return err
	}
	return nil
}

func (rl *RejectionLog) rotate() {
	rl.file.Close()
	rl.file = nil

	for i := rl.maxFiles - 1; i > 0; i-- {
		os.Rename(fmt.Sprintf("%s.%d", rl.path, i), fmt.Sprintf("%s.%d", rl.path, i+1))
	}
	os.Rename(rl.path, rl.path+".1")
	os.Remove(fmt.Sprintf("%s.%d", rl.path, rl.maxFiles+1))

	f, err := os.OpenFile(rl.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		slog.Warn("failed to reopen rotated rejection log", "err", err)
		return
	}
	rl.file = f
	rl.written = 0
}
