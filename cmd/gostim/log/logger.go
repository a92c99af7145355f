package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	mu       sync.Mutex
	logFiles []*os.File
)

// NewLogger builds a slog logger writing to stdout and a timestamped file
// under saveDirectory. Debug enables debug-level records (stale timer
// discards, per-tick diagnostics).
func NewLogger(debug bool, saveDirectory, suffix string) (*slog.Logger, error) {
	if saveDirectory == "" {
		saveDirectory = "logs"
	}
	if err := os.MkdirAll(saveDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("error creating log directory: %w", err)
	}

	name := "gostim-" + time.Now().Format("2006-01-02-15-04-05")
	if suffix != "" {
		name += "-" + suffix
	}
	f, err := os.Create(filepath.Join(saveDirectory, name+".log"))
	if err != nil {
		return nil, fmt.Errorf("error creating log file: %w", err)
	}

	mu.Lock()
	logFiles = append(logFiles, f)
	mu.Unlock()

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, f), &slog.HandlerOptions{Level: level})
	return slog.New(handler), nil
}

// FlushLog forces buffered log data to disk, used before reporting a panic.
func FlushLog() {
	mu.Lock()
	defer mu.Unlock()
	for _, f := range logFiles {
		_ = f.Sync()
	}
}

func FlushAndClose() {
	mu.Lock()
	defer mu.Unlock()
	for _, f := range logFiles {
		_ = f.Sync()
		_ = f.Close()
	}
	logFiles = nil
}
