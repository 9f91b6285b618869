package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	logFilePrefix      = "medications-"
	defaultMaxFileSize = 100 * 1024 * 1024
	cleanupInterval    = 24 * time.Hour
)

var numberedLogRegex = regexp.MustCompile(`_(\d{2})\.log$`)

// RotatingLogger is an io.Writer that writes to one file per ISO week,
// starting a numbered file for the week when the size limit is reached.
// Files older than the retention period are removed once a day.
type RotatingLogger struct {
	dir         string
	retention   time.Duration
	maxFileSize int64

	mu   sync.Mutex
	file *os.File
	week string
	name string
	size int64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRotatingLogger creates a logger without opening any file.
func NewRotatingLogger(dir string, retentionWeeks int, maxFileSize int64) *RotatingLogger {
	if maxFileSize <= 0 {
		maxFileSize = defaultMaxFileSize
	}
	if retentionWeeks <= 0 {
		retentionWeeks = 4
	}
	return &RotatingLogger{
		dir:         dir,
		retention:   time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxFileSize: maxFileSize,
	}
}

// OpenRotatingLogger creates the directory, opens the current week's file and
// starts the daily cleanup.
func OpenRotatingLogger(dir string, retentionWeeks int, maxFileSize int64) (*RotatingLogger, error) {
	if dir == "" {
		return nil, fmt.Errorf("log directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	rl := NewRotatingLogger(dir, retentionWeeks, maxFileSize)
	rl.mu.Lock()
	err := rl.rotate(weekKey(time.Now()), false)
	rl.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := rl.cleanup(time.Now()); err != nil {
		slog.Warn("Failed to clean up old logs", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	rl.cancel = cancel
	rl.done = make(chan struct{})
	go rl.cleanupLoop(ctx)

	return rl, nil
}

// weekKey returns the ISO week in YYYY-Www form.
func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// rotate opens the file to use for week. Caller holds mu.
func (rl *RotatingLogger) rotate(week string, full bool) error {
	if rl.file != nil {
		_ = rl.file.Close()
		rl.file = nil
	}

	name := rl.pickFile(week, full)
	path := filepath.Join(rl.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	rl.file, rl.week, rl.name, rl.size = f, week, name, size
	return nil
}

// pickFile returns the base file of the week, or its highest numbered file
// while that one has room, or the next number.
func (rl *RotatingLogger) pickFile(week string, full bool) string {
	base := logFilePrefix + week + ".log"
	if !full {
		info, err := os.Stat(filepath.Join(rl.dir, base))
		if err != nil || info.Size() < rl.maxFileSize {
			return base
		}
	}

	matches, _ := filepath.Glob(filepath.Join(rl.dir, logFilePrefix+week+"_??.log"))
	highest := 0
	var highestPath string
	for _, m := range matches {
		sub := numberedLogRegex.FindStringSubmatch(m)
		if sub == nil {
			continue
		}
		if n, _ := strconv.Atoi(sub[1]); n > highest {
			highest, highestPath = n, m
		}
	}

	if highestPath != "" && filepath.Base(highestPath) != rl.name {
		if info, err := os.Stat(highestPath); err == nil && info.Size() < rl.maxFileSize {
			return filepath.Base(highestPath)
		}
	}
	return fmt.Sprintf("%s%s_%02d.log", logFilePrefix, week, highest+1)
}

// Write implements io.Writer.
func (rl *RotatingLogger) Write(p []byte) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	week := weekKey(time.Now())
	switch {
	case rl.file == nil || rl.week != week:
		if err := rl.rotate(week, false); err != nil {
			return 0, err
		}
	case rl.size > 0 && rl.size+int64(len(p)) > rl.maxFileSize:
		if err := rl.rotate(week, true); err != nil {
			return 0, err
		}
	}

	n, err := rl.file.Write(p)
	rl.size += int64(n)
	return n, err
}

// CurrentFile returns the name of the file being written.
func (rl *RotatingLogger) CurrentFile() string {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.name
}

func (rl *RotatingLogger) cleanupLoop(ctx context.Context) {
	defer close(rl.done)
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := rl.cleanup(now); err != nil {
				slog.Warn("Failed to clean up old logs", "error", err)
			}
		}
	}
}

// cleanup removes log files last modified before the retention period.
func (rl *RotatingLogger) cleanup(now time.Time) error {
	entries, err := os.ReadDir(rl.dir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := now.Add(-rl.retention)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, logFilePrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		_ = os.Remove(filepath.Join(rl.dir, name))
	}
	return nil
}

// Close stops the cleanup goroutine and closes the current file.
func (rl *RotatingLogger) Close() error {
	if rl.cancel != nil {
		rl.cancel()
		<-rl.done
		rl.cancel = nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.file == nil {
		return nil
	}
	err := rl.file.Close()
	rl.file = nil
	return err
}
