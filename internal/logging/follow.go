// pattern: Imperative Shell

package logging

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// pollInterval is the safety net for filesystems that drop notifications.
const pollInterval = 2 * time.Second

// ReadEntries decodes every complete line of the log file at path.
// Lines that are not log entries are skipped.
func ReadEntries(path string, emit func(LogEntry)) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if entry, err := ParseEntry(scanner.Bytes()); err == nil {
			emit(entry)
		}
	}
	return scanner.Err()
}

// Follower tails a JSON log file and emits entries as they are appended.
// Rotation (rename + create) is handled by reopening the new file from the start.
type Follower struct {
	filePath string
	emit     func(LogEntry)
	watcher  *fsnotify.Watcher

	mu     sync.Mutex
	file   *os.File
	offset int64
	closed bool
}

// NewFollower creates a follower for filePath. emit is called from the
// goroutine running Start.
func NewFollower(filePath string, emit func(LogEntry)) (*Follower, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Follower{
		filePath: filePath,
		emit:     emit,
		watcher:  watcher,
	}, nil
}

// Start emits existing content when fromStart is set, then follows new
// writes until ctx is cancelled.
func (f *Follower) Start(ctx context.Context, fromStart bool) error {
	// Watch parent directory (file may not exist yet)
	dir := filepath.Dir(f.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := f.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	f.mu.Lock()
	if f.openFile(!fromStart) == nil {
		f.readNewLines()
	}
	f.mu.Unlock()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = f.Close()
			return ctx.Err()

		case event, ok := <-f.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(f.filePath) {
				continue
			}

			f.mu.Lock()
			switch {
			case event.Has(fsnotify.Create):
				f.closeFile()
				_ = f.openFile(false)
				f.readNewLines()
			case event.Has(fsnotify.Write):
				f.readNewLines()
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				f.closeFile()
			}
			f.mu.Unlock()

		case <-ticker.C:
			f.mu.Lock()
			if f.file == nil {
				_ = f.openFile(false)
			}
			f.readNewLines()
			f.mu.Unlock()

		case _, ok := <-f.watcher.Errors:
			if !ok {
				return nil
			}
			// Transient watcher errors are covered by the polling ticker.
		}
	}
}

// Close stops watching and releases the file handle. Safe to call multiple times.
func (f *Follower) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	f.closeFile()
	return f.watcher.Close()
}

func (f *Follower) openFile(seekToEnd bool) error {
	if f.file != nil {
		return nil
	}

	file, err := os.Open(f.filePath)
	if err != nil {
		return err
	}

	var offset int64
	if seekToEnd {
		offset, err = file.Seek(0, io.SeekEnd)
		if err != nil {
			_ = file.Close()
			return err
		}
	}

	f.file = file
	f.offset = offset
	return nil
}

func (f *Follower) closeFile() {
	if f.file != nil {
		_ = f.file.Close()
		f.file = nil
		f.offset = 0
	}
}

// readNewLines emits complete lines appended since the last read. A trailing
// partial line is left for the next call.
func (f *Follower) readNewLines() {
	if f.file == nil {
		return
	}
	if _, err := f.file.Seek(f.offset, io.SeekStart); err != nil {
		return
	}

	reader := bufio.NewReader(f.file)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}
		f.offset += int64(len(line))
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if entry, perr := ParseEntry(line); perr == nil {
			f.emit(entry)
		}
	}
}
