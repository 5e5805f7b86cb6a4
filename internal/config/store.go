package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jrdx0/claude-applet/internal/logger"
)

const debounceInterval = 100 * time.Millisecond

// Store owns the durable settings file and notifies subscribers of changes.
//
// Change notification covers both external edits (the user editing the TOML
// file, another process rewriting it) and the store's own writes: Write never
// updates subscribers directly, it persists and lets the file watcher echo
// the new snapshot back. The applet therefore sees exactly one path for
// config changes.
type Store struct {
	mu            sync.RWMutex
	path          string
	current       Snapshot
	watcher       *fsnotify.Watcher
	subscribers   []chan Snapshot
	stopChan      chan struct{}
	debounceTimer *time.Timer
}

// NewStore opens the settings file at path, creating it with defaults on
// first run, and starts watching it for changes. A missing or unparseable
// file that cannot be recovered is fatal: the applet cannot start without an
// initial config.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath()
	}

	loadEnv()

	s := &Store{
		path:     path,
		stopChan: make(chan struct{}),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("%w: create config directory: %v", ErrInitialRead, err)
	}

	snap, err := s.readFile()
	if err != nil {
		if os.IsNotExist(err) {
			snap = DefaultSnapshot()
			if err := s.writeFile(snap); err != nil {
				return nil, fmt.Errorf("%w: create default config: %v", ErrInitialRead, err)
			}
		} else {
			return nil, fmt.Errorf("%w: %v", ErrInitialRead, err)
		}
	}
	s.current = snap

	if err := s.startWatcher(); err != nil {
		return nil, fmt.Errorf("%w: start watcher: %v", ErrInitialRead, err)
	}

	return s, nil
}

// Path returns the settings file path.
func (s *Store) Path() string {
	return s.path
}

// Read returns the current snapshot.
func (s *Store) Read() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Write persists a snapshot. Subscribers are notified through the file
// watcher echo, not synchronously.
func (s *Store) Write(snap Snapshot) error {
	if err := s.writeFile(snap); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Subscribe returns a channel that receives a Snapshot on every settings
// change, including changes the store itself wrote.
func (s *Store) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 8)
	s.mu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.mu.Unlock()
	return ch
}

// Close stops the watcher and detaches subscribers. Subscriber channels are
// never closed: a debounced reload can still be fanning out concurrently,
// and a send must not race a close. Listeners are expected to stop on their
// own signal rather than on channel closure.
func (s *Store) Close() error {
	close(s.stopChan)

	s.mu.Lock()
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.subscribers = nil
	s.mu.Unlock()

	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func (s *Store) readFile() (Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Snapshot{}, err
	}
	return decodeSnapshot(data)
}

// writeFile writes atomically via temp file + rename so the watcher never
// observes a half-written config.
func (s *Store) writeFile(snap Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		if removeErr := os.Remove(tmp); removeErr != nil {
			logger.Error("failed to remove temp config", "error", removeErr)
		}
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (s *Store) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = watcher

	// Watch the directory so file replacement via rename is caught.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return err
	}

	go s.watchLoop()
	return nil
}

func (s *Store) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(s.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				s.mu.Lock()
				if s.debounceTimer != nil {
					s.debounceTimer.Stop()
				}
				s.debounceTimer = time.AfterFunc(debounceInterval, s.handleFileChange)
				s.mu.Unlock()
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("config watcher error", "error", err)

		case <-s.stopChan:
			return
		}
	}
}

// handleFileChange reloads the file and fans the new snapshot out. A file
// that briefly fails to parse mid-edit is skipped; the next write fires the
// watcher again.
func (s *Store) handleFileChange() {
	snap, err := s.readFile()
	if err != nil {
		logger.Warn("config reload skipped", "error", err)
		return
	}

	s.mu.Lock()
	s.current = snap
	subs := make([]chan Snapshot, len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- snap:
		default:
			// Subscriber not draining, drop rather than block the watcher.
		}
	}
}
