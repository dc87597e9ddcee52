// watcher.go: Polling file watcher for re-rendering on change
//
// Philosophy:
// - Polling-based approach for maximum OS portability
// - os.Stat() results cached for CacheTTL using go-timecache timestamps
// - The watched set can be refreshed on every poll through Discover, so
//   templates created after Start are picked up
// - Changes of one poll are delivered together, in path order
//
// Example Usage:
//
//	watcher, err := morpheus.NewWatcher(morpheus.WatcherConfig{
//		PollInterval: 2 * time.Second,
//		Discover:     func() []string { return []string{"data.yaml"} },
//	}, func(events []morpheus.ChangeEvent) {
//		// reload and render
//	})
//	watcher.Start()
//	defer watcher.Stop()
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package morpheus

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/go-errors"
	"github.com/agilira/go-timecache"
	"github.com/rs/zerolog"
)

// ChangeEvent represents a file change notification
type ChangeEvent struct {
	Path     string    // Absolute path that changed
	ModTime  time.Time // New modification time
	Size     int64     // New file size
	IsCreate bool      // File appeared
	IsDelete bool      // File disappeared
	IsModify bool      // Modification time or size changed
}

// Kind names the change: "create", "delete" or "modify".
func (e ChangeEvent) Kind() string {
	switch {
	case e.IsCreate:
		return "create"
	case e.IsDelete:
		return "delete"
	default:
		return "modify"
	}
}

// ChangeCallback receives the changes found by one poll.
type ChangeCallback func(events []ChangeEvent)

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// PollInterval is how often files are checked (default 2s)
	PollInterval time.Duration

	// CacheTTL is how long os.Stat() results are reused (default PollInterval / 2)
	CacheTTL time.Duration

	// MaxWatchedFiles caps the watched set (default 1000)
	MaxWatchedFiles int

	// Discover, when set, returns the paths to watch. It runs on Start and
	// before every poll; paths that appear are reported as created and
	// paths that drop out as deleted.
	Discover func() []string

	// ErrorHandler receives stat failures other than "not exist"
	ErrorHandler func(err error, path string)

	Logger zerolog.Logger
	Audit  *AuditLogger
}

// WithDefaults returns a copy of the configuration with unset fields filled in.
func (c WatcherConfig) WithDefaults() WatcherConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.CacheTTL <= 0 || c.CacheTTL > c.PollInterval {
		c.CacheTTL = c.PollInterval / 2
	}
	if c.MaxWatchedFiles <= 0 {
		c.MaxWatchedFiles = 1000
	}
	return c
}

// fileStat caches file metadata between polls.
type fileStat struct {
	modTime  time.Time
	size     int64
	exists   bool
	cachedAt int64 // timecache nanoseconds
}

func (fs *fileStat) isExpired(ttl time.Duration) bool {
	return timecache.CachedTimeNano()-fs.cachedAt > int64(ttl)
}

// Watcher polls a set of files and reports changes in batches.
type Watcher struct {
	config   WatcherConfig
	onChange ChangeCallback

	files   map[string]fileStat // last seen state per absolute path
	filesMu sync.Mutex

	statCache atomic.Pointer[map[string]fileStat]

	running   atomic.Bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewWatcher creates a watcher. onChange is called from the polling
// goroutine, never concurrently with itself.
func NewWatcher(config WatcherConfig, onChange ChangeCallback) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New(ErrCodeInvalidConfig, "change callback cannot be nil")
	}

	w := &Watcher{
		config:   config.WithDefaults(),
		onChange: onChange,
		files:    make(map[string]fileStat),
	}
	empty := make(map[string]fileStat)
	w.statCache.Store(&empty)

	return w, nil
}

// Watch adds a path to the watched set. Missing files are allowed and are
// reported as created once they appear.
func (w *Watcher) Watch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, ErrCodeInvalidConfig, "invalid file path").
			WithContext("path", path)
	}

	w.filesMu.Lock()
	defer w.filesMu.Unlock()

	if _, exists := w.files[absPath]; exists {
		return nil
	}
	if len(w.files) >= w.config.MaxWatchedFiles {
		return errors.New(ErrCodeInvalidConfig,
			fmt.Sprintf("maximum watched files exceeded (%d)", w.config.MaxWatchedFiles)).
			WithContext("path", absPath)
	}

	stat, _ := w.getStat(absPath)
	w.files[absPath] = stat
	return nil
}

// Unwatch removes a path from the watched set.
func (w *Watcher) Unwatch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, ErrCodeInvalidConfig, "invalid file path").
			WithContext("path", path)
	}

	w.filesMu.Lock()
	delete(w.files, absPath)
	w.filesMu.Unlock()

	w.removeFromCache(absPath)
	return nil
}

// WatchedFiles returns the number of watched paths.
func (w *Watcher) WatchedFiles() int {
	w.filesMu.Lock()
	defer w.filesMu.Unlock()
	return len(w.files)
}

// Start runs discovery once and begins polling in the background.
func (w *Watcher) Start() error {
	if !w.running.CompareAndSwap(false, true) {
		return errors.New(ErrCodeWatcherBusy, "watcher is already running")
	}

	if w.config.Discover != nil {
		for _, path := range w.config.Discover() {
			if err := w.Watch(path); err != nil {
				w.running.Store(false)
				return err
			}
		}
	}

	w.stopCh = make(chan struct{})
	w.stoppedCh = make(chan struct{})
	go w.watchLoop()

	w.config.Logger.Debug().Int("files", w.WatchedFiles()).Dur("interval", w.config.PollInterval).
		Msg("watcher started")
	return nil
}

// Stop stops polling and waits for an in-flight callback to return.
func (w *Watcher) Stop() error {
	if !w.running.CompareAndSwap(true, false) {
		return errors.New(ErrCodeWatcherStopped, "watcher is not running")
	}
	close(w.stopCh)
	<-w.stoppedCh
	return nil
}

// IsRunning returns true if the watcher is currently polling.
func (w *Watcher) IsRunning() bool {
	return w.running.Load()
}

func (w *Watcher) watchLoop() {
	defer close(w.stoppedCh)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			if events := w.Poll(); len(events) > 0 {
				w.onChange(events)
			}
		}
	}
}

// Poll refreshes the watched set through Discover, checks every file once
// and returns the changes in path order. The callback is not invoked.
func (w *Watcher) Poll() []ChangeEvent {
	var events []ChangeEvent

	w.filesMu.Lock()
	if w.config.Discover != nil {
		events = append(events, w.syncLocked(w.config.Discover())...)
	}
	paths := make([]string, 0, len(w.files))
	for path := range w.files {
		paths = append(paths, path)
	}
	w.filesMu.Unlock()

	for _, path := range paths {
		if event, changed := w.checkFile(path); changed {
			events = append(events, event)
		}
	}

	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	for _, event := range events {
		w.config.Logger.Debug().Str("path", event.Path).Str("change", event.Kind()).Msg("file changed")
		w.config.Audit.LogFileChanged(event)
	}
	return events
}

// syncLocked aligns the watched set with discovered. Newly discovered files
// that already exist count as created; dropped files count as deleted.
func (w *Watcher) syncLocked(discovered []string) []ChangeEvent {
	var events []ChangeEvent
	wanted := make(map[string]bool, len(discovered))

	for _, path := range discovered {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		wanted[absPath] = true
		if _, exists := w.files[absPath]; exists || len(w.files) >= w.config.MaxWatchedFiles {
			continue
		}
		stat, _ := w.getStat(absPath)
		w.files[absPath] = stat
		if stat.exists {
			events = append(events, ChangeEvent{Path: absPath, ModTime: stat.modTime, Size: stat.size, IsCreate: true})
		}
	}

	for path, stat := range w.files {
		if wanted[path] {
			continue
		}
		delete(w.files, path)
		w.removeFromCache(path)
		if stat.exists {
			events = append(events, ChangeEvent{Path: path, IsDelete: true})
		}
	}

	return events
}

// checkFile compares the current stat of path with the last seen state.
func (w *Watcher) checkFile(path string) (ChangeEvent, bool) {
	current, err := w.getStat(path)
	if err != nil && !os.IsNotExist(err) && w.config.ErrorHandler != nil {
		w.config.ErrorHandler(errors.Wrap(err, ErrCodeIOError, "failed to stat file").
			WithContext("path", path), path)
		return ChangeEvent{}, false
	}

	w.filesMu.Lock()
	defer w.filesMu.Unlock()

	last, watched := w.files[path]
	if !watched {
		return ChangeEvent{}, false
	}
	w.files[path] = current

	event := ChangeEvent{Path: path, ModTime: current.modTime, Size: current.size}
	switch {
	case last.exists && !current.exists:
		event.IsDelete = true
	case !last.exists && current.exists:
		event.IsCreate = true
	case current.exists && (!current.modTime.Equal(last.modTime) || current.size != last.size):
		event.IsModify = true
	default:
		return ChangeEvent{}, false
	}
	return event, true
}

// getStat returns the cached stat of path or performs os.Stat when the
// cache entry expired.
func (w *Watcher) getStat(path string) (fileStat, error) {
	if cached, exists := (*w.statCache.Load())[path]; exists && !cached.isExpired(w.config.CacheTTL) {
		return cached, nil
	}

	info, err := os.Stat(path)
	stat := fileStat{
		cachedAt: timecache.CachedTimeNano(),
		exists:   err == nil,
	}
	if err == nil {
		stat.modTime = info.ModTime()
		stat.size = info.Size()
	}

	w.updateCache(path, stat)
	return stat, err
}

// updateCache replaces the cache map copy-on-write.
func (w *Watcher) updateCache(path string, stat fileStat) {
	for {
		oldMapPtr := w.statCache.Load()
		newMap := make(map[string]fileStat, len(*oldMapPtr)+1)
		for k, v := range *oldMapPtr {
			newMap[k] = v
		}
		newMap[path] = stat
		if w.statCache.CompareAndSwap(oldMapPtr, &newMap) {
			return
		}
	}
}

func (w *Watcher) removeFromCache(path string) {
	for {
		oldMapPtr := w.statCache.Load()
		if _, exists := (*oldMapPtr)[path]; !exists {
			return
		}
		newMap := make(map[string]fileStat, len(*oldMapPtr))
		for k, v := range *oldMapPtr {
			if k != path {
				newMap[k] = v
			}
		}
		if w.statCache.CompareAndSwap(oldMapPtr, &newMap) {
			return
		}
	}
}

// ClearCache drops every cached stat so the next poll stats every file.
func (w *Watcher) ClearCache() {
	empty := make(map[string]fileStat)
	w.statCache.Store(&empty)
}
