package library

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay batches bursts of filesystem events (an album being
// copied in) into a single rescan.
const debounceDelay = 2 * time.Second

// startWatcher initializes fsnotify monitoring over every library root.
// Any relevant change triggers a debounced full rescan; the index is
// rebuilt wholesale rather than patched, so moved and deleted files can
// never leave stale entries behind.
func (m *Manager) startWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	m.watcher = watcher

	go m.watchFiles(ctx)

	for _, root := range m.cfg.Library.Roots {
		if err := m.addDirectoryToWatcher(root); err != nil {
			watcher.Close()
			return err
		}
	}

	m.logger.WithField("roots", m.cfg.Library.Roots).Info("File watcher started")
	return nil
}

// addDirectoryToWatcher recursively walks and adds subdirectories to watcher.
func (m *Manager) addDirectoryToWatcher(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return m.watcher.Add(path)
		}
		return nil
	})
}

// watchFiles selects on watcher channels and schedules rescans.
func (m *Manager) watchFiles(ctx context.Context) {
	defer m.watcher.Close()

	debounce := time.NewTimer(debounceDelay)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if m.handleFileEvent(event) {
				debounce.Reset(debounceDelay)
			}

		case <-debounce.C:
			m.triggerRescan()

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.WithError(err).Error("File watcher error")
		}
	}
}

// handleFileEvent filters events and reports whether a rescan should be
// scheduled. New directories are added to the watch set as they appear.
func (m *Manager) handleFileEvent(event fsnotify.Event) bool {
	// Ignore temporary files and hidden files
	fileName := filepath.Base(event.Name)
	if strings.HasPrefix(fileName, ".") || strings.HasSuffix(fileName, ".tmp") {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := m.watcher.Add(event.Name); err == nil {
				m.logger.WithField("directory", event.Name).Info("Watching new directory")
			}
			return true
		}
	}

	return event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) ||
		event.Has(fsnotify.Rename) || event.Has(fsnotify.Write)
}
