// Package library orchestrates scanning and index rebuilds: the
// initial scan, interval rescans and filesystem-triggered rescans all
// funnel through one Rescan path that commits atomically.
package library

import (
	"context"
	"sync"
	"time"

	"cadenza/internal/config"
	"cadenza/internal/index"
	"cadenza/internal/scanner"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Manager owns the scanner and the index and decides when the library
// is rebuilt. Queries read the index directly; they never go through
// the manager.
type Manager struct {
	cfg     *config.Config
	scanner *scanner.Scanner
	index   *index.Index
	logger  *logrus.Logger

	watcher *fsnotify.Watcher

	// scanMu serializes rescans; triggers arriving during a pass are
	// coalesced into a single follow-up via the rescan channel.
	scanMu   sync.Mutex
	rescanCh chan struct{}
}

// NewManager creates a library manager.
func NewManager(cfg *config.Config, sc *scanner.Scanner, ix *index.Index, logger *logrus.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		scanner:  sc,
		index:    ix,
		logger:   logger,
		rescanCh: make(chan struct{}, 1),
	}
}

// Rescan runs one full scan pass and, on success, atomically replaces
// the index contents. A failed or cancelled pass leaves the previously
// committed index untouched.
func (m *Manager) Rescan(ctx context.Context) (*scanner.Report, error) {
	m.scanMu.Lock()
	defer m.scanMu.Unlock()

	report, err := m.scanner.Scan(ctx, m.cfg.Library.Roots)
	if err != nil {
		return nil, err
	}

	m.index.Rebuild(report.Entries)
	for _, scanErr := range report.Errors {
		m.logger.WithFields(logrus.Fields{
			"scan_id":   report.ID,
			"file_path": scanErr.Path,
			"reason":    scanErr.Reason,
		}).Warn("File excluded from library")
	}
	if len(report.Entries) == 0 {
		m.logger.WithFields(logrus.Fields{
			"scan_id":           report.ID,
			"roots":             m.cfg.Library.Roots,
			"supported_formats": m.cfg.Library.SupportedFormats,
		}).Warn("No supported audio files found; library is empty")
	}
	return report, nil
}

// Start performs the initial scan and launches the configured rescan
// triggers. It returns once the initial scan has been committed (or
// skipped by config); triggers keep running until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) error {
	if m.cfg.Scan.ScanOnStartup {
		if _, err := m.Rescan(ctx); err != nil {
			return err
		}
	}

	if m.cfg.Scan.WatchForChanges {
		if err := m.startWatcher(ctx); err != nil {
			m.logger.WithError(err).Warn("Could not start file watcher")
		}
	}

	go m.rescanLoop(ctx)
	return nil
}

// rescanLoop services coalesced watcher triggers and the optional
// interval timer. Errors are logged, never fatal: the previous index
// generation stays live.
func (m *Manager) rescanLoop(ctx context.Context) {
	var tick <-chan time.Time
	if m.cfg.Scan.RescanIntervalMinutes > 0 {
		ticker := time.NewTicker(time.Duration(m.cfg.Scan.RescanIntervalMinutes) * time.Minute)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.rescanCh:
		case <-tick:
		}
		if _, err := m.Rescan(ctx); err != nil && ctx.Err() == nil {
			m.logger.WithError(err).Error("Rescan failed")
		}
	}
}

// triggerRescan requests a rescan without blocking; a trigger arriving
// while one is already pending is dropped.
func (m *Manager) triggerRescan() {
	select {
	case m.rescanCh <- struct{}{}:
	default:
	}
}
