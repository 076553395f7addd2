// Package scanner walks the configured library roots and produces the
// complete set of MediaEntry records for one index generation. Embedded
// tags take precedence; the path convention fills every field tags left
// silent. Per-file failures are accumulated, never fatal to the pass.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"cadenza/internal/metadata"
	"cadenza/internal/pathconv"
	"cadenza/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrInvalidRoot is returned before any walking starts when a
// configured root does not exist or is not a directory. It is the only
// condition that aborts a scan outright.
var ErrInvalidRoot = errors.New("library root is not a directory")

// Report is the outcome of one scan pass: every entry that could be
// built plus the per-file errors accumulated along the way.
type Report struct {
	ID      string
	Entries []models.MediaEntry
	Errors  []models.ScanError
	Elapsed time.Duration
}

// Scanner walks library roots and extracts merged metadata. Workers
// share no mutable state during a walk; results are merged by a single
// collector before the caller commits them.
type Scanner struct {
	extractor   *metadata.Extractor
	workers     int
	fileTimeout time.Duration
	logger      *logrus.Logger
}

// New creates a scanner. workers <= 0 means one worker per CPU.
func New(extractor *metadata.Extractor, workers int, fileTimeout time.Duration, logger *logrus.Logger) *Scanner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if fileTimeout <= 0 {
		fileTimeout = 10 * time.Second
	}
	return &Scanner{
		extractor:   extractor,
		workers:     workers,
		fileTimeout: fileTimeout,
		logger:      logger,
	}
}

type fileJob struct {
	root string
	path string
}

type fileResult struct {
	entry models.MediaEntry
	err   *models.ScanError
}

// Scan walks the given roots and returns the complete entry set plus
// accumulated scan errors. Cancelling the context aborts the pass and
// returns ctx.Err(); the caller's previously committed index must stay
// untouched in that case (all-or-nothing rebuild).
func (s *Scanner) Scan(ctx context.Context, roots []string) (*Report, error) {
	start := time.Now()
	report := &Report{ID: uuid.New().String()}

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRoot, root)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"scan_id": report.ID,
		"roots":   roots,
		"workers": s.workers,
	}).Info("Starting library scan")

	jobs := make(chan fileJob, 128)
	results := make(chan fileResult, 128)
	covers := newCoverCache()

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					continue // drain, the walk already stopped
				}
				results <- s.processFile(job, covers)
			}
		}()
	}

	// Collector merges worker output into the report.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for res := range results {
			if res.err != nil {
				report.Errors = append(report.Errors, *res.err)
				continue
			}
			report.Entries = append(report.Entries, res.entry)
		}
	}()

	walkErr := s.walkRoots(ctx, roots, jobs, results)
	close(jobs)
	wg.Wait()
	close(results)
	<-done

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if walkErr != nil {
		return nil, walkErr
	}

	report.Elapsed = time.Since(start)
	s.logger.WithFields(logrus.Fields{
		"scan_id": report.ID,
		"tracks":  len(report.Entries),
		"errors":  len(report.Errors),
		"elapsed": report.Elapsed,
	}).Info("Library scan complete")
	return report, nil
}

// walkRoots enqueues every candidate audio file under the roots.
// Hidden files and directories, symlinks and other non-regular files
// are skipped; unreadable directory entries become scan errors.
func (s *Scanner) walkRoots(ctx context.Context, roots []string, jobs chan<- fileJob, results chan<- fileResult) error {
	for _, root := range roots {
		root := filepath.Clean(root)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				results <- fileResult{err: &models.ScanError{Path: path, Reason: err.Error()}}
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			name := d.Name()
			if strings.HasPrefix(name, ".") && path != root {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			if !s.extractor.IsAudioFile(path) {
				return nil
			}
			jobs <- fileJob{root: root, path: path}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// processFile builds one MediaEntry by layering path-derived fields
// under whatever the tags provide. A file whose tags cannot be read
// within the per-file budget (after one retry) becomes a scan error.
func (s *Scanner) processFile(job fileJob, covers *coverCache) fileResult {
	tags, err := s.readTagsBounded(job.path)
	if err != nil {
		s.logger.WithError(err).WithField("file_path", job.path).Warn("Skipping unreadable file")
		return fileResult{err: &models.ScanError{Path: job.path, Reason: err.Error()}}
	}

	derived := pathconv.Derive(job.root, job.path)

	entry := models.MediaEntry{
		Path:        job.path,
		Title:       tags.Title,
		Artist:      tags.Artist,
		Album:       tags.Album,
		Genre:       tags.Genre,
		TrackNumber: tags.TrackNumber,
		CoverArt:    tags.CoverArt,
		Source:      models.SourcePath,
	}
	if tags.HasTags {
		entry.Source = models.SourceTags
	}
	if entry.Title == "" {
		entry.Title = derived.Title
	}
	if entry.Artist == "" {
		entry.Artist = derived.Artist
	}
	if entry.Album == "" {
		entry.Album = derived.Album
	}
	if entry.TrackNumber == 0 {
		entry.TrackNumber = derived.TrackNumber
	}
	if entry.CoverArt == "" {
		entry.CoverArt = covers.lookup(filepath.Dir(job.path))
	}

	if duration, err := s.probeDurationBounded(job.path); err == nil {
		entry.Duration = duration
	} else {
		s.logger.WithField("file_path", job.path).WithError(err).Debug("Could not probe duration")
	}

	return fileResult{entry: entry}
}

// readTagsBounded reads embedded tags with a per-file timeout, retrying
// once. A file that cannot be read within the allotment is treated as a
// scan error by the caller, never a hang.
func (s *Scanner) readTagsBounded(path string) (metadata.Tags, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		type outcome struct {
			tags metadata.Tags
			err  error
		}
		ch := make(chan outcome, 1)
		go func() {
			tags, err := s.extractor.ReadTags(path)
			ch <- outcome{tags: tags, err: err}
		}()
		select {
		case o := <-ch:
			if o.err == nil {
				return o.tags, nil
			}
			lastErr = o.err
		case <-time.After(s.fileTimeout):
			lastErr = fmt.Errorf("read timed out after %s", s.fileTimeout)
		}
	}
	return metadata.Tags{}, lastErr
}

// probeDurationBounded probes the duration under the same per-file
// budget as the tag read, retrying once. Duration stays best-effort:
// the caller logs a failure and keeps the entry.
func (s *Scanner) probeDurationBounded(path string) (int, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		type outcome struct {
			duration int
			err      error
		}
		ch := make(chan outcome, 1)
		go func() {
			d, err := s.extractor.ProbeDuration(path)
			ch <- outcome{duration: d, err: err}
		}()
		select {
		case o := <-ch:
			if o.err == nil {
				return o.duration, nil
			}
			lastErr = o.err
		case <-time.After(s.fileTimeout):
			lastErr = fmt.Errorf("duration probe timed out after %s", s.fileTimeout)
		}
	}
	return 0, lastErr
}

// coverCache memoizes per-directory cover art lookups so an album
// directory is only listed once per scan, regardless of worker count.
type coverCache struct {
	mu   sync.Mutex
	dirs map[string]string
}

func newCoverCache() *coverCache {
	return &coverCache{dirs: make(map[string]string)}
}

func (c *coverCache) lookup(dir string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if art, ok := c.dirs[dir]; ok {
		return art
	}
	art := pathconv.FindCoverArt(dir)
	c.dirs[dir] = art
	return art
}
