package metadata

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func testExtractor(t *testing.T) *Extractor {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewExtractor([]string{".mp3", ".flac", ".wav", ".m4a"}, t.TempDir(), logger)
}

func TestIsAudioFile(t *testing.T) {
	e := testExtractor(t)

	testCases := []struct {
		path     string
		expected bool
	}{
		{"/music/song.mp3", true},
		{"/music/song.MP3", true},
		{"/music/song.flac", true},
		{"/music/song.wav", true},
		{"/music/song.m4a", true},
		{"/music/song.ogg", false},
		{"/music/cover.jpg", false},
		{"/music/noextension", false},
	}

	for _, tc := range testCases {
		if got := e.IsAudioFile(tc.path); got != tc.expected {
			t.Errorf("IsAudioFile(%q): expected %v, got %v", tc.path, tc.expected, got)
		}
	}
}

func TestReadTagsMissingFile(t *testing.T) {
	e := testExtractor(t)
	if _, err := e.ReadTags("/nonexistent/file.mp3"); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestReadTagsWithoutEmbeddedMetadata(t *testing.T) {
	// A readable file with no parseable tags is absence, not failure;
	// the path convention covers it downstream.
	path := filepath.Join(t.TempDir(), "untagged.mp3")
	if err := os.WriteFile(path, []byte("not really audio data"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	tags, err := testExtractor(t).ReadTags(path)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if tags.HasTags {
		t.Error("expected HasTags to be false")
	}
	if tags.Title != "" || tags.Artist != "" || tags.Album != "" || tags.TrackNumber != 0 {
		t.Errorf("expected zero tags, got %+v", tags)
	}
}

func TestProbeDurationUnsupportedFormat(t *testing.T) {
	if _, err := testExtractor(t).ProbeDuration("/music/clip.ogg"); err == nil {
		t.Error("expected an error for an unsupported format")
	}
}

func TestImageExtension(t *testing.T) {
	testCases := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"PNG", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A}, ".png"},
		{"GIF", []byte("GIF89a"), ".gif"},
		{"JPEGFallback", []byte{0xFF, 0xD8, 0xFF, 0xE0}, ".jpg"},
		{"TooShort", []byte{0x00}, ".jpg"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := imageExtension(tc.data); got != tc.expected {
				t.Errorf("expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestCacheCoverArtDeduplicates(t *testing.T) {
	e := testExtractor(t)
	data := []byte{0x89, 0x50, 0x4E, 0x47, 0x01, 0x02, 0x03}

	first, err := e.cacheCoverArt(data)
	if err != nil {
		t.Fatalf("failed to cache artwork: %v", err)
	}
	second, err := e.cacheCoverArt(data)
	if err != nil {
		t.Fatalf("failed to cache artwork again: %v", err)
	}
	if first != second {
		t.Errorf("identical art cached twice: %q vs %q", first, second)
	}
	if filepath.Ext(first) != ".png" {
		t.Errorf("expected .png extension, got %q", first)
	}
	if _, err := os.Stat(first); err != nil {
		t.Errorf("cached artwork not on disk: %v", err)
	}
}
