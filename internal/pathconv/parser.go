// Package pathconv derives track metadata from the library's directory
// convention: <root>/<Artist>/<Album>/<NN Title>.<ext>. It is the
// fallback source for files without embedded tags and never fails; a
// best-effort result is always produced from the path string alone.
package pathconv

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"cadenza/pkg/models"
)

// trackPrefixRe matches a leading track number like "01 ", "01 - " or
// "01." followed by the real title.
var trackPrefixRe = regexp.MustCompile(`^(\d{1,3})[\s.\-]+\s*(\S.*)$`)

// coverStems are recognized cover art file names, checked in order of
// preference against the lowercased filename stem.
var coverStems = []string{"folder", "cover", "front"}

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Derived is the metadata inferred for one file from its path.
type Derived struct {
	Artist      string
	Album       string
	Title       string
	TrackNumber int // 0 when the filename has no numeric prefix
}

// Derive infers artist, album, title and track number for a file under
// the given library root. Files directly under the root, or one level
// deep, get placeholder artist/album values.
func Derive(root, path string) Derived {
	d := Derived{
		Artist: models.UnknownArtist,
		Album:  models.UnknownAlbum,
	}

	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	segments := strings.Split(filepath.ToSlash(rel), "/")
	if len(segments) >= 2 {
		d.Artist = segments[0]
	}
	if len(segments) >= 3 {
		d.Album = segments[1]
	}

	name := segments[len(segments)-1]
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	d.Title = stem
	if m := trackPrefixRe.FindStringSubmatch(stem); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			d.TrackNumber = n
			d.Title = m[2]
		}
	}
	if d.Title == "" {
		d.Title = name
	}
	return d
}

// FindCoverArt looks for a conventional cover art file (Folder, cover
// or front with an image extension, case-insensitive) in an album
// directory. Returns the empty string when none is present.
func FindCoverArt(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, stem := range coverStems {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			ext := strings.ToLower(filepath.Ext(name))
			if !imageExts[ext] {
				continue
			}
			if strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name))) == stem {
				return filepath.Join(dir, name)
			}
		}
	}
	return ""
}
