// Package index holds the in-memory library index. The index owns all
// MediaEntry records; artist and album structures are derived views,
// rebuilt from scratch whenever a scan completes. Rebuilds swap a
// pointer to an immutable snapshot, so concurrent readers always see
// either the fully-old or fully-new index, never a partial one.
package index

import (
	"sort"
	"strings"
	"sync/atomic"

	"cadenza/pkg/models"

	"github.com/sirupsen/logrus"
)

// Snapshot is an immutable, fully-built version of the library index.
// All lookups are case-insensitive and diacritic-folded; display
// strings keep the original casing of the first-seen entry.
type Snapshot struct {
	entries   []models.MediaEntry // ordered by artist, album, track
	titleKeys []string            // normalized titles, parallel to entries
	byArtist  map[string][]int
	byAlbum   map[string][]int
	byGenre   map[string][]int
	artists   []models.Artist
	albums    []models.Album
}

// Index is the swappable reference to the current library snapshot.
// Queries read whatever snapshot is current when they start; a rebuild
// never disturbs readers holding an older snapshot.
type Index struct {
	logger  *logrus.Logger
	current atomic.Pointer[Snapshot]
}

// New creates an index holding an empty snapshot.
func New(logger *logrus.Logger) *Index {
	ix := &Index{logger: logger}
	ix.current.Store(buildSnapshot(nil))
	return ix
}

// Current returns the snapshot queries should run against.
func (ix *Index) Current() *Snapshot {
	return ix.current.Load()
}

// Rebuild atomically replaces the entire index contents with a snapshot
// built from the given entries.
func (ix *Index) Rebuild(entries []models.MediaEntry) {
	snap := buildSnapshot(entries)
	ix.current.Store(snap)
	ix.logger.WithFields(logrus.Fields{
		"tracks":  len(snap.entries),
		"artists": len(snap.artists),
		"albums":  len(snap.albums),
	}).Info("Library index rebuilt")
}

// buildSnapshot constructs the ordered entry list, lookup maps and
// derived artist/album views for one generation of the index.
func buildSnapshot(entries []models.MediaEntry) *Snapshot {
	// The file path is the unique key; first entry wins on collision.
	seen := make(map[string]bool, len(entries))
	owned := make([]models.MediaEntry, 0, len(entries))
	for _, e := range entries {
		if e.Path == "" || seen[e.Path] {
			continue
		}
		seen[e.Path] = true
		owned = append(owned, e)
	}

	sort.SliceStable(owned, func(i, j int) bool {
		a, b := owned[i], owned[j]
		if ak, bk := Normalize(a.Artist), Normalize(b.Artist); ak != bk {
			return ak < bk
		}
		if ak, bk := Normalize(a.Album), Normalize(b.Album); ak != bk {
			return ak < bk
		}
		return trackLess(a, b)
	})

	snap := &Snapshot{
		entries:   owned,
		titleKeys: make([]string, len(owned)),
		byArtist:  make(map[string][]int),
		byAlbum:   make(map[string][]int),
		byGenre:   make(map[string][]int),
	}

	artistAlbums := make(map[string]map[string]bool)
	artistOrder := make(map[string]int)
	albumOrder := make(map[string]int)
	for i, e := range owned {
		snap.titleKeys[i] = Normalize(e.Title)

		artistKey := Normalize(e.Artist)
		snap.byArtist[artistKey] = append(snap.byArtist[artistKey], i)

		albumKey := Normalize(e.Album)
		snap.byAlbum[albumKey] = append(snap.byAlbum[albumKey], i)

		if e.Genre != "" {
			genreKey := Normalize(e.Genre)
			snap.byGenre[genreKey] = append(snap.byGenre[genreKey], i)
		}

		// Derived views, keyed on the normalized names so casing
		// variants of the same artist group together.
		if _, ok := artistOrder[artistKey]; !ok {
			artistOrder[artistKey] = len(snap.artists)
			snap.artists = append(snap.artists, models.Artist{Name: e.Artist})
			artistAlbums[artistKey] = make(map[string]bool)
		}
		if !artistAlbums[artistKey][albumKey] {
			artistAlbums[artistKey][albumKey] = true
			ai := artistOrder[artistKey]
			snap.artists[ai].Albums = append(snap.artists[ai].Albums, e.Album)
		}

		pairKey := artistKey + "\x00" + albumKey
		if _, ok := albumOrder[pairKey]; !ok {
			albumOrder[pairKey] = len(snap.albums)
			snap.albums = append(snap.albums, models.Album{Name: e.Album, Artist: e.Artist})
		}
		bi := albumOrder[pairKey]
		snap.albums[bi].Tracks = append(snap.albums[bi].Tracks, e)
	}

	return snap
}

// trackLess orders tracks within one album: numbered tracks first in
// numeric order, un-numbered tracks after them sorted by title.
func trackLess(a, b models.MediaEntry) bool {
	switch {
	case a.TrackNumber > 0 && b.TrackNumber > 0:
		if a.TrackNumber != b.TrackNumber {
			return a.TrackNumber < b.TrackNumber
		}
		return Normalize(a.Title) < Normalize(b.Title)
	case a.TrackNumber > 0:
		return true
	case b.TrackNumber > 0:
		return false
	default:
		return Normalize(a.Title) < Normalize(b.Title)
	}
}

// Len returns the number of indexed tracks.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Empty reports whether the scan found zero recognized audio files.
// This is a distinct library state, not an error; the resolver uses it
// to short-circuit to "no results".
func (s *Snapshot) Empty() bool {
	return len(s.entries) == 0
}

// AllTracks returns a copy of every indexed track in artist/album/track
// order. Callers may reorder the returned slice freely.
func (s *Snapshot) AllTracks() []models.MediaEntry {
	out := make([]models.MediaEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Artists returns the derived artist views in normalized name order of
// first appearance.
func (s *Snapshot) Artists() []models.Artist {
	return s.artists
}

// Albums returns the derived album views, one per artist/album pair.
func (s *Snapshot) Albums() []models.Album {
	return s.albums
}

// ArtistTracks returns all tracks by the named artist across all
// albums, ordered album then track. Matching is case- and
// accent-insensitive.
func (s *Snapshot) ArtistTracks(name string) []models.MediaEntry {
	return s.collect(s.byArtist[Normalize(name)])
}

// AlbumTracks returns all tracks of the named album in track order.
func (s *Snapshot) AlbumTracks(name string) []models.MediaEntry {
	return s.collect(s.byAlbum[Normalize(name)])
}

// GenreTracks returns all tracks tagged with the named genre.
func (s *Snapshot) GenreTracks(name string) []models.MediaEntry {
	return s.collect(s.byGenre[Normalize(name)])
}

// SearchTitles returns tracks whose normalized title contains the
// normalized substring.
func (s *Snapshot) SearchTitles(substr string) []models.MediaEntry {
	key := Normalize(substr)
	if key == "" {
		return nil
	}
	var out []models.MediaEntry
	for i, titleKey := range s.titleKeys {
		if strings.Contains(titleKey, key) {
			out = append(out, s.entries[i])
		}
	}
	return out
}

func (s *Snapshot) collect(indices []int) []models.MediaEntry {
	if len(indices) == 0 {
		return nil
	}
	out := make([]models.MediaEntry, 0, len(indices))
	for _, i := range indices {
		out = append(out, s.entries[i])
	}
	return out
}
