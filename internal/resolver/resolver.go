// Package resolver turns free-text playback requests into ranked track
// lists. Matching runs in tiers (artist, album, title, generic); the
// first tier producing at least one confident match wins. Queries are
// read-only against whatever index snapshot is current when they start.
package resolver

import (
	"math/rand"
	"sort"
	"strings"
	"time"

	"cadenza/internal/index"
	"cadenza/pkg/models"

	"github.com/hbollon/go-edlib"
	"github.com/sirupsen/logrus"
)

// Hint is an optional media-type restriction supplied by the intent
// layer alongside the query text.
type Hint int

const (
	HintGeneric Hint = iota // try every tier in order
	HintArtist
	HintAlbum
	HintGenre
	HintSong
)

// Similarity thresholds for fuzzy matching. Name tiers accept
// Jaro-Winkler >= 0.85; title candidates below the 0.72 floor are
// excluded even when the title tier is reached.
const (
	nameSimilarityThreshold  = 0.85
	titleSimilarityThreshold = 0.72
)

// Ranking scores for title matches. Category bases keep the required
// order (exact > prefix > substring > fuzzy) stable regardless of the
// fuzzy similarity value.
const (
	scoreExact     = 4.0
	scorePrefix    = 3.0
	scoreSubstring = 2.0
)

// genericPhrases are normalized request forms that mean "play anything
// from the library".
var genericPhrases = map[string]bool{
	"music":            true,
	"local music":      true,
	"some music":       true,
	"my music":         true,
	"play music":       true,
	"play some music":  true,
	"play my music":    true,
	"play local music": true,
	"play something":   true,
	"play anything":    true,
}

// Resolver resolves natural-language requests against the library
// index. It holds no per-query state; the generic tier draws from a
// fresh random source on every call.
type Resolver struct {
	index  *index.Index
	logger *logrus.Logger
}

// New creates a resolver reading from the given index.
func New(ix *index.Index, logger *logrus.Logger) *Resolver {
	return &Resolver{index: ix, logger: logger}
}

// Resolve returns the ranked tracks for a request with no media-type
// hint.
func (r *Resolver) Resolve(query string) []models.MediaEntry {
	return r.ResolveHint(query, HintGeneric)
}

// ResolveHint resolves a request, restricting matching to one tier when
// the intent layer supplied a media-type hint. An empty result means no
// confident match; the caller owns user-facing fallback messaging.
func (r *Resolver) ResolveHint(query string, hint Hint) []models.MediaEntry {
	snap := r.index.Current()
	if snap.Empty() {
		r.logger.Debug("Query against empty library")
		return nil
	}

	q := index.Normalize(query)

	var results []models.MediaEntry
	switch hint {
	case HintArtist:
		results = r.matchArtist(snap, q)
	case HintAlbum:
		results = r.matchAlbum(snap, q)
	case HintGenre:
		results = r.matchGenre(snap, q)
	case HintSong:
		results = r.matchTitle(snap, q)
	default:
		if q != "" {
			if results = r.matchArtist(snap, q); len(results) == 0 {
				if results = r.matchAlbum(snap, q); len(results) == 0 {
					results = r.matchTitle(snap, q)
				}
			}
		}
		if len(results) == 0 && (q == "" || genericPhrases[q]) {
			results = r.shuffledLibrary(snap)
		}
	}

	results = dedupeByPath(results)
	r.logger.WithFields(logrus.Fields{
		"query":   query,
		"results": len(results),
	}).Info("Resolved request")
	return results
}

// matchArtist implements the first tier: exact or near-exact artist
// name match, returning the artist's whole catalog ordered album then
// track.
func (r *Resolver) matchArtist(snap *index.Snapshot, q string) []models.MediaEntry {
	best, score := "", 0.0
	for _, artist := range snap.Artists() {
		if s := nameScore(q, index.Normalize(artist.Name)); s > score {
			best, score = artist.Name, s
		}
	}
	if score < nameSimilarityThreshold {
		return nil
	}
	r.logger.WithFields(logrus.Fields{"artist": best, "score": score}).Debug("Artist tier matched")
	return snap.ArtistTracks(best)
}

// matchAlbum implements the second tier against album names.
func (r *Resolver) matchAlbum(snap *index.Snapshot, q string) []models.MediaEntry {
	best, score := "", 0.0
	for _, album := range snap.Albums() {
		if s := nameScore(q, index.Normalize(album.Name)); s > score {
			best, score = album.Name, s
		}
	}
	if score < nameSimilarityThreshold {
		return nil
	}
	r.logger.WithFields(logrus.Fields{"album": best, "score": score}).Debug("Album tier matched")
	return snap.AlbumTracks(best)
}

// matchGenre resolves explicit genre requests. Genre only participates
// when hinted; free-text queries rarely name genres and the plain tier
// order skips it.
func (r *Resolver) matchGenre(snap *index.Snapshot, q string) []models.MediaEntry {
	return snap.GenreTracks(q)
}

// matchTitle implements the third tier: tracks ranked by how closely
// their title matches the query. Exact beats prefix beats substring
// beats fuzzy; candidates under the similarity floor are dropped even
// though the tier was reached.
func (r *Resolver) matchTitle(snap *index.Snapshot, q string) []models.MediaEntry {
	// An empty query would prefix-match every title.
	if q == "" {
		return nil
	}
	type candidate struct {
		entry models.MediaEntry
		score float64
	}
	var candidates []candidate
	for _, entry := range snap.AllTracks() {
		titleKey := index.Normalize(entry.Title)
		var score float64
		switch {
		case titleKey == q:
			score = scoreExact
		case strings.HasPrefix(titleKey, q):
			score = scorePrefix
		case strings.Contains(titleKey, q):
			score = scoreSubstring
		default:
			sim := similarity(q, titleKey)
			if sim < titleSimilarityThreshold {
				continue
			}
			score = sim
		}
		candidates = append(candidates, candidate{entry: entry, score: score})
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if ak, bk := index.Normalize(a.entry.Artist), index.Normalize(b.entry.Artist); ak != bk {
			return ak < bk
		}
		if ak, bk := index.Normalize(a.entry.Album), index.Normalize(b.entry.Album); ak != bk {
			return ak < bk
		}
		return a.entry.TrackNumber < b.entry.TrackNumber
	})

	out := make([]models.MediaEntry, len(candidates))
	for i, c := range candidates {
		out[i] = c.entry
	}
	return out
}

// shuffledLibrary implements the generic tier: the whole library in a
// fresh random order, reshuffled on every call so repeated generic
// requests vary.
func (r *Resolver) shuffledLibrary(snap *index.Snapshot) []models.MediaEntry {
	tracks := snap.AllTracks()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	rng.Shuffle(len(tracks), func(i, j int) {
		tracks[i], tracks[j] = tracks[j], tracks[i]
	})
	return tracks
}

// nameScore rates how well a normalized query matches a normalized
// artist or album name. Exact equality scores 1.0; a containment either
// way scores just above the acceptance threshold; otherwise the
// Jaro-Winkler similarity decides.
func nameScore(q, name string) float64 {
	if q == "" || name == "" {
		return 0
	}
	if q == name {
		return 1.0
	}
	shorter := q
	if len(name) < len(shorter) {
		shorter = name
	}
	// Containment needs a few characters of substance, otherwise "a"
	// would match nearly everything.
	if len(shorter) >= 3 && (strings.Contains(name, q) || strings.Contains(q, name)) {
		return 0.9
	}
	return similarity(q, name)
}

// similarity is a bounded 0..1 string similarity. Jaro-Winkler favors
// shared prefixes, which suits voice-transcribed names.
func similarity(a, b string) float64 {
	sim, err := edlib.StringsSimilarity(a, b, edlib.JaroWinkler)
	if err != nil {
		return 0
	}
	return float64(sim)
}

// dedupeByPath keeps the first occurrence of each track when tiers or
// views conceptually overlap (e.g. an artist named after an album).
func dedupeByPath(entries []models.MediaEntry) []models.MediaEntry {
	if len(entries) < 2 {
		return entries
	}
	seen := make(map[string]bool, len(entries))
	out := entries[:0]
	for _, e := range entries {
		if seen[e.Path] {
			continue
		}
		seen[e.Path] = true
		out = append(out, e)
	}
	return out
}
