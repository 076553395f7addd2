package index

import (
	"io"
	"sync"
	"testing"

	"cadenza/pkg/models"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testEntries() []models.MediaEntry {
	return []models.MediaEntry{
		{Path: "/m/Beyoncé/Lemonade/06 Daddy Lessons.mp3", Artist: "Beyoncé", Album: "Lemonade", Title: "Daddy Lessons", TrackNumber: 6},
		{Path: "/m/Beyoncé/Lemonade/01 Pray You Catch Me.mp3", Artist: "Beyoncé", Album: "Lemonade", Title: "Pray You Catch Me", TrackNumber: 1},
		{Path: "/m/Queen/A Night at the Opera/11 Bohemian Rhapsody.mp3", Artist: "Queen", Album: "A Night at the Opera", Title: "Bohemian Rhapsody", TrackNumber: 11, Genre: "Rock"},
		{Path: "/m/Queen/A Night at the Opera/bonus take.mp3", Artist: "Queen", Album: "A Night at the Opera", Title: "Bonus Take"},
		{Path: "/m/Queen/A Night at the Opera/01 Death on Two Legs.mp3", Artist: "Queen", Album: "A Night at the Opera", Title: "Death on Two Legs", TrackNumber: 1},
	}
}

func TestNormalize(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{"Beyoncé", "beyonce"},
		{"AC/DC", "ac dc"},
		{"  The  Beatles!  ", "the beatles"},
		{"Sigur Rós", "sigur ros"},
		{"R&B", "r and b"},
		{"Don't Stop Me Now", "dont stop me now"},
		{"BOHEMIAN RHAPSODY", "bohemian rhapsody"},
		{"", ""},
	}

	for _, tc := range testCases {
		if got := Normalize(tc.in); got != tc.expected {
			t.Errorf("Normalize(%q): expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestLookupsAreCaseAndAccentInsensitive(t *testing.T) {
	ix := New(testLogger())
	ix.Rebuild(testEntries())
	snap := ix.Current()

	tracks := snap.ArtistTracks("beyonce")
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks for beyonce, got %d", len(tracks))
	}
	// Display strings keep their original casing.
	if tracks[0].Artist != "Beyoncé" {
		t.Errorf("expected display artist Beyoncé, got %q", tracks[0].Artist)
	}

	if got := snap.AlbumTracks("a night at the OPERA"); len(got) != 3 {
		t.Errorf("expected 3 album tracks, got %d", len(got))
	}
	if got := snap.GenreTracks("rock"); len(got) != 1 {
		t.Errorf("expected 1 rock track, got %d", len(got))
	}
}

func TestTrackOrdering(t *testing.T) {
	ix := New(testLogger())
	ix.Rebuild(testEntries())

	tracks := ix.Current().AlbumTracks("A Night at the Opera")
	if len(tracks) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(tracks))
	}
	// Numbered tracks in numeric order, un-numbered ones after them.
	expected := []string{"Death on Two Legs", "Bohemian Rhapsody", "Bonus Take"}
	for i, title := range expected {
		if tracks[i].Title != title {
			t.Errorf("position %d: expected %q, got %q", i, title, tracks[i].Title)
		}
	}
}

func TestSearchTitles(t *testing.T) {
	ix := New(testLogger())
	ix.Rebuild(testEntries())
	snap := ix.Current()

	if got := snap.SearchTitles("rhapsody"); len(got) != 1 || got[0].Title != "Bohemian Rhapsody" {
		t.Errorf("substring search failed, got %v", got)
	}
	if got := snap.SearchTitles("nosuchtitle"); len(got) != 0 {
		t.Errorf("expected no matches, got %d", len(got))
	}
	if got := snap.SearchTitles(""); len(got) != 0 {
		t.Errorf("empty substring should match nothing, got %d", len(got))
	}
}

func TestRebuildReplacesEverything(t *testing.T) {
	ix := New(testLogger())
	ix.Rebuild(testEntries())
	if got := ix.Current().Len(); got != 5 {
		t.Fatalf("expected 5 entries, got %d", got)
	}

	// A rebuild with a tree that lost files must not keep stale entries.
	ix.Rebuild(testEntries()[:2])
	snap := ix.Current()
	if got := snap.Len(); got != 2 {
		t.Errorf("expected 2 entries after rebuild, got %d", got)
	}
	if got := snap.ArtistTracks("Queen"); len(got) != 0 {
		t.Errorf("expected deleted artist to be gone, got %d tracks", len(got))
	}
}

func TestDuplicatePathsCollapse(t *testing.T) {
	entries := testEntries()
	entries = append(entries, entries[0])
	ix := New(testLogger())
	ix.Rebuild(entries)
	if got := ix.Current().Len(); got != 5 {
		t.Errorf("expected duplicate path to collapse, got %d entries", got)
	}
}

func TestDerivedViews(t *testing.T) {
	ix := New(testLogger())
	ix.Rebuild(testEntries())
	snap := ix.Current()

	artists := snap.Artists()
	if len(artists) != 2 {
		t.Fatalf("expected 2 artists, got %d", len(artists))
	}
	for _, artist := range artists {
		if artist.Name == "Beyoncé" && (len(artist.Albums) != 1 || artist.Albums[0] != "Lemonade") {
			t.Errorf("unexpected albums for Beyoncé: %v", artist.Albums)
		}
	}

	albums := snap.Albums()
	if len(albums) != 2 {
		t.Fatalf("expected 2 albums, got %d", len(albums))
	}
	for _, album := range albums {
		if album.Name == "Lemonade" && album.Artist != "Beyoncé" {
			t.Errorf("expected Lemonade to belong to Beyoncé, got %q", album.Artist)
		}
	}
}

func TestEmptyState(t *testing.T) {
	ix := New(testLogger())
	if !ix.Current().Empty() {
		t.Error("fresh index should be empty")
	}
	ix.Rebuild(nil)
	if !ix.Current().Empty() {
		t.Error("rebuild with no entries should stay empty")
	}
}

// Concurrent readers must observe either the fully-old or fully-new
// snapshot during a rebuild, never a mix of generations.
func TestConcurrentRebuildConsistency(t *testing.T) {
	genOne := []models.MediaEntry{
		{Path: "/m/a/one/1.mp3", Artist: "A", Album: "one", Title: "t1"},
		{Path: "/m/a/one/2.mp3", Artist: "A", Album: "one", Title: "t2"},
		{Path: "/m/a/one/3.mp3", Artist: "A", Album: "one", Title: "t3"},
	}
	genTwo := []models.MediaEntry{
		{Path: "/m/b/two/1.mp3", Artist: "B", Album: "two", Title: "t1"},
		{Path: "/m/b/two/2.mp3", Artist: "B", Album: "two", Title: "t2"},
	}

	ix := New(testLogger())
	ix.Rebuild(genOne)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := ix.Current()
				tracks := snap.AllTracks()
				if len(tracks) == 0 {
					t.Error("snapshot unexpectedly empty")
					return
				}
				album := tracks[0].Album
				for _, track := range tracks {
					if track.Album != album {
						t.Errorf("mixed generations in one snapshot: %q and %q", album, track.Album)
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		if i%2 == 0 {
			ix.Rebuild(genTwo)
		} else {
			ix.Rebuild(genOne)
		}
	}
	close(stop)
	wg.Wait()
}
