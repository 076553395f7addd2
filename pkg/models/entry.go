package models

// Placeholder values used when neither tags nor the directory layout
// provide a usable name.
const (
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

// Source identifies which metadata source produced an entry's fields.
type Source string

const (
	// SourceTags means at least one field came from embedded tags.
	SourceTags Source = "tags"
	// SourcePath means every field was derived from the file path.
	SourcePath Source = "path"
)

// MediaEntry is one indexed, playable track with merged metadata. Path
// is the unique key; Title, Artist and Album are never empty.
type MediaEntry struct {
	Path        string `json:"path"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	Genre       string `json:"genre,omitempty"`
	TrackNumber int    `json:"trackNumber"` // 0 means unknown
	Duration    int    `json:"duration"`    // in seconds, 0 means unknown
	CoverArt    string `json:"coverArt,omitempty"`
	Source      Source `json:"source"`
}

// Artist is a derived view over indexed entries: the display name of
// the first-seen entry plus the ordered set of album names.
type Artist struct {
	Name   string   `json:"name"`
	Albums []string `json:"albums"`
}

// Album is a derived view: one album of one artist, tracks in track
// order (entries without a track number sort after numbered ones).
type Album struct {
	Name   string       `json:"name"`
	Artist string       `json:"artist"`
	Tracks []MediaEntry `json:"tracks"`
}

// ScanError records a single file that could not be read during a
// library scan. Scan errors are accumulated and reported alongside the
// successful entries; they never abort a scan.
type ScanError struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}
