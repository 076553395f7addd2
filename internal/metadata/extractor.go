package metadata

import (
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"
)

// Tags holds the subset of embedded metadata a file actually carries.
// Any field may be zero; HasTags reports whether at least one of the
// identifying fields was present.
type Tags struct {
	Title       string
	Artist      string
	Album       string
	Genre       string
	TrackNumber int
	CoverArt    string // path to cached embedded artwork, if any
	HasTags     bool
}

// Extractor reads embedded tag metadata from audio files. Reads are
// pure: the extractor never modifies the files it inspects. Embedded
// cover art is written once into cacheDir under a content-hash name.
type Extractor struct {
	supportedFormats []string
	cacheDir         string
	logger           *logrus.Logger
}

// NewExtractor creates a new metadata extractor
func NewExtractor(supportedFormats []string, cacheDir string, logger *logrus.Logger) *Extractor {
	return &Extractor{
		supportedFormats: supportedFormats,
		cacheDir:         cacheDir,
		logger:           logger,
	}
}

// ReadTags extracts embedded metadata from an audio file. Corrupt or
// missing tag data is reported as absence (zero Tags, nil error); only
// an unreadable file returns an error.
func (e *Extractor) ReadTags(filePath string) (Tags, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return Tags{}, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	metadata, err := tag.ReadFrom(file)
	if err != nil {
		// No parseable tags is not a failure, the path convention
		// fallback covers these files.
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"reason":   err.Error(),
		}).Debug("No embedded metadata")
		return Tags{}, nil
	}

	t := Tags{
		Title:  strings.TrimSpace(metadata.Title()),
		Artist: strings.TrimSpace(metadata.Artist()),
		Album:  strings.TrimSpace(metadata.Album()),
		Genre:  strings.TrimSpace(metadata.Genre()),
	}
	t.TrackNumber, _ = metadata.Track()
	if t.TrackNumber < 0 {
		t.TrackNumber = 0
	}
	t.HasTags = t.Title != "" || t.Artist != "" || t.Album != "" || t.TrackNumber > 0

	if picture := metadata.Picture(); picture != nil && e.cacheDir != "" {
		artPath, err := e.cacheCoverArt(picture.Data)
		if err != nil {
			e.logger.WithError(err).WithField("filePath", filePath).Warn("Failed to cache embedded cover art")
		} else {
			t.CoverArt = artPath
		}
	}

	return t, nil
}

// cacheCoverArt writes embedded artwork into the cache directory under
// a name derived from the image bytes, so identical art across an album
// is stored once.
func (e *Extractor) cacheCoverArt(data []byte) (string, error) {
	hash := md5.Sum(data)
	artPath := filepath.Join(e.cacheDir, fmt.Sprintf("%x%s", hash, imageExtension(data)))

	if _, err := os.Stat(artPath); err == nil {
		return artPath, nil
	}
	if err := os.MkdirAll(e.cacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artwork cache directory: %w", err)
	}
	if err := os.WriteFile(artPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write artwork: %w", err)
	}
	return artPath, nil
}

// imageExtension guesses a file extension from image magic bytes.
func imageExtension(data []byte) string {
	if len(data) < 4 {
		return ".jpg"
	}
	switch {
	case data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47:
		return ".png"
	case data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46:
		return ".gif"
	default:
		return ".jpg"
	}
}

// ProbeDuration calculates the duration of an audio file in seconds.
// Best-effort: callers treat an error as "duration unknown".
func (e *Extractor) ProbeDuration(filePath string) (int, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp3":
		return e.durationMP3(filePath)
	case ".flac":
		return e.durationFLAC(filePath)
	case ".wav":
		return e.durationWAV(filePath)
	case ".m4a":
		return e.durationM4A(filePath)
	default:
		return 0, fmt.Errorf("unsupported format: %s", ext)
	}
}

// MP3 duration by decoding frames; falls back to an average-bitrate
// estimate only when no frame decodes at all.
func (e *Extractor) durationMP3(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	dec := mp3.NewDecoder(f)
	var total time.Duration
	var skipped int
	frames := 0
	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if frames == 0 { // could not decode any frame
				return e.estimateFromFileSize(path, 192000) // assume 192 kbps
			}
			break // partial decode; use what we have
		}
		total += fr.Duration()
		frames++
	}
	return int(total.Seconds()), nil
}

// FLAC duration via STREAMINFO metadata block
func (e *Extractor) durationFLAC(path string) (int, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return 0, err
	}
	si := stream.Info
	if si.NSamples > 0 && si.SampleRate > 0 {
		secs := float64(si.NSamples) / float64(si.SampleRate)
		return int(secs + 0.5), nil
	}
	return 0, fmt.Errorf("flac stream missing sample info")
}

// WAV duration using go-audio/wav to read the header, approximating the
// sample count from file size.
func (e *Extractor) durationWAV(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file")
	}
	if dec.SampleRate == 0 || dec.BitDepth == 0 || dec.NumChans == 0 {
		return 0, fmt.Errorf("invalid wav header")
	}
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	headerSize := int64(44)
	pcmBytes := st.Size() - headerSize
	if pcmBytes < 0 {
		pcmBytes = 0
	}
	bytesPerSampleFrame := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if bytesPerSampleFrame <= 0 {
		return 0, fmt.Errorf("invalid sample frame size")
	}
	sampleFrames := pcmBytes / bytesPerSampleFrame
	secs := float64(sampleFrames) / float64(dec.SampleRate)
	return int(secs + 0.5), nil
}

// estimateFromFileSize provides last-resort estimation if parsing fails.
func (e *Extractor) estimateFromFileSize(path string, bitrate int) (int, error) {
	st, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if bitrate <= 0 {
		return 0, fmt.Errorf("invalid bitrate")
	}
	dur := (st.Size() * 8) / int64(bitrate)
	return int(dur), nil
}

// IsAudioFile checks if a file is a supported audio format
func (e *Extractor) IsAudioFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, format := range e.supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}
