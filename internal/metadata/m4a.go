package metadata

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// M4A (AAC in MP4) duration from the 'mvhd' atom inside 'moov'.
// Minimal manual atom scan to avoid pulling in an MP4 dependency.
func (e *Extractor) durationM4A(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var head [8]byte
	for {
		if _, err := io.ReadFull(f, head[:]); err != nil {
			return 0, err
		}
		size := binary.BigEndian.Uint32(head[0:4])
		if size < 8 {
			return 0, fmt.Errorf("invalid atom size")
		}
		if string(head[4:8]) == "moov" {
			return e.scanMoov(f, int64(size)-8)
		}
		if _, err := f.Seek(int64(size)-8, io.SeekCurrent); err != nil {
			return 0, err
		}
	}
}

// scanMoov walks the children of a moov atom looking for mvhd and reads
// its timescale and duration fields.
func (e *Extractor) scanMoov(f *os.File, limit int64) (int, error) {
	var head [8]byte
	for read := int64(0); read < limit; {
		if _, err := io.ReadFull(f, head[:]); err != nil {
			return 0, err
		}
		size := binary.BigEndian.Uint32(head[0:4])
		if size < 8 {
			return 0, fmt.Errorf("invalid sub-atom size")
		}
		if string(head[4:8]) != "mvhd" {
			if _, err := f.Seek(int64(size)-8, io.SeekCurrent); err != nil {
				return 0, err
			}
			read += int64(size)
			continue
		}

		var version [1]byte
		if _, err := io.ReadFull(f, version[:]); err != nil {
			return 0, err
		}
		// Skip flags plus creation/modification times; 64-bit for v1.
		skip := int64(3 + 4 + 4)
		if version[0] == 1 {
			skip = 3 + 8 + 8
		}
		if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
			return 0, err
		}
		var fields [8]byte
		if _, err := io.ReadFull(f, fields[:]); err != nil {
			return 0, err
		}
		timescale := binary.BigEndian.Uint32(fields[0:4])
		durUnits := binary.BigEndian.Uint32(fields[4:8])
		if timescale == 0 {
			return 0, fmt.Errorf("invalid timescale")
		}
		secs := float64(durUnits) / float64(timescale)
		return int(secs + 0.5), nil
	}
	return 0, fmt.Errorf("mvhd atom not found")
}
