package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"Cadenza/model"

	"github.com/dhowden/tag"
)

// FileExtractor reads track metadata straight from an audio file on
// disk. It backs the "opened file" path for files the host media index
// never picked up.
type FileExtractor struct{}

// Extract opens the file behind the URI and builds a Track from its
// tags. The MediaID is the tag library's content checksum, so the same
// file yields the same identity across scans and relaunches.
func (FileExtractor) Extract(ctx context.Context, uri string) (model.Track, error) {
	if err := ctx.Err(); err != nil {
		return model.Track{}, err
	}

	path := strings.TrimPrefix(uri, "file://")
	f, err := os.Open(path)
	if err != nil {
		return model.Track{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	sum, err := tag.Sum(f)
	if err != nil {
		return model.Track{}, fmt.Errorf("failed to checksum %s: %w", path, err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return model.Track{}, err
	}

	track := model.Track{MediaID: sum}

	if md, err := tag.ReadFrom(f); err == nil {
		track.Title = md.Title()
		track.Artist = md.Artist()
		track.Album = md.Album()
		track.AlbumArtist = md.AlbumArtist()
		track.Genre = md.Genre()
		track.Year = md.Year()
		track.TrackNumber, _ = md.Track()
	}

	// The tag library reads metadata only, not stream length, so
	// DurationMs stays zero for opened files. The host media index is
	// the authority for durations of indexed tracks, and opened files
	// bypass the minimum-duration filter regardless.

	// Fall back to the filename when the tags are empty.
	if track.Title == "" {
		track.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if track.Artist == "" {
		track.Artist = "Unknown Artist"
	}
	if track.Album == "" {
		track.Album = "Unknown Album"
	}

	if info, err := os.Stat(path); err == nil {
		track.DateAdded = info.ModTime()
	} else {
		track.DateAdded = time.Now()
	}

	return track, nil
}
