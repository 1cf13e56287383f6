package model

import "time"

// Track represents one audio item in the library. It is a value type:
// two Track values with the same MediaID are the same track for queue
// purposes even if the remaining metadata differs, so metadata can be
// refreshed without disturbing queue identity.
type Track struct {
	MediaID     string    `json:"mediaId"` // Stable content-addressable identifier
	Title       string    `json:"title"`
	Artist      string    `json:"artist"`
	Album       string    `json:"album"`
	AlbumID     string    `json:"albumId,omitempty"`
	AlbumArtist string    `json:"albumArtist,omitempty"`
	Genre       string    `json:"genre,omitempty"`
	Year        int       `json:"year,omitempty"`
	TrackNumber int       `json:"trackNumber,omitempty"`
	DurationMs  int64     `json:"durationMs"`
	ArtworkRef  string    `json:"artworkRef,omitempty"` // URL or object path of the cover image
	DateAdded   time.Time `json:"dateAdded"`
}

// SameTrack reports whether two tracks share a MediaID.
func (t Track) SameTrack(other Track) bool {
	return t.MediaID == other.MediaID
}
