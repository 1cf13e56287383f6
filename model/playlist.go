package model

import "time"

// Playlist is a named upstream track list. Its ID doubles as the
// sourceId tag carried by MAIN queue items it contributed, which is
// what targeted source sync and bulk removal key on.
type Playlist struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Name      string    `json:"name" gorm:"size:255;not null"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Tracks []PlaylistTrack `json:"tracks,omitempty" gorm:"foreignKey:PlaylistID;references:ID"`
}

// PlaylistTrack is one entry of a playlist, ordered by Position.
type PlaylistTrack struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	PlaylistID string    `json:"playlistId" gorm:"size:64;index;not null"`
	MediaID    string    `json:"mediaId" gorm:"size:128;not null"`
	Position   int       `json:"position" gorm:"not null"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PlaylistWithTracks bundles a playlist and its resolved library tracks.
type PlaylistWithTracks struct {
	Playlist Playlist `json:"playlist"`
	Tracks   []Track  `json:"tracks"`
}
