package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"Cadenza/model"
)

// MediaIndexRepository is the host media index: the durable catalog of
// audio the device knows about. The scanner queries it with a minimum
// duration filter and subscribes to change notifications.
type MediaIndexRepository interface {
	QueryAudio(ctx context.Context, minDuration time.Duration) ([]model.Track, error)
	Subscribe(onChange func())
	// NotifyChanged fires the registered callbacks. Called by whatever
	// path writes to the index.
	NotifyChanged()
}

// mysqlMediaIndex implements MediaIndexRepository for MySQL.
type mysqlMediaIndex struct {
	db *sql.DB

	mu   sync.Mutex
	subs []func()
}

// NewMySQLMediaIndex creates a media index backed by the given database.
func NewMySQLMediaIndex(db *sql.DB) MediaIndexRepository {
	return &mysqlMediaIndex{db: db}
}

// QueryAudio returns every indexed audio item at or above minDuration,
// newest first. Sub-second clips (ringtone snippets) fall below the
// default threshold and never reach the library.
func (r *mysqlMediaIndex) QueryAudio(ctx context.Context, minDuration time.Duration) ([]model.Track, error) {
	query := `SELECT media_id, title, artist, album, album_id, album_artist, genre, year,
	                 track_number, duration_ms, artwork_ref, date_added
	          FROM media_index WHERE duration_ms >= ? ORDER BY date_added DESC`
	rows, err := r.db.QueryContext(ctx, query, minDuration.Milliseconds())
	if err != nil {
		return nil, fmt.Errorf("failed to query media index: %w", err)
	}
	defer rows.Close()

	tracks := make([]model.Track, 0)
	for rows.Next() {
		var t model.Track
		err := rows.Scan(&t.MediaID, &t.Title, &t.Artist, &t.Album, &t.AlbumID, &t.AlbumArtist,
			&t.Genre, &t.Year, &t.TrackNumber, &t.DurationMs, &t.ArtworkRef, &t.DateAdded)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media index row: %w", err)
		}
		tracks = append(tracks, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during media index iteration: %w", err)
	}
	return tracks, nil
}

// Subscribe registers a change callback.
func (r *mysqlMediaIndex) Subscribe(onChange func()) {
	if onChange == nil {
		return
	}
	r.mu.Lock()
	r.subs = append(r.subs, onChange)
	r.mu.Unlock()
}

// NotifyChanged fires all registered callbacks.
func (r *mysqlMediaIndex) NotifyChanged() {
	r.mu.Lock()
	subs := make([]func(), len(r.subs))
	copy(subs, r.subs)
	r.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}
