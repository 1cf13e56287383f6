package repository

import (
	"errors"
	"fmt"
	"time"

	"Cadenza/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrPlaylistNotFound is returned when the requested playlist does not
// exist.
var ErrPlaylistNotFound = errors.New("playlist not found")

// PlaylistRepository defines the interface for playlist data
// operations. A playlist's ID is the sourceId its tracks carry when
// loaded into the queue, which is what queue source-sync keys on.
type PlaylistRepository interface {
	CreatePlaylist(name string) (*model.Playlist, error)
	GetPlaylist(id string) (*model.Playlist, error)
	ListPlaylists() ([]model.Playlist, error)
	ReplaceTracks(id string, mediaIDs []string) error
	DeletePlaylist(id string) error
}

// gormPlaylistRepository implements PlaylistRepository on GORM.
type gormPlaylistRepository struct {
	db *gorm.DB
}

// NewGormPlaylistRepository creates a playlist repository and migrates
// its models.
func NewGormPlaylistRepository(db *gorm.DB) (PlaylistRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm database not initialized")
	}
	if err := db.AutoMigrate(&model.Playlist{}, &model.PlaylistTrack{}); err != nil {
		return nil, fmt.Errorf("failed to migrate playlist models: %w", err)
	}
	return &gormPlaylistRepository{db: db}, nil
}

// CreatePlaylist adds a new, empty playlist.
func (r *gormPlaylistRepository) CreatePlaylist(name string) (*model.Playlist, error) {
	pl := &model.Playlist{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := r.db.Create(pl).Error; err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}
	return pl, nil
}

// GetPlaylist returns a playlist with its ordered tracks.
func (r *gormPlaylistRepository) GetPlaylist(id string) (*model.Playlist, error) {
	var pl model.Playlist
	err := r.db.Preload("Tracks", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).First(&pl, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlaylistNotFound
		}
		return nil, fmt.Errorf("failed to get playlist %s: %w", id, err)
	}
	return &pl, nil
}

// ListPlaylists returns all playlists without their tracks.
func (r *gormPlaylistRepository) ListPlaylists() ([]model.Playlist, error) {
	var playlists []model.Playlist
	if err := r.db.Order("created_at ASC").Find(&playlists).Error; err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	return playlists, nil
}

// ReplaceTracks swaps the playlist's content for the given ordered
// media IDs in one transaction.
func (r *gormPlaylistRepository) ReplaceTracks(id string, mediaIDs []string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var pl model.Playlist
		if err := tx.First(&pl, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPlaylistNotFound
			}
			return fmt.Errorf("failed to find playlist %s: %w", id, err)
		}
		if err := tx.Where("playlist_id = ?", id).Delete(&model.PlaylistTrack{}).Error; err != nil {
			return fmt.Errorf("failed to clear playlist %s: %w", id, err)
		}
		for i, mediaID := range mediaIDs {
			entry := model.PlaylistTrack{
				PlaylistID: id,
				MediaID:    mediaID,
				Position:   i,
				CreatedAt:  time.Now(),
			}
			if err := tx.Create(&entry).Error; err != nil {
				return fmt.Errorf("failed to add track to playlist %s: %w", id, err)
			}
		}
		return tx.Model(&pl).Update("updated_at", time.Now()).Error
	})
}

// DeletePlaylist removes a playlist and its tracks.
func (r *gormPlaylistRepository) DeletePlaylist(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("playlist_id = ?", id).Delete(&model.PlaylistTrack{}).Error; err != nil {
			return fmt.Errorf("failed to delete playlist tracks: %w", err)
		}
		if err := tx.Delete(&model.Playlist{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete playlist: %w", err)
		}
		return nil
	})
}
