package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const artworkOverrideKey = "library:artwork:overrides"

// ArtworkOverrides is the durable mediaID -> artwork reference map,
// stored as a Redis hash. Hash field writes are atomic on the server,
// which gives every save a single synchronized entry point; concurrent
// saves of different tracks never lose updates.
type ArtworkOverrides struct {
	client *redis.Client
}

// NewArtworkOverrides builds the override store on the given client.
func NewArtworkOverrides(client *redis.Client) *ArtworkOverrides {
	return &ArtworkOverrides{client: client}
}

// SetOverride records a user-chosen artwork reference for a track.
func (c *ArtworkOverrides) SetOverride(ctx context.Context, mediaID, artworkRef string) error {
	if err := c.client.HSet(ctx, artworkOverrideKey, mediaID, artworkRef).Err(); err != nil {
		return fmt.Errorf("failed to save artwork override for %s: %w", mediaID, err)
	}
	return nil
}

// RemoveOverride drops the override for a track.
func (c *ArtworkOverrides) RemoveOverride(ctx context.Context, mediaID string) error {
	if err := c.client.HDel(ctx, artworkOverrideKey, mediaID).Err(); err != nil {
		return fmt.Errorf("failed to remove artwork override for %s: %w", mediaID, err)
	}
	return nil
}

// Overrides returns the full override map.
func (c *ArtworkOverrides) Overrides(ctx context.Context) (map[string]string, error) {
	overrides, err := c.client.HGetAll(ctx, artworkOverrideKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load artwork overrides: %w", err)
	}
	return overrides, nil
}
