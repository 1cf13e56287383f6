package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"Cadenza/model"

	"github.com/redis/go-redis/v9"
)

const playbackStateKey = "playback:state"

// PlaybackState persists the "last known queue + position" tuple the
// queue manager saves after each mutation and restores on relaunch.
type PlaybackState struct {
	client *redis.Client
}

// NewPlaybackState builds the persistence store on the given client.
func NewPlaybackState(client *redis.Client) *PlaybackState {
	return &PlaybackState{client: client}
}

// SavePlayback stores the tuple as one JSON blob.
func (c *PlaybackState) SavePlayback(ctx context.Context, state model.PersistedPlayback) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal playback state: %w", err)
	}
	if err := c.client.Set(ctx, playbackStateKey, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to save playback state: %w", err)
	}
	return nil
}

// LoadPlayback returns the saved tuple, or nil when none is stored.
func (c *PlaybackState) LoadPlayback(ctx context.Context) (*model.PersistedPlayback, error) {
	payload, err := c.client.Get(ctx, playbackStateKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load playback state: %w", err)
	}
	var state model.PersistedPlayback
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal playback state: %w", err)
	}
	return &state, nil
}

// ClearPlayback drops the saved tuple.
func (c *PlaybackState) ClearPlayback(ctx context.Context) error {
	if err := c.client.Del(ctx, playbackStateKey).Err(); err != nil {
		return fmt.Errorf("failed to clear playback state: %w", err)
	}
	return nil
}
