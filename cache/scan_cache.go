package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"Cadenza/model"

	"github.com/redis/go-redis/v9"
)

const scanResultKey = "library:scan:result"

// ScanCache persists the last successful scan result in Redis. The
// snapshot carries its own creation timestamp, so staleness is judged
// by the caller against its configured window.
type ScanCache struct {
	client *redis.Client
}

// NewScanCache builds a scan cache on the given Redis client.
func NewScanCache(client *redis.Client) *ScanCache {
	return &ScanCache{client: client}
}

// SaveScan stores the scan result as one JSON blob.
func (c *ScanCache) SaveScan(ctx context.Context, result model.ScanResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal scan result: %w", err)
	}
	if err := c.client.Set(ctx, scanResultKey, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to save scan result: %w", err)
	}
	return nil
}

// LoadScan returns the cached scan result, or nil when none is stored.
func (c *ScanCache) LoadScan(ctx context.Context) (*model.ScanResult, error) {
	payload, err := c.client.Get(ctx, scanResultKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load scan result: %w", err)
	}
	var result model.ScanResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scan result: %w", err)
	}
	return &result, nil
}

// ClearScan drops the cached scan result.
func (c *ScanCache) ClearScan(ctx context.Context) error {
	if err := c.client.Del(ctx, scanResultKey).Err(); err != nil {
		return fmt.Errorf("failed to clear scan result: %w", err)
	}
	return nil
}
