package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const openedFilesKey = "library:opened:files"

// OpenedFiles is the durable set of user-picked file URIs that are not
// necessarily covered by the host media index. The scanner merges them
// into every scan.
type OpenedFiles struct {
	client *redis.Client
}

// NewOpenedFiles builds the bookmark store on the given client.
func NewOpenedFiles(client *redis.Client) *OpenedFiles {
	return &OpenedFiles{client: client}
}

// Bookmarks returns all bookmarked URIs.
func (c *OpenedFiles) Bookmarks(ctx context.Context) ([]string, error) {
	uris, err := c.client.SMembers(ctx, openedFilesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load opened-file bookmarks: %w", err)
	}
	return uris, nil
}

// AddBookmark records an opened file URI.
func (c *OpenedFiles) AddBookmark(ctx context.Context, uri string) error {
	if err := c.client.SAdd(ctx, openedFilesKey, uri).Err(); err != nil {
		return fmt.Errorf("failed to bookmark %s: %w", uri, err)
	}
	return nil
}

// RemoveBookmark forgets an opened file URI.
func (c *OpenedFiles) RemoveBookmark(ctx context.Context, uri string) error {
	if err := c.client.SRem(ctx, openedFilesKey, uri).Err(); err != nil {
		return fmt.Errorf("failed to remove bookmark %s: %w", uri, err)
	}
	return nil
}
