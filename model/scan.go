package model

import "time"

// ScanResult is an immutable snapshot of one completed library scan.
// It is persisted without artwork overrides applied, so overrides can
// be re-overlaid on every cold load without rescanning.
type ScanResult struct {
	Tracks       []Track       `json:"tracks"`
	CreatedAt    time.Time     `json:"createdAt"`
	ScanDuration time.Duration `json:"scanDuration"`
}

// IsFresh reports whether the result is still usable at the given
// instant, under the supplied staleness window.
func (r *ScanResult) IsFresh(now time.Time, maxAge time.Duration) bool {
	if r == nil || r.CreatedAt.IsZero() {
		return false
	}
	return now.Sub(r.CreatedAt) < maxAge
}

// PersistedPlayback is the "last known queue + position" tuple saved
// after significant queue mutations and loaded on relaunch.
type PersistedPlayback struct {
	MediaIDs       []string   `json:"mediaIds"`
	CurrentIndex   int        `json:"currentIndex"`
	PositionMs     int64      `json:"positionMs"`
	RepeatMode     RepeatMode `json:"repeatMode"`
	ShuffleEnabled bool       `json:"shuffleEnabled"`
	IsPlaying      bool       `json:"isPlaying"`
}
