package queue

import (
	"context"

	"Cadenza/logger"
	"Cadenza/model"
)

// PlaybackSink is the thing that actually produces audio. The manager
// only orders items and commands the sink; it never waits on it for
// correctness. A sink that advances on its own (natural end of track)
// reports back through Manager.OnTrackChanged.
type PlaybackSink interface {
	// Load replaces the sink's sequence and positions it at startIndex /
	// positionMs, starting playback iff play is true.
	Load(ctx context.Context, items []model.QueueItem, startIndex int, positionMs int64, play bool) error
	// SkipTo moves the sink to the item at index in its loaded sequence.
	SkipTo(ctx context.Context, index int) error
	SetShuffle(enabled bool)
	SetRepeat(mode model.RepeatMode)
}

// StateStore persists the "last known queue + position" tuple used to
// restore the queue on relaunch.
type StateStore interface {
	SavePlayback(ctx context.Context, state model.PersistedPlayback) error
	LoadPlayback(ctx context.Context) (*model.PersistedPlayback, error)
	ClearPlayback(ctx context.Context) error
}

// NopSink is a sink that logs commands and produces no audio. Used when
// the process runs headless without a media session attached.
type NopSink struct{}

func (NopSink) Load(_ context.Context, items []model.QueueItem, startIndex int, positionMs int64, play bool) error {
	logger.Debug("sink load",
		logger.Int("items", len(items)),
		logger.Int("startIndex", startIndex),
		logger.Int64("positionMs", positionMs),
		logger.Bool("play", play),
	)
	return nil
}

func (NopSink) SkipTo(_ context.Context, index int) error {
	logger.Debug("sink skip", logger.Int("index", index))
	return nil
}

func (NopSink) SetShuffle(enabled bool) {
	logger.Debug("sink shuffle", logger.Bool("enabled", enabled))
}

func (NopSink) SetRepeat(mode model.RepeatMode) {
	logger.Debug("sink repeat", logger.String("mode", string(mode)))
}
