package model

// Segment tags which logical lane of the play sequence a queue item
// belongs to.
type Segment string

const (
	// SegmentMain is the base ordered play sequence, e.g. album or
	// playlist order. Only MAIN items participate in shuffle.
	SegmentMain Segment = "MAIN"
	// SegmentPlayNext is the priority lane queued immediately after the
	// current item.
	SegmentPlayNext Segment = "PLAY_NEXT"
	// SegmentUserQueue is the manually queued lane, played after the
	// play-next lane but before the rest of MAIN.
	SegmentUserQueue Segment = "USER_QUEUE"
)

// RepeatMode controls end-of-queue behavior on the playback sink.
type RepeatMode string

const (
	RepeatOff RepeatMode = "OFF"
	RepeatOne RepeatMode = "ONE"
	RepeatAll RepeatMode = "ALL"
)

// QueueItem wraps a Track placed in the play sequence. The UID is
// process-unique and never reused, so removal and move keep working
// across position shifts and duplicate tracks.
type QueueItem struct {
	UID      string  `json:"uid"`
	Track    Track   `json:"track"`
	SourceID string  `json:"sourceId,omitempty"` // Upstream list (playlist) that contributed this item
	Segment  Segment `json:"segment"`
}

// QueueState is the immutable snapshot published after every queue
// mutation. Version increases strictly with each published snapshot, so
// an observer can discard anything older than what it has already seen.
type QueueState struct {
	Items          []QueueItem `json:"items"`
	CurrentIndex   int         `json:"currentIndex"` // -1 when the queue is empty
	ShuffleEnabled bool        `json:"shuffleEnabled"`
	RepeatMode     RepeatMode  `json:"repeatMode"`
	HasNext        bool        `json:"hasNext"`
	HasPrevious    bool        `json:"hasPrevious"`
	Version        uint64      `json:"version"`
}

// CurrentItem returns the item at CurrentIndex, or nil for an empty queue.
func (s *QueueState) CurrentItem() *QueueItem {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Items) {
		return nil
	}
	item := s.Items[s.CurrentIndex]
	return &item
}

// QueueStats carries per-segment counts for diagnostics.
type QueueStats struct {
	Total     int    `json:"total"`
	Main      int    `json:"main"`
	PlayNext  int    `json:"playNext"`
	UserQueue int    `json:"userQueue"`
	Version   uint64 `json:"version"`
}
