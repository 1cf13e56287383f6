package queue

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"Cadenza/logger"
	"Cadenza/model"

	"github.com/google/uuid"
)

var ErrInvalidMove = errors.New("invalid move indices")

// Manager is the single authoritative owner of the playback order. All
// mutations are serialized behind a mutex and are purely in-memory; the
// latest state is published as an immutable snapshot so readers never
// take the lock. Persistence and sink commands happen after the model
// has already been updated, so a failing collaborator can never leave
// the model inconsistent with itself.
type Manager struct {
	mu sync.Mutex

	items   []model.QueueItem
	current int // index into items, -1 when empty
	shuffle bool
	repeat  model.RepeatMode

	// mainOrder remembers the insertion order of MAIN item UIDs so that
	// disabling shuffle can restore it.
	mainOrder []string

	version    uint64
	positionMs int64
	playing    bool

	rng   *rand.Rand
	sink  PlaybackSink
	store StateStore

	snapshot atomic.Value // *model.QueueState

	subMu  sync.Mutex
	subs   map[uint64]chan model.QueueState
	nextID uint64
}

// NewManager builds a queue manager bound to the given sink and
// persistence store. A nil sink falls back to NopSink; a nil store
// disables persistence.
func NewManager(sink PlaybackSink, store StateStore) *Manager {
	if sink == nil {
		sink = NopSink{}
	}
	m := &Manager{
		current: -1,
		repeat:  model.RepeatOff,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sink:    sink,
		store:   store,
		subs:    make(map[uint64]chan model.QueueState),
	}
	m.snapshot.Store(m.buildStateLocked())
	return m
}

// SetQueue replaces the whole queue with the given tracks, all tagged
// MAIN. startIndex is clamped; an empty track list yields an empty
// queue. The sink is asked to load the new sequence after the model has
// been updated, so a sink error never corrupts the queue.
func (m *Manager) SetQueue(ctx context.Context, tracks []model.Track, startIndex int, play bool, startPositionMs int64, sourceID string) error {
	m.mu.Lock()
	m.items = make([]model.QueueItem, 0, len(tracks))
	m.mainOrder = m.mainOrder[:0]
	for _, t := range tracks {
		item := model.QueueItem{
			UID:      uuid.NewString(),
			Track:    t,
			SourceID: sourceID,
			Segment:  model.SegmentMain,
		}
		m.items = append(m.items, item)
		m.mainOrder = append(m.mainOrder, item.UID)
	}
	if len(m.items) == 0 {
		m.current = -1
	} else {
		m.current = clamp(startIndex, 0, len(m.items)-1)
	}
	m.positionMs = startPositionMs
	m.playing = play && len(m.items) > 0
	items, idx := m.itemsCopyLocked(), m.current
	m.publishLocked()
	m.mu.Unlock()

	if err := m.sink.Load(ctx, items, idx, startPositionMs, play); err != nil {
		logger.Error("sink load failed", logger.ErrorField(err))
		return err
	}
	return nil
}

// PlayNext inserts the tracks immediately after the current item, ahead
// of any existing play-next or user-queue entries; the newest request
// takes the priority position. The current item is untouched, except
// that inserting into an empty queue makes the first inserted item
// current (a non-empty queue always has a valid current index).
func (m *Manager) PlayNext(tracks []model.Track, sourceID string) {
	if len(tracks) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	fresh := make([]model.QueueItem, 0, len(tracks))
	for _, t := range tracks {
		fresh = append(fresh, model.QueueItem{
			UID:      uuid.NewString(),
			Track:    t,
			SourceID: sourceID,
			Segment:  model.SegmentPlayNext,
		})
	}

	if len(m.items) == 0 {
		m.items = fresh
		m.current = 0
	} else {
		m.items = insertAt(m.items, m.current+1, fresh)
	}
	m.publishLocked()
}

// AddToUserQueue appends tracks to the end of the user-queue lane. When
// allowDuplicates is false, a track whose MediaID already sits in the
// user queue is silently skipped.
func (m *Manager) AddToUserQueue(tracks []model.Track, sourceID string, allowDuplicates bool) {
	if len(tracks) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	queued := make(map[string]bool)
	if !allowDuplicates {
		for _, it := range m.items {
			if it.Segment == model.SegmentUserQueue {
				queued[it.Track.MediaID] = true
			}
		}
	}

	var fresh []model.QueueItem
	for _, t := range tracks {
		if !allowDuplicates && queued[t.MediaID] {
			continue
		}
		queued[t.MediaID] = true
		fresh = append(fresh, model.QueueItem{
			UID:      uuid.NewString(),
			Track:    t,
			SourceID: sourceID,
			Segment:  model.SegmentUserQueue,
		})
	}
	if len(fresh) == 0 {
		return
	}

	if len(m.items) == 0 {
		m.items = fresh
		m.current = 0
	} else {
		_, uqEnd := m.transientBoundsLocked()
		m.items = insertAt(m.items, uqEnd, fresh)
	}
	m.publishLocked()
}

// Move repositions one item. Invalid indices report ErrInvalidMove and
// leave the queue untouched. The current item is tracked by identity:
// whatever shifting the move causes, the index keeps pointing at the
// same logical item. A moved item takes on the segment of the region it
// lands in; moving the current item keeps its segment.
func (m *Manager) Move(fromIndex, toIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.items)
	if fromIndex < 0 || fromIndex >= n || toIndex < 0 || toIndex >= n {
		return ErrInvalidMove
	}
	if fromIndex == toIndex {
		return nil
	}

	currentUID := ""
	if m.current >= 0 {
		currentUID = m.items[m.current].UID
	}

	moved := m.items[fromIndex]
	rest := append(append([]model.QueueItem{}, m.items[:fromIndex]...), m.items[fromIndex+1:]...)
	m.items = insertAt(rest, toIndex, []model.QueueItem{moved})
	m.current = m.indexOfUIDLocked(currentUID)

	if moved.UID != currentUID {
		m.retagLocked(toIndex)
	}
	m.publishLocked()
	return nil
}

// RemoveAt removes the item at index. Out-of-range indices are a no-op.
// Removing the current item makes the next logical item current; the
// play-next lane sits right after the current index, so the slide is
// exactly the segment-ordered successor.
func (m *Manager) RemoveAt(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeAtLocked(index)
}

// RemoveByUID removes the item with the given UID. Unknown UIDs are a
// no-op, since UI races against already-removed items are expected.
func (m *Manager) RemoveByUID(uid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeAtLocked(m.indexOfUIDLocked(uid))
}

func (m *Manager) removeAtLocked(index int) {
	if index < 0 || index >= len(m.items) {
		return
	}
	removed := m.items[index]
	m.items = append(m.items[:index], m.items[index+1:]...)
	m.dropMainOrderLocked(removed.UID)

	switch {
	case len(m.items) == 0:
		m.current = -1
	case index < m.current:
		m.current--
	case index == m.current && m.current >= len(m.items):
		m.current = len(m.items) - 1
	}
	m.publishLocked()
}

// ClearTransientQueues removes every play-next and user-queue item. With
// keepCurrent false a transient current item is removed as well and
// playback position moves to the next MAIN item.
func (m *Manager) ClearTransientQueues(keepCurrent bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := make([]model.QueueItem, 0, len(m.items))
	newCurrent := -1
	removedBefore := 0
	currentRemoved := false
	for i, it := range m.items {
		transient := it.Segment != model.SegmentMain
		if transient && (i != m.current || !keepCurrent) {
			if i < m.current {
				removedBefore++
			} else if i == m.current {
				currentRemoved = true
			}
			continue
		}
		kept = append(kept, it)
	}
	m.items = kept

	switch {
	case len(m.items) == 0:
		m.current = -1
	case m.current < 0:
		// was already empty
	default:
		newCurrent = m.current - removedBefore
		if currentRemoved && newCurrent >= len(m.items) {
			newCurrent = len(m.items) - 1
		}
		m.current = clamp(newCurrent, 0, len(m.items)-1)
	}
	m.publishLocked()
}

// ClearQueue removes everything. With keepCurrent true the currently
// playing item survives as a singleton MAIN queue.
func (m *Manager) ClearQueue(keepCurrent bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if keepCurrent && m.current >= 0 && m.current < len(m.items) {
		cur := m.items[m.current]
		cur.Segment = model.SegmentMain
		m.items = []model.QueueItem{cur}
		m.mainOrder = []string{cur.UID}
		m.current = 0
	} else {
		m.items = nil
		m.mainOrder = nil
		m.current = -1
	}
	m.publishLocked()
}

// SetRepeat sets the repeat mode. The stored order is unaffected; only
// the sink's end-of-queue behavior changes.
func (m *Manager) SetRepeat(mode model.RepeatMode) {
	m.mu.Lock()
	m.repeat = mode
	m.publishLocked()
	m.mu.Unlock()

	m.sink.SetRepeat(mode)
}

// OnTrackChanged synchronizes the current index with the sink after the
// sink advanced on its own (natural end of track). The nearest match at
// or after the current position wins, so duplicate tracks resolve to
// the expected occurrence. A MediaID not found anywhere in the queue is
// a desync: it is logged and the model is left as last known good.
func (m *Manager) OnTrackChanged(mediaID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.items)
	if n == 0 {
		logger.Warn("track change reported on empty queue", logger.String("mediaId", mediaID))
		return
	}
	start := m.current
	if start < 0 {
		start = 0
	}
	for off := 0; off < n; off++ {
		idx := (start + off) % n
		if m.items[idx].Track.MediaID == mediaID {
			if idx != m.current {
				m.current = idx
				m.positionMs = 0
				m.publishLocked()
			}
			return
		}
	}
	logger.Warn("sink reported unknown track, queue model left unchanged",
		logger.String("mediaId", mediaID))
}

// Next advances to the next logical item and commands the sink. At the
// end of the queue repeat-ALL wraps to the head; otherwise Next is a
// no-op. Repeat-ONE does not pin manual skips.
func (m *Manager) Next(ctx context.Context) error {
	m.mu.Lock()
	target := -1
	switch {
	case m.current < 0:
	case m.current+1 < len(m.items):
		target = m.current + 1
	case m.repeat == model.RepeatAll && len(m.items) > 0:
		target = 0
	}
	if target < 0 {
		m.mu.Unlock()
		return nil
	}
	m.current = target
	m.positionMs = 0
	m.publishLocked()
	m.mu.Unlock()

	if err := m.sink.SkipTo(ctx, target); err != nil {
		logger.Error("sink skip failed", logger.ErrorField(err), logger.Int("index", target))
		return err
	}
	return nil
}

// Previous moves to the previous item, wrapping under repeat-ALL.
func (m *Manager) Previous(ctx context.Context) error {
	m.mu.Lock()
	target := -1
	switch {
	case m.current < 0:
	case m.current > 0:
		target = m.current - 1
	case m.repeat == model.RepeatAll && len(m.items) > 0:
		target = len(m.items) - 1
	}
	if target < 0 {
		m.mu.Unlock()
		return nil
	}
	m.current = target
	m.positionMs = 0
	m.publishLocked()
	m.mu.Unlock()

	if err := m.sink.SkipTo(ctx, target); err != nil {
		logger.Error("sink skip failed", logger.ErrorField(err), logger.Int("index", target))
		return err
	}
	return nil
}

// UpdatePlayback records the sink's reported position and play state so
// the persisted tuple stays usable for restore. It does not change the
// queue order and publishes no snapshot.
func (m *Manager) UpdatePlayback(positionMs int64, playing bool) {
	m.mu.Lock()
	m.positionMs = positionMs
	m.playing = playing
	m.persistAsync()
	m.mu.Unlock()
}

// RestoreFromPersisted rebuilds the queue from a persisted tuple,
// resolving each saved MediaID against the library; unresolvable IDs
// are dropped and the current index is remapped to the surviving item.
// The sink is loaded paused at the saved position: the user resumes
// manually after a relaunch.
func (m *Manager) RestoreFromPersisted(ctx context.Context, state model.PersistedPlayback, resolve func(mediaID string) (model.Track, bool)) error {
	if len(state.MediaIDs) == 0 || resolve == nil {
		return nil
	}

	tracks := make([]model.Track, 0, len(state.MediaIDs))
	newIndex := 0
	for i, id := range state.MediaIDs {
		t, ok := resolve(id)
		if !ok {
			logger.Warn("persisted track no longer in library", logger.String("mediaId", id))
			continue
		}
		if i == state.CurrentIndex {
			newIndex = len(tracks)
		}
		tracks = append(tracks, t)
	}
	if len(tracks) == 0 {
		return nil
	}

	m.mu.Lock()
	m.repeat = state.RepeatMode
	m.mu.Unlock()
	m.sink.SetRepeat(state.RepeatMode)

	if err := m.SetQueue(ctx, tracks, newIndex, false, state.PositionMs, ""); err != nil {
		return err
	}
	if state.ShuffleEnabled {
		m.SetShuffle(true)
	}
	return nil
}

// Read-only accessors. All of them serve from the immutable published
// snapshot, so they never contend with writers.

// Snapshot returns the latest published queue state.
func (m *Manager) Snapshot() model.QueueState {
	return *m.snapshot.Load().(*model.QueueState)
}

// VisibleQueue returns the items strictly after the current index, the
// slice a UI shows as "up next".
func (m *Manager) VisibleQueue() []model.QueueItem {
	s := m.snapshot.Load().(*model.QueueState)
	if s.CurrentIndex < 0 || s.CurrentIndex+1 >= len(s.Items) {
		return nil
	}
	out := make([]model.QueueItem, len(s.Items)-s.CurrentIndex-1)
	copy(out, s.Items[s.CurrentIndex+1:])
	return out
}

// Size returns the number of items in the queue.
func (m *Manager) Size() int {
	return len(m.snapshot.Load().(*model.QueueState).Items)
}

// CurrentItem returns the currently playing item, or nil.
func (m *Manager) CurrentItem() *model.QueueItem {
	return m.snapshot.Load().(*model.QueueState).CurrentItem()
}

// CurrentIndex returns the absolute current position, -1 when empty.
func (m *Manager) CurrentIndex() int {
	return m.snapshot.Load().(*model.QueueState).CurrentIndex
}

// HasNext reports whether advancing is possible; repeat-ALL wraps, so a
// non-empty queue always has a next item in that mode.
func (m *Manager) HasNext() bool {
	return m.snapshot.Load().(*model.QueueState).HasNext
}

// HasPrevious mirrors HasNext for backwards navigation.
func (m *Manager) HasPrevious() bool {
	return m.snapshot.Load().(*model.QueueState).HasPrevious
}

// IsPlayNextIndex reports whether the item at index belongs to the
// play-next lane.
func (m *Manager) IsPlayNextIndex(index int) bool {
	s := m.snapshot.Load().(*model.QueueState)
	if index < 0 || index >= len(s.Items) {
		return false
	}
	return s.Items[index].Segment == model.SegmentPlayNext
}

// Stats returns per-segment counts for diagnostics.
func (m *Manager) Stats() model.QueueStats {
	s := m.snapshot.Load().(*model.QueueState)
	stats := model.QueueStats{Total: len(s.Items), Version: s.Version}
	for _, it := range s.Items {
		switch it.Segment {
		case model.SegmentPlayNext:
			stats.PlayNext++
		case model.SegmentUserQueue:
			stats.UserQueue++
		default:
			stats.Main++
		}
	}
	return stats
}

// internal helpers, all called with m.mu held

// transientBoundsLocked returns the exclusive end of the play-next block
// and of the user-queue block that follow the current index.
func (m *Manager) transientBoundsLocked() (pnEnd, uqEnd int) {
	i := m.current + 1
	if m.current < 0 {
		i = 0
	}
	for i < len(m.items) && m.items[i].Segment == model.SegmentPlayNext {
		i++
	}
	pnEnd = i
	for i < len(m.items) && m.items[i].Segment == model.SegmentUserQueue {
		i++
	}
	return pnEnd, i
}

func (m *Manager) indexOfUIDLocked(uid string) int {
	if uid == "" {
		return -1
	}
	for i, it := range m.items {
		if it.UID == uid {
			return i
		}
	}
	return -1
}

func (m *Manager) dropMainOrderLocked(uid string) {
	for i, u := range m.mainOrder {
		if u == uid {
			m.mainOrder = append(m.mainOrder[:i], m.mainOrder[i+1:]...)
			return
		}
	}
}

// retagLocked reassigns the segment of the item at idx based on the
// region it sits in relative to the current index and the transient
// blocks. Used after Move so the segment invariant keeps holding.
func (m *Manager) retagLocked(idx int) {
	if idx < 0 || idx >= len(m.items) || idx == m.current {
		return
	}
	item := m.items[idx]
	pnEnd, uqEnd := m.transientBoundsForRetagLocked(idx)

	var seg model.Segment
	switch {
	case idx > m.current && idx < pnEnd:
		seg = model.SegmentPlayNext
	case idx >= pnEnd && idx < uqEnd:
		seg = model.SegmentUserQueue
	default:
		seg = model.SegmentMain
	}
	if seg == item.Segment {
		return
	}
	if item.Segment == model.SegmentMain {
		m.dropMainOrderLocked(item.UID)
	} else if seg == model.SegmentMain {
		m.mainOrder = append(m.mainOrder, item.UID)
	}
	m.items[idx].Segment = seg
}

// transientBoundsForRetagLocked computes the block bounds while
// ignoring the item at skip, which is the one being retagged.
func (m *Manager) transientBoundsForRetagLocked(skip int) (pnEnd, uqEnd int) {
	i := m.current + 1
	if m.current < 0 {
		i = 0
	}
	for i < len(m.items) && (i == skip || m.items[i].Segment == model.SegmentPlayNext) {
		i++
	}
	pnEnd = i
	for i < len(m.items) && (i == skip || m.items[i].Segment == model.SegmentUserQueue) {
		i++
	}
	return pnEnd, i
}

func (m *Manager) itemsCopyLocked() []model.QueueItem {
	out := make([]model.QueueItem, len(m.items))
	copy(out, m.items)
	return out
}

func insertAt(items []model.QueueItem, pos int, fresh []model.QueueItem) []model.QueueItem {
	if pos < 0 {
		pos = 0
	}
	if pos > len(items) {
		pos = len(items)
	}
	out := make([]model.QueueItem, 0, len(items)+len(fresh))
	out = append(out, items[:pos]...)
	out = append(out, fresh...)
	out = append(out, items[pos:]...)
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
