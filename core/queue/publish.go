package queue

import (
	"context"
	"time"

	"Cadenza/logger"
	"Cadenza/model"
)

// publishLocked recomputes the snapshot under the manager lock, swaps
// it in for lock-free readers, fans it out to subscribers and schedules
// fire-and-forget persistence. Versions increase strictly with every
// published snapshot.
func (m *Manager) publishLocked() {
	m.version++
	state := m.buildStateLocked()
	m.snapshot.Store(state)
	m.fanout(*state)
	m.persistAsync()
}

func (m *Manager) buildStateLocked() *model.QueueState {
	items := make([]model.QueueItem, len(m.items))
	copy(items, m.items)

	n := len(items)
	hasNext := m.current >= 0 && (m.current+1 < n || (m.repeat == model.RepeatAll && n > 0))
	hasPrev := m.current > 0 || (m.repeat == model.RepeatAll && m.current >= 0 && n > 0)

	return &model.QueueState{
		Items:          items,
		CurrentIndex:   m.current,
		ShuffleEnabled: m.shuffle,
		RepeatMode:     m.repeat,
		HasNext:        hasNext,
		HasPrevious:    hasPrev,
		Version:        m.version,
	}
}

// Subscribe registers a listener for queue state snapshots. The channel
// holds only the latest snapshot: a slow consumer loses intermediate
// states but never observes them out of order. The returned func
// unsubscribes.
func (m *Manager) Subscribe() (<-chan model.QueueState, func()) {
	ch := make(chan model.QueueState, 1)
	m.subMu.Lock()
	m.nextID++
	id := m.nextID
	m.subs[id] = ch
	m.subMu.Unlock()

	// Seed with the current state so new subscribers don't wait for the
	// next mutation. Non-blocking: if a concurrent publish already
	// landed in the buffer, that snapshot is at least as new as this
	// one.
	select {
	case ch <- m.Snapshot():
	default:
	}

	return ch, func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

func (m *Manager) fanout(state model.QueueState) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- state:
		default:
			// Drop the stale pending snapshot, keep the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- state:
			default:
			}
		}
	}
}

// persistAsync saves the playback tuple without blocking the mutation
// path. Failures are logged; persistence is not part of the queue's own
// correctness.
func (m *Manager) persistAsync() {
	if m.store == nil {
		return
	}
	state := m.snapshot.Load().(*model.QueueState)
	tuple := model.PersistedPlayback{
		MediaIDs:       make([]string, len(state.Items)),
		CurrentIndex:   state.CurrentIndex,
		PositionMs:     m.positionMs,
		RepeatMode:     state.RepeatMode,
		ShuffleEnabled: state.ShuffleEnabled,
		IsPlaying:      m.playing,
	}
	for i, it := range state.Items {
		tuple.MediaIDs[i] = it.Track.MediaID
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.store.SavePlayback(ctx, tuple); err != nil {
			logger.Error("failed to persist playback state", logger.ErrorField(err))
		}
	}()
}
