package queue

import (
	"Cadenza/model"

	"github.com/google/uuid"
)

// UpdateSourcePlaylist reconciles the MAIN items contributed by one
// source against the source's new track list. Tracks present in both
// keep their existing item (same UID, refreshed metadata), removed
// tracks leave the queue, added tracks enter at the source's block in
// the new relative order. Items from other sources and the transient
// lanes are untouched.
//
// When preserveCurrentPosition is set and the current item survives,
// the current index follows it wherever it landed; otherwise the index
// stays numeric, sliding the way a removal would.
func (m *Manager) UpdateSourcePlaylist(newTracks []model.Track, sourceID string, preserveCurrentPosition bool) {
	if sourceID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	currentUID := ""
	if m.current >= 0 && m.current < len(m.items) {
		currentUID = m.items[m.current].UID
	}
	oldNumeric := m.current

	// Detach the transient lane pinned behind the current item so the
	// reconciled MAIN block cannot interleave with it. It is pinned
	// back right after the re-derived current index below, keeping the
	// play-next and user-queue items "next up" across the sync.
	base := m.items
	var lane []model.QueueItem
	if m.current >= 0 {
		end := m.current + 1
		for end < len(base) && base[end].Segment != model.SegmentMain {
			end++
		}
		if end > m.current+1 {
			lane = append(lane, base[m.current+1:end]...)
			base = append(append([]model.QueueItem{}, base[:m.current+1]...), base[end:]...)
		}
	}

	// Pull the source's MAIN items out, remembering where its block
	// started and how many sat before the current index.
	pool := make(map[string][]model.QueueItem)
	kept := make([]model.QueueItem, 0, len(base))
	insertPos := -1
	removedBefore := 0
	for i, it := range base {
		if it.Segment == model.SegmentMain && it.SourceID == sourceID {
			pool[it.Track.MediaID] = append(pool[it.Track.MediaID], it)
			if insertPos < 0 {
				insertPos = len(kept)
			}
			if i < oldNumeric {
				removedBefore++
			}
			continue
		}
		kept = append(kept, it)
	}
	if insertPos < 0 {
		insertPos = len(kept)
	}

	// Rebuild the source block, reusing surviving items so shuffle and
	// position tracking stay stable across the sync.
	reconciled := make([]model.QueueItem, 0, len(newTracks))
	for _, t := range newTracks {
		if existing := pool[t.MediaID]; len(existing) > 0 {
			item := existing[0]
			pool[t.MediaID] = existing[1:]
			item.Track = t
			reconciled = append(reconciled, item)
			continue
		}
		item := model.QueueItem{
			UID:      uuid.NewString(),
			Track:    t,
			SourceID: sourceID,
			Segment:  model.SegmentMain,
		}
		reconciled = append(reconciled, item)
		m.mainOrder = append(m.mainOrder, item.UID)
	}
	m.items = insertAt(kept, insertPos, reconciled)

	// Leftovers in the pool are the removed items.
	for _, rest := range pool {
		for _, it := range rest {
			m.dropMainOrderLocked(it.UID)
		}
	}

	switch {
	case len(m.items) == 0:
		m.current = -1
	case currentUID == "":
		// The queue was empty before the sync; the first synced item
		// becomes current, like any other insert into an empty queue.
		m.current = 0
	default:
		idx := m.indexOfUIDLocked(currentUID)
		if idx >= 0 && preserveCurrentPosition {
			m.current = idx
		} else if idx >= 0 {
			m.current = clamp(oldNumeric, 0, len(m.items)-1)
		} else {
			// Current item was removed by the sync; slide to the item
			// that took its slot, accounting for the inserted block.
			pos := oldNumeric - removedBefore
			if insertPos <= pos {
				pos += len(reconciled)
			}
			m.current = clamp(pos, 0, len(m.items)-1)
		}
	}

	// Pin the detached lane back immediately behind the current item.
	switch {
	case len(lane) == 0:
	case m.current >= 0:
		m.items = insertAt(m.items, m.current+1, lane)
	default:
		// Every MAIN item was removed; the lane is all that is left.
		m.items = lane
		m.current = 0
	}
	m.publishLocked()
}

// RemoveItemsFromSource removes every MAIN item tagged with sourceID.
// The current index re-derives the same way a single removal does.
func (m *Manager) RemoveItemsFromSource(sourceID string) {
	if sourceID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := make([]model.QueueItem, 0, len(m.items))
	removedBefore := 0
	for i, it := range m.items {
		if it.Segment == model.SegmentMain && it.SourceID == sourceID {
			if i < m.current {
				removedBefore++
			}
			m.dropMainOrderLocked(it.UID)
			continue
		}
		kept = append(kept, it)
	}
	if len(kept) == len(m.items) {
		return
	}
	m.items = kept

	if len(m.items) == 0 {
		m.current = -1
	} else if m.current >= 0 {
		m.current = clamp(m.current-removedBefore, 0, len(m.items)-1)
	}
	m.publishLocked()
}
