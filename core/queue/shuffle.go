package queue

import "Cadenza/model"

// SetShuffle toggles shuffle. Enabling computes a random permutation of
// the MAIN items only: the current item stays fixed at its position and
// the play-next / user-queue lanes keep their physical slots, so they
// remain "next up" no matter how often shuffle is toggled. Disabling
// restores the MAIN insertion order into the same slots.
func (m *Manager) SetShuffle(enabled bool) {
	m.mu.Lock()
	if m.shuffle == enabled {
		m.mu.Unlock()
		m.sink.SetShuffle(enabled)
		return
	}
	m.shuffle = enabled
	if enabled {
		m.shuffleMainLocked()
	} else {
		m.restoreMainLocked()
	}
	m.publishLocked()
	m.mu.Unlock()

	m.sink.SetShuffle(enabled)
}

// mainSlotsLocked returns the indices holding MAIN items, excluding the
// current position. These are the only slots shuffle may touch.
func (m *Manager) mainSlotsLocked() []int {
	slots := make([]int, 0, len(m.items))
	for i, it := range m.items {
		if i == m.current || it.Segment != model.SegmentMain {
			continue
		}
		slots = append(slots, i)
	}
	return slots
}

func (m *Manager) shuffleMainLocked() {
	slots := m.mainSlotsLocked()
	if len(slots) < 2 {
		return
	}
	pool := make([]model.QueueItem, len(slots))
	for i, s := range slots {
		pool[i] = m.items[s]
	}
	m.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	for i, s := range slots {
		m.items[s] = pool[i]
	}
}

// restoreMainLocked puts the MAIN items back into insertion order,
// projected onto the slots they currently occupy. The current item does
// not move; the index keeps pointing at the same logical item.
func (m *Manager) restoreMainLocked() {
	slots := m.mainSlotsLocked()
	if len(slots) < 2 {
		return
	}
	inSlots := make(map[string]model.QueueItem, len(slots))
	for _, s := range slots {
		inSlots[m.items[s].UID] = m.items[s]
	}

	ordered := make([]model.QueueItem, 0, len(slots))
	for _, uid := range m.mainOrder {
		if it, ok := inSlots[uid]; ok {
			ordered = append(ordered, it)
			delete(inSlots, uid)
		}
	}
	// Anything not tracked in mainOrder keeps its relative slot order.
	for _, s := range slots {
		if it, ok := inSlots[m.items[s].UID]; ok {
			ordered = append(ordered, it)
		}
	}
	for i, s := range slots {
		m.items[s] = ordered[i]
	}
}
