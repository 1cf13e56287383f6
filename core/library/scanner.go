package library

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"Cadenza/logger"
	"Cadenza/model"
)

// MediaIndex is the host media index the scanner reads from. Items
// shorter than minDuration (sub-second ringtone clips) are excluded at
// the query.
type MediaIndex interface {
	QueryAudio(ctx context.Context, minDuration time.Duration) ([]model.Track, error)
	// Subscribe registers a callback fired when the index content
	// changes, so the scanner can refresh automatically.
	Subscribe(onChange func())
}

// ScanCacheStore persists the last successful scan result together
// with its creation timestamp.
type ScanCacheStore interface {
	SaveScan(ctx context.Context, result model.ScanResult) error
	LoadScan(ctx context.Context) (*model.ScanResult, error)
	ClearScan(ctx context.Context) error
}

// ArtworkOverrideStore is the durable mediaID -> artwork reference map.
// Writes must be atomic with respect to concurrent saves.
type ArtworkOverrideStore interface {
	SetOverride(ctx context.Context, mediaID, artworkRef string) error
	RemoveOverride(ctx context.Context, mediaID string) error
	Overrides(ctx context.Context) (map[string]string, error)
}

// BookmarkStore keeps the set of "opened file" URIs the user picked
// outside the host index.
type BookmarkStore interface {
	Bookmarks(ctx context.Context) ([]string, error)
	AddBookmark(ctx context.Context, uri string) error
	RemoveBookmark(ctx context.Context, uri string) error
}

// MetadataExtractor reads track metadata straight from a file, used for
// bookmarked files the host index doesn't know about.
type MetadataExtractor interface {
	Extract(ctx context.Context, uri string) (model.Track, error)
}

// OutcomeStatus describes how a refresh call ended. A rejected
// concurrent refresh is a defined outcome, not an error.
type OutcomeStatus string

const (
	// OutcomeCompleted means a full scan ran and was published.
	OutcomeCompleted OutcomeStatus = "completed"
	// OutcomeSkipped means a scan was already in flight; the call
	// returned immediately without touching anything.
	OutcomeSkipped OutcomeStatus = "skipped"
	// OutcomeCached means a fresh-enough cached result was published
	// without scanning.
	OutcomeCached OutcomeStatus = "cached"
	// OutcomeFailed means the scan could not complete; the previously
	// published track list was retained.
	OutcomeFailed OutcomeStatus = "failed"
)

// RefreshOutcome reports the result of one refresh call.
type RefreshOutcome struct {
	Status     OutcomeStatus
	TrackCount int
	Duration   time.Duration
	Err        error
}

// Snapshot is the published library state: the merged, override-applied
// track list with a strictly increasing version.
type Snapshot struct {
	Tracks    []model.Track
	Version   uint64
	UpdatedAt time.Time
}

// Scanner owns the scan/merge/cache pipeline. At most one scan runs at
// a time; readers always see the last successfully published snapshot.
type Scanner struct {
	index     MediaIndex
	cache     ScanCacheStore
	overrides ArtworkOverrideStore
	bookmarks BookmarkStore
	extractor MetadataExtractor

	minDuration time.Duration
	maxCacheAge time.Duration

	scanning atomic.Bool

	mu       sync.Mutex // serializes publishes
	version  uint64
	snapshot atomic.Value // *Snapshot

	subMu  sync.Mutex
	subs   map[uint64]chan Snapshot
	nextID uint64

	now func() time.Time
}

// Options tunes the scanner's policies.
type Options struct {
	MinTrackDuration time.Duration // defaults to 1s
	ScanCacheMaxAge  time.Duration // defaults to 24h
}

// NewScanner wires the scanner to its collaborators and subscribes to
// index change notifications.
func NewScanner(index MediaIndex, cache ScanCacheStore, overrides ArtworkOverrideStore, bookmarks BookmarkStore, extractor MetadataExtractor, opts Options) *Scanner {
	if opts.MinTrackDuration <= 0 {
		opts.MinTrackDuration = time.Second
	}
	if opts.ScanCacheMaxAge <= 0 {
		opts.ScanCacheMaxAge = 24 * time.Hour
	}
	s := &Scanner{
		index:       index,
		cache:       cache,
		overrides:   overrides,
		bookmarks:   bookmarks,
		extractor:   extractor,
		minDuration: opts.MinTrackDuration,
		maxCacheAge: opts.ScanCacheMaxAge,
		subs:        make(map[uint64]chan Snapshot),
		now:         time.Now,
	}
	s.snapshot.Store(&Snapshot{})
	if index != nil {
		index.Subscribe(func() {
			go s.Refresh(context.Background())
		})
	}
	return s
}

// Refresh runs one full scan. A call arriving while another scan is in
// flight returns OutcomeSkipped immediately; it never blocks or queues.
// A failing media index query retains the previously published list.
func (s *Scanner) Refresh(ctx context.Context) RefreshOutcome {
	if !s.scanning.CompareAndSwap(false, true) {
		return RefreshOutcome{Status: OutcomeSkipped, TrackCount: len(s.Tracks())}
	}
	// Released on every exit path, success or not.
	defer s.scanning.Store(false)

	start := s.now()
	indexed, err := s.index.QueryAudio(ctx, s.minDuration)
	if err != nil {
		logger.Error("media index query failed, retaining previous library",
			logger.ErrorField(err))
		return RefreshOutcome{Status: OutcomeFailed, TrackCount: len(s.Tracks()), Err: err}
	}

	merged := s.mergeBookmarks(ctx, indexed)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].DateAdded.After(merged[j].DateAdded)
	})

	duration := s.now().Sub(start)

	// The cache stores the pre-override result so overrides can be
	// re-applied on every cold load without rescanning.
	result := model.ScanResult{Tracks: merged, CreatedAt: s.now(), ScanDuration: duration}
	if err := s.cache.SaveScan(ctx, result); err != nil {
		logger.Error("failed to persist scan cache", logger.ErrorField(err))
	}

	published := s.applyOverrides(ctx, merged)
	s.publish(published)

	logger.Info("library scan completed",
		logger.Int("tracks", len(published)),
		logger.Duration("duration", duration))
	return RefreshOutcome{Status: OutcomeCompleted, TrackCount: len(published), Duration: duration}
}

// LoadOrRefresh is the cold-start path: a cached scan younger than the
// staleness window is re-overlaid with the current overrides and
// published without scanning; anything older forces a fresh scan.
func (s *Scanner) LoadOrRefresh(ctx context.Context) RefreshOutcome {
	cached, err := s.cache.LoadScan(ctx)
	if err != nil {
		logger.Warn("failed to load scan cache", logger.ErrorField(err))
	}
	if cached.IsFresh(s.now(), s.maxCacheAge) {
		published := s.applyOverrides(ctx, cached.Tracks)
		s.publish(published)
		logger.Info("library restored from scan cache",
			logger.Int("tracks", len(published)))
		return RefreshOutcome{Status: OutcomeCached, TrackCount: len(published)}
	}
	return s.Refresh(ctx)
}

// ForceRefresh drops the cached result and always rescans.
func (s *Scanner) ForceRefresh(ctx context.Context) RefreshOutcome {
	if err := s.cache.ClearScan(ctx); err != nil {
		logger.Warn("failed to clear scan cache", logger.ErrorField(err))
	}
	return s.Refresh(ctx)
}

// SaveCustomArtwork stores a user-chosen artwork reference for a track.
// The override is written durably first, the published list is patched
// in place (no rescan), and the scan cache is invalidated so the next
// cold load re-derives with the override baked in.
func (s *Scanner) SaveCustomArtwork(ctx context.Context, mediaID, artworkRef string) error {
	if err := s.overrides.SetOverride(ctx, mediaID, artworkRef); err != nil {
		logger.Error("failed to persist artwork override",
			logger.String("mediaId", mediaID), logger.ErrorField(err))
		return err
	}

	s.mu.Lock()
	cur := s.snapshot.Load().(*Snapshot)
	tracks := make([]model.Track, len(cur.Tracks))
	copy(tracks, cur.Tracks)
	for i := range tracks {
		if tracks[i].MediaID == mediaID {
			tracks[i].ArtworkRef = artworkRef
		}
	}
	s.publishLocked(tracks)
	s.mu.Unlock()

	// Trades a more expensive next cold load for consistency.
	if err := s.cache.ClearScan(ctx); err != nil {
		logger.Warn("failed to invalidate scan cache after artwork save",
			logger.ErrorField(err))
	}
	return nil
}

// OpenFile bookmarks a user-picked file URI, extracts its metadata and
// patches it into the published list so it is playable right away.
func (s *Scanner) OpenFile(ctx context.Context, uri string) (model.Track, error) {
	track, err := s.extractor.Extract(ctx, uri)
	if err != nil {
		return model.Track{}, err
	}
	if err := s.bookmarks.AddBookmark(ctx, uri); err != nil {
		logger.Error("failed to bookmark opened file",
			logger.String("uri", uri), logger.ErrorField(err))
		return model.Track{}, err
	}

	s.mu.Lock()
	cur := s.snapshot.Load().(*Snapshot)
	tracks := make([]model.Track, 0, len(cur.Tracks)+1)
	found := false
	for _, t := range cur.Tracks {
		if t.MediaID == track.MediaID {
			found = true
			t = track
		}
		tracks = append(tracks, t)
	}
	if !found {
		tracks = append([]model.Track{track}, tracks...)
	}
	s.publishLocked(tracks)
	s.mu.Unlock()

	return track, nil
}

// Tracks returns the currently published track list.
func (s *Scanner) Tracks() []model.Track {
	snap := s.snapshot.Load().(*Snapshot)
	out := make([]model.Track, len(snap.Tracks))
	copy(out, snap.Tracks)
	return out
}

// Current returns the full published snapshot.
func (s *Scanner) Current() Snapshot {
	return *s.snapshot.Load().(*Snapshot)
}

// TrackByMediaID looks a track up in the published list.
func (s *Scanner) TrackByMediaID(mediaID string) (model.Track, bool) {
	snap := s.snapshot.Load().(*Snapshot)
	for _, t := range snap.Tracks {
		if t.MediaID == mediaID {
			return t, true
		}
	}
	return model.Track{}, false
}

// Subscribe registers a listener for library snapshots; semantics match
// the queue manager's subscription (latest value wins, never out of
// order). The returned func unsubscribes.
func (s *Scanner) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	s.subMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = ch
	s.subMu.Unlock()

	// Non-blocking seed: a concurrent publish may already have filled
	// the buffer with a snapshot at least as new as this one.
	select {
	case ch <- s.Current():
	default:
	}

	return ch, func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// mergeBookmarks folds the opened-file bookmarks that the host index
// doesn't cover into the scan, extracting metadata per file. One bad
// file is logged and skipped; it never aborts the whole scan.
func (s *Scanner) mergeBookmarks(ctx context.Context, indexed []model.Track) []model.Track {
	merged := make([]model.Track, len(indexed))
	copy(merged, indexed)

	uris, err := s.bookmarks.Bookmarks(ctx)
	if err != nil {
		logger.Warn("failed to load opened-file bookmarks", logger.ErrorField(err))
		return merged
	}
	if len(uris) == 0 {
		return merged
	}

	known := make(map[string]bool, len(indexed))
	for _, t := range indexed {
		known[t.MediaID] = true
	}

	for _, uri := range uris {
		track, err := s.extractor.Extract(ctx, uri)
		if err != nil {
			logger.Warn("skipping unreadable opened file",
				logger.String("uri", uri), logger.ErrorField(err))
			continue
		}
		if known[track.MediaID] {
			continue
		}
		known[track.MediaID] = true
		merged = append(merged, track)
	}
	return merged
}

// applyOverrides overlays the artwork override map; overrides always
// win over scanner-derived artwork.
func (s *Scanner) applyOverrides(ctx context.Context, tracks []model.Track) []model.Track {
	overrides, err := s.overrides.Overrides(ctx)
	if err != nil {
		logger.Warn("failed to load artwork overrides", logger.ErrorField(err))
		return tracks
	}
	if len(overrides) == 0 {
		return tracks
	}
	out := make([]model.Track, len(tracks))
	copy(out, tracks)
	for i := range out {
		if ref, ok := overrides[out[i].MediaID]; ok {
			out[i].ArtworkRef = ref
		}
	}
	return out
}

func (s *Scanner) publish(tracks []model.Track) {
	s.mu.Lock()
	s.publishLocked(tracks)
	s.mu.Unlock()
}

func (s *Scanner) publishLocked(tracks []model.Track) {
	s.version++
	snap := &Snapshot{Tracks: tracks, Version: s.version, UpdatedAt: s.now()}
	s.snapshot.Store(snap)

	s.subMu.Lock()
	for _, ch := range s.subs {
		select {
		case ch <- *snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- *snap:
			default:
			}
		}
	}
	s.subMu.Unlock()
}
