package library

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"Cadenza/model"
)

// fakeIndex is an in-memory media index with an optional barrier so
// tests can hold a scan mid-flight.
type fakeIndex struct {
	mu       sync.Mutex
	tracks   []model.Track
	err      error
	queries  int
	barrier  chan struct{} // when set, QueryAudio blocks on it
	onChange []func()
}

func (f *fakeIndex) QueryAudio(_ context.Context, _ time.Duration) ([]model.Track, error) {
	f.mu.Lock()
	f.queries++
	barrier := f.barrier
	tracks, err := f.tracks, f.err
	f.mu.Unlock()
	if barrier != nil {
		<-barrier
	}
	if err != nil {
		return nil, err
	}
	out := make([]model.Track, len(tracks))
	copy(out, tracks)
	return out, nil
}

func (f *fakeIndex) Subscribe(onChange func()) {
	f.mu.Lock()
	f.onChange = append(f.onChange, onChange)
	f.mu.Unlock()
}

func (f *fakeIndex) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

// fakeScanCache stores the last saved result in memory.
type fakeScanCache struct {
	mu     sync.Mutex
	result *model.ScanResult
	clears int
}

func (f *fakeScanCache) SaveScan(_ context.Context, result model.ScanResult) error {
	f.mu.Lock()
	f.result = &result
	f.mu.Unlock()
	return nil
}

func (f *fakeScanCache) LoadScan(_ context.Context) (*model.ScanResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, nil
}

func (f *fakeScanCache) ClearScan(_ context.Context) error {
	f.mu.Lock()
	f.result = nil
	f.clears++
	f.mu.Unlock()
	return nil
}

type fakeOverrides struct {
	mu   sync.Mutex
	data map[string]string
}

func (f *fakeOverrides) SetOverride(_ context.Context, mediaID, ref string) error {
	f.mu.Lock()
	if f.data == nil {
		f.data = map[string]string{}
	}
	f.data[mediaID] = ref
	f.mu.Unlock()
	return nil
}

func (f *fakeOverrides) RemoveOverride(_ context.Context, mediaID string) error {
	f.mu.Lock()
	delete(f.data, mediaID)
	f.mu.Unlock()
	return nil
}

func (f *fakeOverrides) Overrides(_ context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.data))
	for k, v := range f.data {
		out[k] = v
	}
	return out, nil
}

type fakeBookmarks struct {
	mu   sync.Mutex
	uris []string
}

func (f *fakeBookmarks) Bookmarks(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uris...), nil
}

func (f *fakeBookmarks) AddBookmark(_ context.Context, uri string) error {
	f.mu.Lock()
	f.uris = append(f.uris, uri)
	f.mu.Unlock()
	return nil
}

func (f *fakeBookmarks) RemoveBookmark(_ context.Context, uri string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, u := range f.uris {
		if u == uri {
			f.uris = append(f.uris[:i], f.uris[i+1:]...)
			return nil
		}
	}
	return nil
}

// fakeExtractor maps URIs to tracks; unknown URIs fail.
type fakeExtractor struct {
	tracks map[string]model.Track
}

func (f fakeExtractor) Extract(_ context.Context, uri string) (model.Track, error) {
	if t, ok := f.tracks[uri]; ok {
		return t, nil
	}
	return model.Track{}, errors.New("unreadable file: " + uri)
}

func indexTrack(id string, age time.Duration) model.Track {
	return model.Track{
		MediaID:    id,
		Title:      "Title " + id,
		DurationMs: 60_000,
		DateAdded:  time.Now().Add(-age),
	}
}

func newTestScanner(index *fakeIndex) (*Scanner, *fakeScanCache, *fakeOverrides, *fakeBookmarks) {
	cache := &fakeScanCache{}
	overrides := &fakeOverrides{}
	bookmarks := &fakeBookmarks{}
	s := NewScanner(index, cache, overrides, bookmarks, fakeExtractor{}, Options{})
	return s, cache, overrides, bookmarks
}

func TestRefreshPublishesSortedByDateAdded(t *testing.T) {
	index := &fakeIndex{tracks: []model.Track{
		indexTrack("old", 48*time.Hour),
		indexTrack("new", time.Hour),
		indexTrack("mid", 24*time.Hour),
	}}
	s, _, _, _ := newTestScanner(index)

	outcome := s.Refresh(context.Background())
	if outcome.Status != OutcomeCompleted {
		t.Fatalf("status = %s, want completed", outcome.Status)
	}
	if outcome.TrackCount != 3 {
		t.Fatalf("trackCount = %d, want 3", outcome.TrackCount)
	}

	tracks := s.Tracks()
	want := []string{"new", "mid", "old"}
	for i, id := range want {
		if tracks[i].MediaID != id {
			t.Fatalf("order = %v, want newest first %v", tracks, want)
		}
	}
}

func TestConcurrentRefreshRunsExactlyOneScan(t *testing.T) {
	barrier := make(chan struct{})
	index := &fakeIndex{
		tracks:  []model.Track{indexTrack("a", time.Hour)},
		barrier: barrier,
	}
	s, _, _, _ := newTestScanner(index)

	first := make(chan RefreshOutcome, 1)
	go func() { first <- s.Refresh(context.Background()) }()

	// Wait until the first scan is inside the index query.
	deadline := time.Now().Add(2 * time.Second)
	for index.queryCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first scan never started")
		}
		time.Sleep(time.Millisecond)
	}

	// Pile on while it is stuck; every extra call must bounce.
	for i := 0; i < 5; i++ {
		if got := s.Refresh(context.Background()); got.Status != OutcomeSkipped {
			t.Fatalf("concurrent refresh status = %s, want skipped", got.Status)
		}
	}

	close(barrier)
	if got := <-first; got.Status != OutcomeCompleted {
		t.Fatalf("first refresh status = %s, want completed", got.Status)
	}
	if index.queryCount() != 1 {
		t.Fatalf("index queried %d times, want 1", index.queryCount())
	}

	// The guard is released; the next refresh runs for real.
	index.mu.Lock()
	index.barrier = nil
	index.mu.Unlock()
	if got := s.Refresh(context.Background()); got.Status != OutcomeCompleted {
		t.Fatalf("follow-up refresh status = %s, want completed", got.Status)
	}
}

func TestFailedScanRetainsPreviousLibrary(t *testing.T) {
	index := &fakeIndex{tracks: []model.Track{indexTrack("a", time.Hour)}}
	s, _, _, _ := newTestScanner(index)

	if got := s.Refresh(context.Background()); got.Status != OutcomeCompleted {
		t.Fatalf("seed refresh status = %s", got.Status)
	}
	beforeVersion := s.Current().Version

	index.mu.Lock()
	index.err = errors.New("index offline")
	index.mu.Unlock()

	outcome := s.Refresh(context.Background())
	if outcome.Status != OutcomeFailed || outcome.Err == nil {
		t.Fatalf("outcome = %+v, want failed with error", outcome)
	}
	if len(s.Tracks()) != 1 {
		t.Fatal("failed scan must retain the previous track list")
	}
	if s.Current().Version != beforeVersion {
		t.Fatal("failed scan must not publish")
	}

	// And the guard was released despite the failure.
	index.mu.Lock()
	index.err = nil
	index.mu.Unlock()
	if got := s.Refresh(context.Background()); got.Status != OutcomeCompleted {
		t.Fatalf("refresh after failure = %s, want completed", got.Status)
	}
}

func TestLoadOrRefreshUsesFreshCache(t *testing.T) {
	index := &fakeIndex{tracks: []model.Track{indexTrack("live", time.Hour)}}
	s, cache, _, _ := newTestScanner(index)

	cache.SaveScan(context.Background(), model.ScanResult{
		Tracks:    []model.Track{indexTrack("cached", time.Hour)},
		CreatedAt: time.Now().Add(-time.Hour),
	})

	outcome := s.LoadOrRefresh(context.Background())
	if outcome.Status != OutcomeCached {
		t.Fatalf("status = %s, want cached", outcome.Status)
	}
	if index.queryCount() != 0 {
		t.Fatal("a fresh cache must not trigger a scan")
	}
	if tracks := s.Tracks(); len(tracks) != 1 || tracks[0].MediaID != "cached" {
		t.Fatalf("published = %v, want the cached list", tracks)
	}
}

func TestLoadOrRefreshScansWhenCacheIsStale(t *testing.T) {
	index := &fakeIndex{tracks: []model.Track{indexTrack("live", time.Hour)}}
	s, cache, _, _ := newTestScanner(index)

	cache.SaveScan(context.Background(), model.ScanResult{
		Tracks:    []model.Track{indexTrack("stale", time.Hour)},
		CreatedAt: time.Now().Add(-25 * time.Hour),
	})

	outcome := s.LoadOrRefresh(context.Background())
	if outcome.Status != OutcomeCompleted {
		t.Fatalf("status = %s, want completed", outcome.Status)
	}
	if tracks := s.Tracks(); len(tracks) != 1 || tracks[0].MediaID != "live" {
		t.Fatalf("published = %v, want the rescanned list", tracks)
	}
}

func TestForceRefreshIgnoresCache(t *testing.T) {
	index := &fakeIndex{tracks: []model.Track{indexTrack("live", time.Hour)}}
	s, cache, _, _ := newTestScanner(index)

	cache.SaveScan(context.Background(), model.ScanResult{
		Tracks:    []model.Track{indexTrack("cached", time.Hour)},
		CreatedAt: time.Now(),
	})

	outcome := s.ForceRefresh(context.Background())
	if outcome.Status != OutcomeCompleted {
		t.Fatalf("status = %s, want completed", outcome.Status)
	}
	if index.queryCount() != 1 {
		t.Fatal("force refresh must scan")
	}
}

func TestArtworkOverridesWinOverScan(t *testing.T) {
	tr := indexTrack("a", time.Hour)
	tr.ArtworkRef = "/artwork/embedded.jpg"
	index := &fakeIndex{tracks: []model.Track{tr}}
	s, cache, overrides, _ := newTestScanner(index)

	overrides.SetOverride(context.Background(), "a", "/artwork/custom.png")
	s.Refresh(context.Background())

	got, ok := s.TrackByMediaID("a")
	if !ok || got.ArtworkRef != "/artwork/custom.png" {
		t.Fatalf("artworkRef = %q, want the override", got.ArtworkRef)
	}

	// The cached result keeps the pre-override artwork, so overrides
	// can be re-overlaid on later cold loads.
	cached, _ := cache.LoadScan(context.Background())
	if cached.Tracks[0].ArtworkRef != "/artwork/embedded.jpg" {
		t.Fatalf("cached artworkRef = %q, want the scanner-derived one", cached.Tracks[0].ArtworkRef)
	}
}

func TestSaveCustomArtworkPatchesWithoutRescan(t *testing.T) {
	index := &fakeIndex{tracks: []model.Track{indexTrack("a", time.Hour)}}
	s, cache, _, _ := newTestScanner(index)
	s.Refresh(context.Background())
	queriesBefore := index.queryCount()

	if err := s.SaveCustomArtwork(context.Background(), "a", "/artwork/new.png"); err != nil {
		t.Fatal(err)
	}

	got, _ := s.TrackByMediaID("a")
	if got.ArtworkRef != "/artwork/new.png" {
		t.Fatalf("artworkRef = %q, want the new override", got.ArtworkRef)
	}
	if index.queryCount() != queriesBefore {
		t.Fatal("saving artwork must not rescan")
	}

	// The stale cached result is invalidated.
	cache.mu.Lock()
	cleared := cache.clears
	cache.mu.Unlock()
	if cleared == 0 {
		t.Fatal("scan cache should be invalidated after an artwork save")
	}
}

func TestScanMergesOpenedFileBookmarks(t *testing.T) {
	index := &fakeIndex{tracks: []model.Track{indexTrack("a", time.Hour)}}
	cache := &fakeScanCache{}
	overrides := &fakeOverrides{}
	bookmarks := &fakeBookmarks{uris: []string{
		"file:///good.flac",
		"file:///vanished.flac",
		"file:///dup.flac",
	}}
	extractor := fakeExtractor{tracks: map[string]model.Track{
		"file:///good.flac": indexTrack("opened", 2*time.Hour),
		"file:///dup.flac":  indexTrack("a", time.Hour), // already indexed
	}}
	s := NewScanner(index, cache, overrides, bookmarks, extractor, Options{})

	outcome := s.Refresh(context.Background())
	if outcome.Status != OutcomeCompleted {
		t.Fatalf("status = %s, want completed; one bad bookmark must not abort", outcome.Status)
	}
	if outcome.TrackCount != 2 {
		t.Fatalf("trackCount = %d, want indexed + 1 merged bookmark", outcome.TrackCount)
	}
	if _, ok := s.TrackByMediaID("opened"); !ok {
		t.Fatal("bookmarked track missing from the published list")
	}
}

func TestOpenFilePublishesImmediately(t *testing.T) {
	index := &fakeIndex{}
	cache := &fakeScanCache{}
	overrides := &fakeOverrides{}
	bookmarks := &fakeBookmarks{}
	extractor := fakeExtractor{tracks: map[string]model.Track{
		"file:///pick.mp3": indexTrack("picked", time.Hour),
	}}
	s := NewScanner(index, cache, overrides, bookmarks, extractor, Options{})

	track, err := s.OpenFile(context.Background(), "file:///pick.mp3")
	if err != nil {
		t.Fatal(err)
	}
	if track.MediaID != "picked" {
		t.Fatalf("mediaId = %s, want picked", track.MediaID)
	}
	if _, ok := s.TrackByMediaID("picked"); !ok {
		t.Fatal("opened file must be in the published list without a rescan")
	}
	uris, _ := bookmarks.Bookmarks(context.Background())
	if len(uris) != 1 {
		t.Fatal("opened file was not bookmarked")
	}

	// Unreadable picks fail and leave no bookmark behind.
	if _, err := s.OpenFile(context.Background(), "file:///broken.mp3"); err == nil {
		t.Fatal("expected an error for an unreadable file")
	}
	uris, _ = bookmarks.Bookmarks(context.Background())
	if len(uris) != 1 {
		t.Fatal("failed open must not add a bookmark")
	}
}

func TestIndexChangeNotificationTriggersRescan(t *testing.T) {
	index := &fakeIndex{tracks: []model.Track{indexTrack("a", time.Hour)}}
	s, _, _, _ := newTestScanner(index)

	index.mu.Lock()
	callbacks := append([]func(){}, index.onChange...)
	index.mu.Unlock()
	if len(callbacks) == 0 {
		t.Fatal("scanner did not subscribe to index changes")
	}
	for _, cb := range callbacks {
		cb()
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(s.Tracks()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("change notification never produced a scan")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	index := &fakeIndex{tracks: []model.Track{indexTrack("a", time.Hour)}}
	s, _, _, _ := newTestScanner(index)

	ch, cancel := s.Subscribe()
	defer cancel()

	seed := <-ch
	if seed.Version != s.Current().Version {
		t.Fatalf("seed version = %d, want %d", seed.Version, s.Current().Version)
	}

	s.Refresh(context.Background())
	got := <-ch
	if got.Version <= seed.Version {
		t.Fatalf("subscriber version went backwards: %d after %d", got.Version, seed.Version)
	}
	if len(got.Tracks) != 1 {
		t.Fatalf("snapshot tracks = %d, want 1", len(got.Tracks))
	}
}

func TestSubscribeDuringConcurrentPublishesNeverBlocks(t *testing.T) {
	index := &fakeIndex{tracks: []model.Track{indexTrack("a", time.Hour)}}
	s, _, _, _ := newTestScanner(index)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				s.Refresh(context.Background())
			}
		}
	}()

	for i := 0; i < 50; i++ {
		done := make(chan struct{})
		go func() {
			ch, cancel := s.Subscribe()
			<-ch
			cancel()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Subscribe blocked against a concurrent publish")
		}
	}
	close(stop)
	wg.Wait()
}

func TestVersionsIncreaseAcrossPublishes(t *testing.T) {
	index := &fakeIndex{}
	s, _, _, _ := newTestScanner(index)

	var last uint64
	for i := 0; i < 3; i++ {
		index.mu.Lock()
		index.tracks = []model.Track{indexTrack(fmt.Sprintf("t%d", i), time.Hour)}
		index.mu.Unlock()
		s.Refresh(context.Background())
		v := s.Current().Version
		if v <= last {
			t.Fatalf("version %d not greater than %d", v, last)
		}
		last = v
	}
}
