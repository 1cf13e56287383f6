package library

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherTriggersDebouncedRefresh(t *testing.T) {
	dir := t.TempDir()
	index := &fakeIndex{}
	s, _, _, _ := newTestScanner(index)

	w, err := NewWatcher(s, []string{dir}, 20*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	// A burst of writes should collapse into one scan.
	for i := 0; i < 3; i++ {
		name := filepath.Join(dir, "track"+string(rune('a'+i))+".mp3")
		if err := os.WriteFile(name, []byte("data"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.Now().Add(3 * time.Second)
	for index.queryCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("file changes never triggered a refresh")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatcherSkipsMissingDirectories(t *testing.T) {
	index := &fakeIndex{}
	s, _, _, _ := newTestScanner(index)

	w, err := NewWatcher(s, []string{"/no/such/music/dir"}, time.Millisecond)
	if err != nil {
		t.Fatal("missing directories should be skipped, not fatal")
	}
	w.Close()
}
