package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/mldataset/internal/dataset"
	"github.com/starford/mldataset/internal/models"
	"github.com/starford/mldataset/internal/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func startWatch(t *testing.T, root string, r Reloader) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := Watch(ctx, root, r, 20*time.Millisecond, testLogger()); err != nil {
			t.Errorf("Watch: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
}

func names(s *dataset.Store) []string {
	snap, _ := s.Current()
	out := snap.Names()
	sort.Strings(out)
	return out
}

func TestWatcher_ExternalDirectoryPublished(t *testing.T) {
	root, s := testutil.TestStore(t)
	events := s.Subscribe()
	defer s.Unsubscribe(events)
	startWatch(t, root, s)

	_ = os.Mkdir(filepath.Join(root, "Outside"), 0o755)

	select {
	case snap := <-events:
		if got := snap.Names(); len(got) != 1 || got[0] != "Outside" {
			t.Errorf("snapshot = %v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("external directory not published")
	}
}

func TestWatcher_ExternalRemovePublished(t *testing.T) {
	root, s := testutil.TestStore(t)
	if err := s.CreateCategory("Doomed"); err != nil {
		t.Fatal(err)
	}
	startWatch(t, root, s)

	_ = os.RemoveAll(filepath.Join(root, "Doomed"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return len(names(s)) == 0
	}, "removed directory still in snapshot")
}

func TestWatcher_OwnChangesDoNotDuplicateEvents(t *testing.T) {
	root, s := testutil.TestStore(t)
	startWatch(t, root, s)
	events := s.Subscribe()
	defer s.Unsubscribe(events)

	if err := s.CreateCategory("Cats"); err != nil {
		t.Fatal(err)
	}
	first := <-events
	if got := first.Names(); len(got) != 1 || got[0] != "Cats" {
		t.Fatalf("first event = %v", got)
	}

	select {
	case snap := <-events:
		t.Errorf("duplicate event after watcher reload: %v", snap.Names())
	case <-time.After(300 * time.Millisecond):
	}
}

type countingReloader struct {
	n atomic.Int32
}

func (c *countingReloader) Reload() error {
	c.n.Add(1)
	return nil
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	root := t.TempDir()
	r := &countingReloader{}
	startWatch(t, root, r)

	for _, n := range []string{"a", "b", "c", "d"} {
		_ = os.Mkdir(filepath.Join(root, n), 0o755)
	}

	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return r.n.Load() >= 1
	}, "reload never called")
	time.Sleep(100 * time.Millisecond)
	if got := r.n.Load(); got >= 4 {
		t.Errorf("reloads = %d, want bursts coalesced", got)
	}
}

func TestWatcher_IgnoresItemWrites(t *testing.T) {
	root, s := testutil.TestStore(t)
	if err := s.CreateCategory("Cats"); err != nil {
		t.Fatal(err)
	}
	r := &countingReloader{}
	startWatch(t, root, r)

	if err := s.AddItem(models.ImageFile{FileName: "a.png", Content: []byte("a")}, "Cats"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)
	if got := r.n.Load(); got != 0 {
		t.Errorf("reloads = %d, want 0 for writes inside a category", got)
	}
}

func TestWatcher_AddItemToNewCategoryPublishesNothing(t *testing.T) {
	root, s := testutil.TestStore(t)
	startWatch(t, root, s)
	events := s.Subscribe()
	defer s.Unsubscribe(events)

	if err := s.AddItem(models.ImageFile{FileName: "a.png", Content: []byte("a")}, "Dogs"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "Dogs", "a.png")); err != nil {
		t.Fatalf("item not written: %v", err)
	}

	select {
	case snap := <-events:
		t.Errorf("AddItem published a snapshot through the watcher: %v", snap.Names())
	case <-time.After(300 * time.Millisecond):
	}
	if got := names(s); len(got) != 0 {
		t.Errorf("snapshot = %v, want empty", got)
	}

	// Naming the category afterwards lists it with exactly one event.
	if err := s.CreateCategory("Dogs"); err != nil {
		t.Fatal(err)
	}
	if got := (<-events).Names(); len(got) != 1 || got[0] != "Dogs" {
		t.Errorf("create event = %v", got)
	}
	select {
	case snap := <-events:
		t.Errorf("unexpected extra event: %v", snap.Names())
	case <-time.After(300 * time.Millisecond):
	}
}
