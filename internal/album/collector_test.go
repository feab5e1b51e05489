package album

import (
	"sync"
	"testing"
	"time"
)

func TestCollectorBatchesAlbum(t *testing.T) {
	var (
		mu      sync.Mutex
		batches []Batch
	)
	done := make(chan struct{})

	c := New(Options{
		Debounce: 30 * time.Millisecond,
		OnFlush: func(b Batch) {
			mu.Lock()
			batches = append(batches, b)
			mu.Unlock()
			close(done)
		},
	})

	c.Add(Photo{ChatID: 1, UserID: 2, AlbumID: "alb", FileID: "f1"})
	c.Add(Photo{ChatID: 1, UserID: 2, AlbumID: "alb", FileID: "f2"})
	c.Add(Photo{ChatID: 1, UserID: 2, AlbumID: "alb", FileID: "f3"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("flush never fired")
	}

	mu.Lock()
	defer mu.Unlock()

	if len(batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(batches))
	}
	b := batches[0]
	if len(b.FileIDs) != 3 {
		t.Errorf("fileIDs = %v, want 3 entries", b.FileIDs)
	}
	if b.ChatID != 1 || b.UserID != 2 {
		t.Errorf("batch identity = %d/%d, want 1/2", b.ChatID, b.UserID)
	}
}

func TestCollectorKeepsFirstTarget(t *testing.T) {
	done := make(chan Batch, 1)

	c := New(Options{
		Debounce: 20 * time.Millisecond,
		OnFlush:  func(b Batch) { done <- b },
	})

	// The target in effect when the album started must win, even if the
	// state changes while later members trickle in.
	c.Add(Photo{ChatID: 1, AlbumID: "alb", FileID: "f1", Target: "reference"})
	c.Add(Photo{ChatID: 1, AlbumID: "alb", FileID: "f2", Target: ""})
	c.Add(Photo{ChatID: 1, AlbumID: "alb", FileID: "f3", Target: "background"})

	select {
	case b := <-done:
		if b.Target != "reference" {
			t.Errorf("target = %q, want the first one kept", b.Target)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("flush never fired")
	}
}

func TestCollectorBackfillsTarget(t *testing.T) {
	done := make(chan Batch, 1)

	c := New(Options{
		Debounce: 20 * time.Millisecond,
		OnFlush:  func(b Batch) { done <- b },
	})

	c.Add(Photo{ChatID: 1, AlbumID: "alb", FileID: "f1"})
	c.Add(Photo{ChatID: 1, AlbumID: "alb", FileID: "f2", Target: "background"})

	select {
	case b := <-done:
		if b.Target != "background" {
			t.Errorf("target = %q, want the first non-empty one", b.Target)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("flush never fired")
	}
}

func TestCollectorSeparatesAlbums(t *testing.T) {
	var (
		mu      sync.Mutex
		batches []Batch
		wg      sync.WaitGroup
	)
	wg.Add(2)

	c := New(Options{
		Debounce: 20 * time.Millisecond,
		OnFlush: func(b Batch) {
			mu.Lock()
			batches = append(batches, b)
			mu.Unlock()
			wg.Done()
		},
	})

	c.Add(Photo{ChatID: 1, AlbumID: "a", FileID: "f1"})
	c.Add(Photo{ChatID: 2, AlbumID: "a", FileID: "f2"})

	flushed := make(chan struct{})
	go func() {
		wg.Wait()
		close(flushed)
	}()

	select {
	case <-flushed:
	case <-time.After(2 * time.Second):
		t.Fatal("flushes never fired")
	}

	mu.Lock()
	defer mu.Unlock()

	if len(batches) != 2 {
		t.Fatalf("batches = %d, want one per chat", len(batches))
	}
	for _, b := range batches {
		if len(b.FileIDs) != 1 {
			t.Errorf("batch %d has %d files, want 1", b.ChatID, len(b.FileIDs))
		}
	}
}

func TestCollectorIgnoresIncompletePhotos(t *testing.T) {
	c := New(Options{
		Debounce: 10 * time.Millisecond,
		OnFlush: func(Batch) {
			t.Error("nothing should flush")
		},
	})

	c.Add(Photo{ChatID: 1, FileID: "f1"})  // no album ID
	c.Add(Photo{ChatID: 1, AlbumID: "al"}) // no file ID

	time.Sleep(50 * time.Millisecond)
}
