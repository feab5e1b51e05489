// Package album debounces Telegram media-group updates so a multi-photo
// upload (e.g. five background images sent as one album) arrives at the
// handler as a single batch.
package album

import (
	"fmt"
	"sync"
	"time"
)

// Photo is one member of a media group. Target is the workspace upload
// target in effect when the photo arrived; the batch keeps the first
// non-empty one so a target change mid-upload cannot split the album's
// destination.
type Photo struct {
	ChatID  int64
	UserID  int64
	AlbumID string
	FileID  string
	Target  string
}

type Batch struct {
	ChatID  int64
	UserID  int64
	Target  string
	FileIDs []string
}

type Options struct {
	Debounce time.Duration
	OnFlush  func(Batch)
}

type Collector struct {
	mu       sync.Mutex
	debounce time.Duration
	onFlush  func(Batch)
	pending  map[string]*pendingBatch
}

type pendingBatch struct {
	batch Batch
	timer *time.Timer
}

func New(opts Options) *Collector {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 1200 * time.Millisecond
	}

	return &Collector{
		debounce: debounce,
		onFlush:  opts.OnFlush,
		pending:  make(map[string]*pendingBatch),
	}
}

// Add records one album photo and re-arms the flush timer. Telegram sends
// album members as separate updates with a shared media-group ID; the batch
// flushes once no new member arrives within the debounce window.
func (c *Collector) Add(photo Photo) {
	if photo.AlbumID == "" || photo.FileID == "" {
		return
	}

	key := batchKey(photo.ChatID, photo.AlbumID)

	c.mu.Lock()
	defer c.mu.Unlock()

	pb, ok := c.pending[key]
	if !ok {
		pb = &pendingBatch{
			batch: Batch{
				ChatID:  photo.ChatID,
				UserID:  photo.UserID,
				Target:  photo.Target,
				FileIDs: []string{photo.FileID},
			},
			timer: time.AfterFunc(c.debounce, func() {
				c.flush(key)
			}),
		}
		c.pending[key] = pb
		return
	}

	pb.batch.FileIDs = append(pb.batch.FileIDs, photo.FileID)
	if pb.batch.Target == "" {
		pb.batch.Target = photo.Target
	}
	pb.timer.Reset(c.debounce)
}

func (c *Collector) flush(key string) {
	c.mu.Lock()
	pb, ok := c.pending[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.pending, key)
	batch := pb.batch
	onFlush := c.onFlush
	c.mu.Unlock()

	if onFlush != nil {
		onFlush(batch)
	}
}

func batchKey(chatID int64, albumID string) string {
	return fmt.Sprintf("%d:%s", chatID, albumID)
}
