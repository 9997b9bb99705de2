package mediagroup

import (
	"fmt"
	"sync"
	"time"
)

// Photo is one message of a Telegram album.
type Photo struct {
	ChatID       int64
	UserID       int64
	MediaGroupID string
	Caption      string
	FileID       string
}

// Album collects the photos of one media group. Photos past the limit are
// counted in Dropped instead of kept.
type Album struct {
	ChatID  int64
	UserID  int64
	Caption string
	FileIDs []string
	Dropped int
}

type Options struct {
	Debounce time.Duration
	// Limit caps the photos kept per album. Zero keeps all of them.
	Limit   int
	OnFlush func(Album)
}

// Aggregator buffers album photos and flushes each album once no new photo
// arrived for the debounce window.
type Aggregator struct {
	mu       sync.Mutex
	debounce time.Duration
	limit    int
	onFlush  func(Album)
	albums   map[string]*pending
}

type pending struct {
	album Album
	timer *time.Timer
}

func New(opts Options) *Aggregator {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 1200 * time.Millisecond
	}

	return &Aggregator{
		debounce: debounce,
		limit:    opts.Limit,
		onFlush:  opts.OnFlush,
		albums:   make(map[string]*pending),
	}
}

func (a *Aggregator) Add(p Photo) {
	if p.MediaGroupID == "" || p.FileID == "" {
		return
	}

	key := fmt.Sprintf("%d:%s", p.ChatID, p.MediaGroupID)

	a.mu.Lock()
	defer a.mu.Unlock()

	pg, ok := a.albums[key]
	if !ok {
		pg = &pending{album: Album{ChatID: p.ChatID, UserID: p.UserID}}
		a.albums[key] = pg
	}
	if a.limit > 0 && len(pg.album.FileIDs) >= a.limit {
		pg.album.Dropped++
	} else {
		pg.album.FileIDs = append(pg.album.FileIDs, p.FileID)
	}
	if p.Caption != "" {
		pg.album.Caption = p.Caption
	}

	if pg.timer != nil {
		pg.timer.Stop()
	}
	pg.timer = time.AfterFunc(a.debounce, func() {
		a.flush(key)
	})
}

// Pending reports how many albums are still buffering.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.albums)
}

func (a *Aggregator) flush(key string) {
	a.mu.Lock()
	pg, ok := a.albums[key]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.albums, key)
	album := pg.album
	onFlush := a.onFlush
	a.mu.Unlock()

	if onFlush != nil {
		onFlush(album)
	}
}
