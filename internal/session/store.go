package session

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"mockup-studio/internal/mockup"
)

// Upload targets for the next photo a chat user sends.
const (
	TargetSlot    = ""
	TargetOutfit  = "outfit"
	TargetFace    = "face"
	TargetOptions = "note"
)

type Session struct {
	ID     string
	Studio *mockup.Studio

	mu     sync.Mutex
	target string
}

// Expect makes the next upload go to target.
func (s *Session) Expect(target string) {
	s.mu.Lock()
	s.target = target
	s.mu.Unlock()
}

// TakeTarget returns the pending target and resets it.
func (s *Session) TakeTarget() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.target
	s.target = TargetSlot
	return t
}

type Options struct {
	TTL       time.Duration
	NewStudio func() *mockup.Studio
	Logger    *slog.Logger
}

// Store keeps sessions in memory and drops them after TTL of inactivity.
type Store struct {
	mu        sync.Mutex
	items     *cache.Cache
	ttl       time.Duration
	newStudio func() *mockup.Studio
	logger    *slog.Logger
}

func NewStore(opts Options) *Store {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	newStudio := opts.NewStudio
	if newStudio == nil {
		newStudio = func() *mockup.Studio { return mockup.NewStudio(mockup.StudioOptions{Logger: logger}) }
	}

	items := cache.New(ttl, ttl/2)
	items.OnEvicted(func(id string, _ interface{}) {
		logger.Debug("session expired", "session", id)
	})

	return &Store{
		items:     items,
		ttl:       ttl,
		newStudio: newStudio,
		logger:    logger,
	}
}

func (s *Store) Create() *Session {
	sess := &Session{ID: uuid.NewString(), Studio: s.newStudio()}
	s.items.Set(sess.ID, sess, s.ttl)
	s.logger.Info("session created", "session", sess.ID)
	return sess
}

// Get returns the session and extends its lifetime.
func (s *Store) Get(id string) (*Session, bool) {
	v, ok := s.items.Get(id)
	if !ok {
		return nil, false
	}
	sess := v.(*Session)
	s.items.Set(id, sess, s.ttl)
	return sess, true
}

// GetOrCreate returns the session stored under key, creating it if needed.
func (s *Store) GetOrCreate(key string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.Get(key); ok {
		return sess
	}
	sess := &Session{ID: key, Studio: s.newStudio()}
	s.items.Set(key, sess, s.ttl)
	return sess
}

func (s *Store) Delete(id string) {
	s.items.Delete(id)
}

func (s *Store) Len() int {
	return s.items.ItemCount()
}
