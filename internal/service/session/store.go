package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/honeypot/backend/internal/model/chat"
	"github.com/zhouzirui/honeypot/backend/internal/model/intel"
)

const (
	DefaultTTL            = time.Hour
	DefaultSweepEvery     = 10
	DefaultPersistTimeout = 5 * time.Second
)

var ErrSessionNotFound = errors.New("session not found")

// Store owns every conversation's state. All returned sessions are copies.
type Store interface {
	GetOrCreate(ctx context.Context, key string) chat.Session
	Update(ctx context.Context, key string, delta intel.Record) chat.Session
	Get(ctx context.Context, key string) (chat.Session, bool)
	ListSummaries(ctx context.Context) []chat.Summary
	ExpireStale(ctx context.Context, ttl time.Duration) int
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithTTL sets how long an idle session survives.
func WithTTL(ttl time.Duration) Option {
	return func(s *MemoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSweepEvery sets how many GetOrCreate calls pass between expiry sweeps.
func WithSweepEvery(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.sweepEvery = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPersister installs a durable snapshot strategy.
func WithPersister(p Persister) Option {
	return func(s *MemoryStore) {
		if p != nil {
			s.persister = p
		}
	}
}

// WithPersistTimeout bounds a single snapshot save.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *MemoryStore) {
		if d > 0 {
			s.persistTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *MemoryStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// MemoryStore is a concurrency-safe in-memory Store with pluggable persistence.
// Snapshots are written by a single background writer, so a slow or stuck
// persister never holds up a caller.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*chat.Session
	accesses int
	version  uint64

	picker         PersonaPicker
	persister      Persister
	persistTimeout time.Duration
	ttl            time.Duration
	sweepEvery     int
	now            func() time.Time
	logger         *zap.Logger

	writing    bool
	saved      uint64
	saveReq    chan struct{}
	flushReq   chan chan struct{}
	stop       chan struct{}
	stopOnce   sync.Once
	writerDone chan struct{}
}

// NewMemoryStore builds a store and loads any previously persisted snapshot.
// Load failures are logged and the store starts empty.
func NewMemoryStore(ctx context.Context, picker PersonaPicker, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions:       make(map[string]*chat.Session),
		picker:         picker,
		persister:      NopPersister{},
		persistTimeout: DefaultPersistTimeout,
		ttl:            DefaultTTL,
		sweepEvery:     DefaultSweepEvery,
		now:            time.Now,
		logger:         zap.NewNop(),
		saveReq:        make(chan struct{}, 1),
		flushReq:       make(chan chan struct{}),
		stop:           make(chan struct{}),
		writerDone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("session")

	s.restore(ctx)

	if _, nop := s.persister.(NopPersister); nop {
		close(s.writerDone)
	} else {
		s.writing = true
		go s.writeLoop()
	}
	return s
}

func (s *MemoryStore) restore(ctx context.Context) {
	loaded, err := s.persister.Load(ctx)
	if err != nil {
		s.logger.Error("failed to load persisted sessions", zap.Error(err))
		return
	}
	for key, sess := range loaded {
		sess := sess.Clone()
		sess.ID = key
		if sess.Intelligence == nil {
			sess.Intelligence = intel.New()
		}
		s.sessions[key] = &sess
	}
	if len(loaded) > 0 {
		s.logger.Info("restored persisted sessions", zap.Int("count", len(loaded)))
	}
}

// GetOrCreate returns the session for key, creating it on first reference.
func (s *MemoryStore) GetOrCreate(_ context.Context, key string) chat.Session {
	s.mu.Lock()
	s.accesses++
	swept := 0
	if s.accesses >= s.sweepEvery {
		s.accesses = 0
		swept = s.expireLocked(s.ttl)
	}
	sess, created := s.lookupOrCreateLocked(key)
	s.touchLocked(sess)
	if created || swept > 0 {
		s.version++
	}
	snapshot := sess.Clone()
	s.mu.Unlock()

	if created {
		s.logger.Info("new session", zap.String("session", key), zap.String("persona", snapshot.Persona))
	}
	if created || swept > 0 {
		s.persist()
	}
	return snapshot
}

// Update counts one processed message and merges delta into the session's intelligence.
func (s *MemoryStore) Update(_ context.Context, key string, delta intel.Record) chat.Session {
	s.mu.Lock()
	sess, _ := s.lookupOrCreateLocked(key)
	sess.MessageCount++
	sess.Intelligence = intel.Merge(sess.Intelligence, delta)
	s.touchLocked(sess)
	s.version++
	snapshot := sess.Clone()
	s.mu.Unlock()

	s.persist()
	return snapshot
}

// Get returns a copy of the session without creating or touching it.
func (s *MemoryStore) Get(_ context.Context, key string) (chat.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[key]
	if !ok {
		return chat.Session{}, false
	}
	return sess.Clone(), true
}

// ListSummaries returns every live session, most recently active first.
func (s *MemoryStore) ListSummaries(_ context.Context) []chat.Summary {
	s.mu.RLock()
	summaries := make([]chat.Summary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		summaries = append(summaries, sess.Summary())
	}
	s.mu.RUnlock()

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].LastActive.Equal(summaries[j].LastActive) {
			return summaries[i].SessionID < summaries[j].SessionID
		}
		return summaries[i].LastActive.After(summaries[j].LastActive)
	})
	return summaries
}

// ExpireStale drops sessions idle for longer than ttl and returns how many were removed.
func (s *MemoryStore) ExpireStale(_ context.Context, ttl time.Duration) int {
	s.mu.Lock()
	removed := s.expireLocked(ttl)
	if removed > 0 {
		s.version++
	}
	s.mu.Unlock()

	if removed > 0 {
		s.persist()
	}
	return removed
}

func (s *MemoryStore) lookupOrCreateLocked(key string) (*chat.Session, bool) {
	if sess, ok := s.sessions[key]; ok {
		return sess, false
	}
	now := s.now()
	sess := &chat.Session{
		ID:           key,
		Persona:      s.picker.Pick(),
		CreatedAt:    now,
		LastActiveAt: now,
		Intelligence: intel.New(),
	}
	s.sessions[key] = sess
	return sess, true
}

func (s *MemoryStore) touchLocked(sess *chat.Session) {
	if now := s.now(); now.After(sess.LastActiveAt) {
		sess.LastActiveAt = now
	}
}

func (s *MemoryStore) expireLocked(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)
	removed := 0
	for key, sess := range s.sessions {
		if sess.LastActiveAt.Before(cutoff) {
			delete(s.sessions, key)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("expired stale sessions", zap.Int("count", removed), zap.Duration("ttl", ttl))
	}
	return removed
}

// Flush waits until every mutation made before the call has been handed to the
// persister, or until ctx is done.
func (s *MemoryStore) Flush(ctx context.Context) error {
	if !s.writing {
		return nil
	}
	reply := make(chan struct{})
	select {
	case s.flushReq <- reply:
	case <-s.writerDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes any pending snapshot and stops the background writer.
func (s *MemoryStore) Close(ctx context.Context) error {
	s.stopOnce.Do(func() {
		if s.writing {
			close(s.stop)
		}
	})
	select {
	case <-s.writerDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// persist schedules a snapshot write. Requests made while a write is pending
// collapse into one.
func (s *MemoryStore) persist() {
	if !s.writing {
		return
	}
	select {
	case s.saveReq <- struct{}{}:
	default:
	}
}

func (s *MemoryStore) writeLoop() {
	defer close(s.writerDone)
	for {
		select {
		case <-s.saveReq:
			s.writeSnapshot()
		case reply := <-s.flushReq:
			s.writeSnapshot()
			close(reply)
		case <-s.stop:
			s.writeSnapshot()
			return
		}
	}
}

// writeSnapshot copies the table and saves it under persistTimeout. Each write
// copies the latest state, so a later save never holds an older table than an
// earlier one.
func (s *MemoryStore) writeSnapshot() {
	s.mu.RLock()
	version := s.version
	if version == s.saved {
		s.mu.RUnlock()
		return
	}
	snapshot := make(map[string]chat.Session, len(s.sessions))
	for key, sess := range s.sessions {
		snapshot[key] = sess.Clone()
	}
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	defer cancel()
	if err := s.persister.Save(ctx, snapshot); err != nil {
		s.logger.Error("failed to persist sessions, continuing in memory", zap.Error(err))
	}
	s.saved = version
}
