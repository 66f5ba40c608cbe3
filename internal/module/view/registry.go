package view

import (
	"log/slog"
	"sync"
	"time"

	"github.com/simp-lee/gemfront/internal/assets"
	"github.com/simp-lee/gemfront/internal/catalog"
)

const (
	// DefaultIdleTTL is how long an untouched session survives.
	DefaultIdleTTL = 30 * time.Minute
	// DefaultMaxSessions caps concurrently mounted sessions.
	DefaultMaxSessions = 1000
)

// Session is one mounted grid: a catalog controller plus the asset
// galleries opened from it. It is owned by a single browser view.
type Session struct {
	ID         string
	View       string
	Admin      bool
	Owner      string
	Controller *catalog.Controller
	Gallery    *assets.Gallery
	CreatedAt  time.Time

	mu       sync.Mutex
	lastUsed time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

// LastUsed returns when the session was last looked up.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// close unmounts the session. Late fetch and asset completions are dropped.
func (s *Session) close() {
	s.Controller.Close()
	if s.Gallery != nil {
		s.Gallery.Close()
	}
}

func (s *Session) wait() {
	s.Controller.Wait()
	if s.Gallery != nil {
		s.Gallery.Wait()
	}
}

// RegistryConfig bounds a Registry.
type RegistryConfig struct {
	IdleTTL     time.Duration
	MaxSessions int
	// SweepInterval is the janitor period; zero means IdleTTL/4, negative
	// disables the janitor (tests call Sweep directly).
	SweepInterval time.Duration
	Now           func() time.Time
}

// Registry keeps mounted sessions by id. Sessions idle longer than IdleTTL
// are unmounted by a janitor goroutine; when MaxSessions is reached the
// least recently used session is unmounted to make room.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	cfg      RegistryConfig
	logger   *slog.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	closed   bool
	retired  sync.WaitGroup
}

// NewRegistry creates a Registry and starts its janitor.
func NewRegistry(cfg RegistryConfig, logger *slog.Logger) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = cfg.IdleTTL / 4
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if cfg.SweepInterval > 0 {
		go r.janitor(cfg.SweepInterval)
	} else {
		close(r.done)
	}
	return r
}

func (r *Registry) janitor(every time.Duration) {
	defer close(r.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Debug("evicted idle view sessions", slog.Int("count", n))
			}
		case <-r.stop:
			return
		}
	}
}

// Add registers s, which must not be mounted yet. It returns false when the
// registry is closed, in which case s has been closed.
func (r *Registry) Add(s *Session) bool {
	now := r.cfg.Now()
	s.touch(now)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		s.close()
		return false
	}
	var evicted *Session
	if len(r.sessions) >= r.cfg.MaxSessions {
		evicted = r.oldestLocked()
		if evicted != nil {
			delete(r.sessions, evicted.ID)
		}
	}
	r.sessions[s.ID] = s
	r.mu.Unlock()

	if evicted != nil {
		r.logger.Info("view session limit reached, unmounting least recently used",
			slog.String("session", evicted.ID),
			slog.Int("max", r.cfg.MaxSessions),
		)
		r.retire(evicted)
	}
	return true
}

func (r *Registry) oldestLocked() *Session {
	var oldest *Session
	for _, s := range r.sessions {
		if oldest == nil || s.LastUsed().Before(oldest.LastUsed()) {
			oldest = s
		}
	}
	return oldest
}

// Get returns the session and marks it used.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		s.touch(r.cfg.Now())
	}
	return s, ok
}

// Remove unmounts and forgets the session.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		r.retire(s)
	}
	return ok
}

// Sweep unmounts every session idle for longer than IdleTTL and returns
// how many were removed.
func (r *Registry) Sweep() int {
	cutoff := r.cfg.Now().Add(-r.cfg.IdleTTL)

	r.mu.Lock()
	var stale []*Session
	for id, s := range r.sessions {
		if s.LastUsed().Before(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		r.retire(s)
	}
	return len(stale)
}

// Len returns the number of mounted sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close stops the janitor, unmounts every session and waits for the
// in-flight requests of every session ever registered to return.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done

	r.mu.Lock()
	r.closed = true
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range all {
		s.close()
	}
	for _, s := range all {
		s.wait()
	}
	r.retired.Wait()
}

// retire unmounts s and tracks its in-flight requests until they return.
func (r *Registry) retire(s *Session) {
	s.close()
	r.retired.Add(1)
	go func() {
		defer r.retired.Done()
		s.wait()
	}()
}
