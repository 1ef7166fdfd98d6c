package sessions

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bryanwahyu/stockaudit/internal/application"
	"github.com/bryanwahyu/stockaudit/internal/domain/audit"
	"github.com/bryanwahyu/stockaudit/internal/domain/session"
)

// entry is one live session. state is only touched with mu held.
type entry struct {
	mu      sync.Mutex
	id      string
	tenant  string
	state   session.State
	record  audit.RecordID
	created time.Time
	updated time.Time
	// last access in unix nanos, read without mu by the expiry check
	touched atomic.Int64
}

// Store keeps sessions in memory, bounded by size and expired after ttl of
// inactivity. Nothing is persisted.
type Store struct {
	cache *lru.Cache[string, *entry]
	ttl   time.Duration
	clock application.Clock
}

func NewStore(size int, ttl time.Duration, clock application.Clock) (*Store, error) {
	if size <= 0 {
		size = 1024
	}
	if clock == nil {
		clock = application.SystemClock{}
	}
	cache, err := lru.New[string, *entry](size)
	if err != nil {
		return nil, err
	}
	return &Store{cache: cache, ttl: ttl, clock: clock}, nil
}

func (s *Store) add(e *entry) {
	e.touched.Store(s.clock.Now().UnixNano())
	s.cache.Add(e.id, e)
}

// get returns the tenant's session; other tenants' ids look missing.
func (s *Store) get(tenant, id string) (*entry, bool) {
	e, ok := s.cache.Get(id)
	if !ok || e.tenant != tenant {
		return nil, false
	}
	now := s.clock.Now()
	if s.expired(e, now) {
		s.cache.Remove(id)
		return nil, false
	}
	e.touched.Store(now.UnixNano())
	return e, true
}

func (s *Store) remove(tenant, id string) bool {
	e, ok := s.cache.Peek(id)
	if !ok || e.tenant != tenant {
		return false
	}
	return s.cache.Remove(id)
}

func (s *Store) expired(e *entry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(time.Unix(0, e.touched.Load())) > s.ttl
}

// Sweep drops expired sessions and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.clock.Now()
	n := 0
	for _, id := range s.cache.Keys() {
		if e, ok := s.cache.Peek(id); ok && s.expired(e, now) {
			s.cache.Remove(id)
			n++
		}
	}
	return n
}

// Len is the number of live sessions, expired ones included until swept.
func (s *Store) Len() int { return s.cache.Len() }
