package inmemory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/mohammad-safakhou/gemsearch/provider"
	"github.com/mohammad-safakhou/gemsearch/session"
)

// EvictReason labels why a session left the store.
type EvictReason string

const (
	EvictExpired  EvictReason = "expired"
	EvictCapacity EvictReason = "capacity"
)

const maxIDAttempts = 8

// Options bound the store. Zero values disable the matching limit.
type Options struct {
	TTL         time.Duration
	MaxSessions int
	Now         func() time.Time
	OnEvict     func(id string, reason EvictReason)
	// NewID generates session ids; defaults to session.NewID.
	NewID func() string
}

// Store keeps sessions in process memory, ordered by recency of use.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*list.Element
	lru      *list.List // front is most recently used; values are *session.Session

	ttl     time.Duration
	max     int
	now     func() time.Time
	onEvict func(string, EvictReason)
	newID   func() string
}

var _ session.Store = (*Store)(nil)

func NewInMemorySessionStore(opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = session.NewID
	}
	return &Store{
		sessions: make(map[string]*list.Element),
		lru:      list.New(),
		ttl:      opts.TTL,
		max:      opts.MaxSessions,
		now:      opts.Now,
		onEvict:  opts.OnEvict,
		newID:    opts.NewID,
	}
}

func (store *Store) Create(conv provider.Conversation) (*session.Session, error) {
	if conv == nil {
		return nil, errors.New("session: nil conversation")
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	for i := 0; i < maxIDAttempts; i++ {
		id := store.newID()
		if _, taken := store.sessions[id]; taken {
			continue
		}
		return store.insertLocked(id, conv), nil
	}
	return nil, errors.Errorf("session: no free id after %d attempts", maxIDAttempts)
}

func (store *Store) Put(id string, conv provider.Conversation) (*session.Session, error) {
	if id == "" {
		return nil, errors.New("session: empty id")
	}
	if conv == nil {
		return nil, errors.New("session: nil conversation")
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if el, ok := store.sessions[id]; ok {
		store.lru.Remove(el)
		delete(store.sessions, id)
	}
	return store.insertLocked(id, conv), nil
}

func (store *Store) Get(id string) (*session.Session, bool) {
	store.mu.Lock()
	el, ok := store.sessions[id]
	if !ok {
		store.mu.Unlock()
		return nil, false
	}
	sess := el.Value.(*session.Session)
	if store.expired(sess, store.now()) {
		store.removeLocked(el)
		store.mu.Unlock()
		store.notify(id, EvictExpired)
		return nil, false
	}
	store.lru.MoveToFront(el)
	sess.Touch()
	store.mu.Unlock()
	return sess, true
}

func (store *Store) Delete(id string) bool {
	store.mu.Lock()
	defer store.mu.Unlock()
	el, ok := store.sessions[id]
	if !ok {
		return false
	}
	store.removeLocked(el)
	return true
}

func (store *Store) Len() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.lru.Len()
}

// EvictExpired removes every idle session whose TTL has passed at now.
// Sessions with a send in progress are kept.
func (store *Store) EvictExpired(now time.Time) int {
	if store.ttl <= 0 {
		return 0
	}
	store.mu.Lock()
	var evicted []string
	for el := store.lru.Back(); el != nil; {
		prev := el.Prev()
		sess := el.Value.(*session.Session)
		if store.expired(sess, now) {
			store.removeLocked(el)
			evicted = append(evicted, sess.ID())
		}
		el = prev
	}
	store.mu.Unlock()

	for _, id := range evicted {
		store.notify(id, EvictExpired)
	}
	return len(evicted)
}

// RunEviction sweeps expired sessions every interval until ctx is done.
func (store *Store) RunEviction(ctx context.Context, interval time.Duration) error {
	if store.ttl <= 0 || interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := store.EvictExpired(store.now()); n > 0 {
				log.Debug().Int("evicted", n).Int("remaining", store.Len()).Msg("session eviction sweep")
			}
		}
	}
}

// insertLocked makes room by evicting idle sessions from the LRU end. Busy
// sessions are never evicted; when every session is busy the new one is
// admitted over capacity and the next insert tries again.
func (store *Store) insertLocked(id string, conv provider.Conversation) *session.Session {
	var evicted []string
	for el := store.lru.Back(); el != nil && store.max > 0 && store.lru.Len() >= store.max; {
		prev := el.Prev()
		if sess := el.Value.(*session.Session); !sess.Busy() {
			evicted = append(evicted, sess.ID())
			store.removeLocked(el)
		}
		el = prev
	}
	sess := session.New(id, conv, store.now)
	store.sessions[id] = store.lru.PushFront(sess)
	// callers hold the lock; notify must not re-enter the store
	for _, old := range evicted {
		store.notify(old, EvictCapacity)
	}
	return sess
}

func (store *Store) removeLocked(el *list.Element) {
	sess := store.lru.Remove(el).(*session.Session)
	delete(store.sessions, sess.ID())
}

func (store *Store) expired(sess *session.Session, now time.Time) bool {
	if store.ttl <= 0 || sess.Busy() {
		return false
	}
	return now.Sub(sess.LastUsed()) >= store.ttl
}

func (store *Store) notify(id string, reason EvictReason) {
	log.Debug().Str("session_id", id).Str("reason", string(reason)).Msg("session evicted")
	if store.onEvict != nil {
		store.onEvict(id, reason)
	}
}
