package session

import (
	"context"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/gemsearch/models"
	"github.com/mohammad-safakhou/gemsearch/provider"
)

// Store interface for session management
type Store interface {
	// Create registers conv under a freshly generated id.
	Create(conv provider.Conversation) (*Session, error)
	// Put registers conv under id, replacing any session already there.
	Put(id string, conv provider.Conversation) (*Session, error)
	// Get returns the live session for id and marks it used.
	Get(id string) (*Session, bool)
	Delete(id string) bool
	Len() int
}

// NewID returns a random base-36 session id.
func NewID() string {
	u := uuid.New()
	return new(big.Int).SetBytes(u[:]).Text(36)
}

// Session is a server-side handle to one upstream conversation. Sends on a
// session are strictly ordered: a second Send waits until the first returns.
type Session struct {
	id        string
	conv      provider.Conversation
	createdAt time.Time
	now       func() time.Time

	turn     chan struct{}
	lastUsed atomic.Int64
	inFlight atomic.Int32
}

// New wraps conv. A nil clock defaults to time.Now.
func New(id string, conv provider.Conversation, clock func() time.Time) *Session {
	if clock == nil {
		clock = time.Now
	}
	s := &Session{
		id:   id,
		conv: conv,
		now:  clock,
		turn: make(chan struct{}, 1),
	}
	s.createdAt = clock()
	s.lastUsed.Store(s.createdAt.UnixNano())
	return s
}

func (s *Session) ID() string                          { return s.id }
func (s *Session) Conversation() provider.Conversation { return s.conv }
func (s *Session) CreatedAt() time.Time                { return s.createdAt }
func (s *Session) LastUsed() time.Time                 { return time.Unix(0, s.lastUsed.Load()) }
func (s *Session) Touch()                              { s.lastUsed.Store(s.now().UnixNano()) }

// Busy reports whether a Send is waiting or running.
func (s *Session) Busy() bool { return s.inFlight.Load() > 0 }

// Send delivers text as the next turn of the conversation. It waits for any
// earlier turn on this session to finish, or for ctx to be done.
func (s *Session) Send(ctx context.Context, text string) (models.Reply, error) {
	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	select {
	case s.turn <- struct{}{}:
	case <-ctx.Done():
		return models.Reply{}, ctx.Err()
	}
	defer func() { <-s.turn }()

	s.Touch()
	reply, err := s.conv.SendMessage(ctx, text)
	s.Touch()
	return reply, err
}
