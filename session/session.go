// Package session runs one snake game on a single goroutine. Ticks, key
// presses and restarts are serialized through channels, and every
// committed transition is published to subscribers as a Snapshot.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hoshinonyaruko/snake-grid/snake"
	"github.com/hoshinonyaruko/snake-grid/structs"
)

// TickInterval is the fixed movement period.
const TickInterval = 200 * time.Millisecond

// ErrClosed is returned once Run has exited.
var ErrClosed = errors.New("session closed")

// TickSource starts a periodic tick and returns its channel and a stop
// function.
type TickSource func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

type Option func(*Session)

// WithTickSource replaces the wall-clock ticker.
func WithTickSource(src TickSource) Option {
	return func(s *Session) { s.ticks = src }
}

type pressReq struct {
	key   string
	reply chan bool
}

type Session struct {
	game  *snake.Game
	ticks TickSource

	presses  chan pressReq
	restarts chan chan structs.Snapshot
	done     chan struct{}

	// 以下只在 Run 的 goroutine 中修改
	round string
	seq   uint64

	mu          sync.RWMutex
	latest      structs.Snapshot
	subscribers map[int]chan structs.Snapshot
	nextID      int
	closed      bool
}

func New(game *snake.Game, opts ...Option) *Session {
	s := &Session{
		game:        game,
		ticks:       realTicker,
		presses:     make(chan pressReq),
		restarts:    make(chan chan structs.Snapshot),
		done:        make(chan struct{}),
		round:       uuid.NewString(),
		subscribers: make(map[int]chan structs.Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.latest = s.snapshot()
	return s
}

// Run drives the game until ctx is done. It must be called exactly once.
// On return the ticker is stopped and every subscription is closed.
func (s *Session) Run(ctx context.Context) error {
	ticks, stop := s.ticks(TickInterval)
	defer stop()
	defer s.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticks:
			if s.game.AdvanceTick() {
				s.publish()
			}
		case req := <-s.presses:
			before := s.game.Direction()
			ok := s.game.Press(req.key)
			if s.game.Direction() != before {
				s.publish()
			}
			req.reply <- ok
		case reply := <-s.restarts:
			s.game.Restart()
			s.round = uuid.NewString()
			reply <- s.publish()
		}
	}
}

// Press forwards a key to the game and reports whether it was accepted
// as a direction.
func (s *Session) Press(ctx context.Context, key string) (bool, error) {
	req := pressReq{key: key, reply: make(chan bool, 1)}
	select {
	case s.presses <- req:
	case <-s.done:
		return false, ErrClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case ok := <-req.reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Restart resets the game and returns the first snapshot of the new
// round.
func (s *Session) Restart(ctx context.Context) (structs.Snapshot, error) {
	reply := make(chan structs.Snapshot, 1)
	select {
	case s.restarts <- reply:
	case <-s.done:
		return structs.Snapshot{}, ErrClosed
	case <-ctx.Done():
		return structs.Snapshot{}, ctx.Err()
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return structs.Snapshot{}, ctx.Err()
	}
}

// Snapshot returns the most recently published state.
func (s *Session) Snapshot() structs.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Done is closed when Run has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Subscribe registers an observer. When the buffer is full the oldest
// pending snapshot is dropped so the loop never blocks. The returned
// cancel func is safe to call more than once.
func (s *Session) Subscribe(buffer int) (<-chan structs.Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan structs.Snapshot, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(sub)
			}
		})
	}
}

func (s *Session) snapshot() structs.Snapshot {
	return structs.Snapshot{
		Round:     s.round,
		Seq:       s.seq,
		Snake:     s.game.Body(),
		Food:      s.game.Food(),
		Score:     s.game.Score(),
		GameOver:  s.game.GameOver(),
		Direction: s.game.Direction(),
		GridSize:  structs.GridSize,
	}
}

func (s *Session) publish() structs.Snapshot {
	s.seq++
	snap := s.snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = snap
	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
			continue
		default:
		}
		// 订阅者太慢，丢掉最旧的一帧
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
	return snap
}

func (s *Session) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
	close(s.done)
}
