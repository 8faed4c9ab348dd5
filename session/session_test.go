package session

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/hoshinonyaruko/snake-grid/snake"
	"github.com/hoshinonyaruko/snake-grid/structs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualTicker struct {
	ticks   chan time.Time
	stopped chan struct{}
}

func newManualTicker() *manualTicker {
	return &manualTicker{ticks: make(chan time.Time), stopped: make(chan struct{})}
}

func (m *manualTicker) source(d time.Duration) (<-chan time.Time, func()) {
	return m.ticks, func() { close(m.stopped) }
}

func (m *manualTicker) tick(t *testing.T) {
	t.Helper()
	select {
	case m.ticks <- time.Now():
	case <-time.After(time.Second):
		t.Fatal("loop did not accept tick")
	}
}

type harness struct {
	sess   *Session
	ticker *manualTicker
	cancel context.CancelFunc
	result chan error
}

func start(t *testing.T) *harness {
	t.Helper()
	ticker := newManualTicker()
	game := snake.NewGame(snake.NewRandomFood(rand.New(rand.NewSource(1))))
	sess := New(game, WithTickSource(ticker.source))

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{sess: sess, ticker: ticker, cancel: cancel, result: make(chan error, 1)}
	go func() { h.result <- sess.Run(ctx) }()
	t.Cleanup(cancel)
	return h
}

func next(t *testing.T, ch <-chan structs.Snapshot) structs.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}
	return structs.Snapshot{}
}

// barrier makes sure the loop has handled everything sent before it.
func barrier(t *testing.T, s *Session) {
	t.Helper()
	ok, err := s.Press(context.Background(), "barrier")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNewPublishesInitialSnapshot(t *testing.T) {
	game := snake.NewGame(snake.NewRandomFood(rand.New(rand.NewSource(1))))
	sess := New(game)

	snap := sess.Snapshot()
	assert.NotEmpty(t, snap.Round)
	assert.Equal(t, uint64(0), snap.Seq)
	assert.Equal(t, []structs.Cell{{X: 10, Y: 10}}, snap.Snake)
	assert.Equal(t, structs.Cell{X: 15, Y: 15}, snap.Food)
	assert.Equal(t, structs.Right, snap.Direction)
	assert.Equal(t, structs.GridSize, snap.GridSize)
}

func TestTickPublishesSnapshot(t *testing.T) {
	h := start(t)
	sub, cancel := h.sess.Subscribe(8)
	defer cancel()

	h.ticker.tick(t)
	snap := next(t, sub)

	assert.Equal(t, uint64(1), snap.Seq)
	assert.Equal(t, []structs.Cell{{X: 11, Y: 10}}, snap.Snake)
	assert.False(t, snap.GameOver)
	assert.Equal(t, snap, h.sess.Snapshot())
}

func TestPressPublishesOnlyOnChange(t *testing.T) {
	h := start(t)
	sub, cancel := h.sess.Subscribe(8)
	defer cancel()
	ctx := context.Background()

	ok, err := h.sess.Press(ctx, "ArrowLeft")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = h.sess.Press(ctx, "ArrowDown")
	require.NoError(t, err)
	assert.True(t, ok)

	snap := next(t, sub)
	assert.Equal(t, uint64(1), snap.Seq, "rejected press must not publish")
	assert.Equal(t, structs.Down, snap.Direction)

	h.ticker.tick(t)
	snap = next(t, sub)
	assert.Equal(t, structs.Cell{X: 10, Y: 11}, snap.Head())
}

func TestGameOverStopsPublishingUntilRestart(t *testing.T) {
	h := start(t)
	sub, cancel := h.sess.Subscribe(32)
	defer cancel()

	// 从 (10,10) 向右 10 步撞墙
	for i := 1; i <= 10; i++ {
		h.ticker.tick(t)
		snap := next(t, sub)
		assert.Equal(t, uint64(i), snap.Seq)
		if i < 10 {
			assert.Equal(t, 10+i, snap.Head().X)
			assert.False(t, snap.GameOver)
		} else {
			assert.True(t, snap.GameOver)
			assert.Equal(t, structs.Cell{X: 19, Y: 10}, snap.Head())
		}
	}
	firstRound := h.sess.Snapshot().Round

	h.ticker.tick(t)
	h.ticker.tick(t)
	barrier(t, h.sess)

	restarted, err := h.sess.Restart(context.Background())
	require.NoError(t, err)
	snap := next(t, sub)
	assert.Equal(t, restarted, snap)
	assert.Equal(t, uint64(11), snap.Seq, "ticks after game over are no-ops")
	assert.NotEqual(t, firstRound, snap.Round)
	assert.False(t, snap.GameOver)
	assert.Equal(t, 0, snap.Score)
	assert.Equal(t, []structs.Cell{{X: 10, Y: 10}}, snap.Snake)
}

func TestSlowSubscriberKeepsLatest(t *testing.T) {
	h := start(t)
	sub, cancel := h.sess.Subscribe(1)
	defer cancel()

	h.ticker.tick(t)
	h.ticker.tick(t)
	h.ticker.tick(t)
	barrier(t, h.sess)

	snap := next(t, sub)
	assert.Equal(t, uint64(3), snap.Seq)
	select {
	case extra := <-sub:
		t.Fatalf("unexpected extra snapshot %d", extra.Seq)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := start(t)
	sub, cancel := h.sess.Subscribe(4)

	cancel()
	cancel()

	_, ok := <-sub
	assert.False(t, ok)
	h.ticker.tick(t)
	barrier(t, h.sess)
}

func TestCancelTearsDown(t *testing.T) {
	h := start(t)
	sub, _ := h.sess.Subscribe(4)

	h.cancel()
	select {
	case err := <-h.result:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}

	select {
	case <-h.ticker.stopped:
	default:
		t.Fatal("ticker was not stopped")
	}
	_, ok := <-sub
	assert.False(t, ok)
	<-h.sess.Done()

	_, err := h.sess.Press(context.Background(), "ArrowUp")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = h.sess.Restart(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	late, _ := h.sess.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok)
}

func TestPressHonoursContext(t *testing.T) {
	game := snake.NewGame(snake.NewRandomFood(rand.New(rand.NewSource(1))))
	sess := New(game)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sess.Press(ctx, "ArrowUp")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = sess.Restart(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
