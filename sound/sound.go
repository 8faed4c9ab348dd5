// Package sound plays short tones when the snake eats or crashes.
package sound

import (
	"context"
	"log"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
	"github.com/hoshinonyaruko/snake-grid/structs"
)

const sampleRate = beep.SampleRate(44100)

type Cue int

const (
	CueNone Cue = iota
	CueEat
	CueCrash
)

// CueFor picks the cue for the transition prev -> next. A crash on the
// same tick as a meal only plays the crash.
func CueFor(prev, next structs.Snapshot) Cue {
	if next.Round != prev.Round {
		return CueNone
	}
	if next.GameOver && !prev.GameOver {
		return CueCrash
	}
	if next.Score > prev.Score {
		return CueEat
	}
	return CueNone
}

type Sounder interface {
	Play(c Cue)
}

// Source is the snapshot feed Follow listens to.
type Source interface {
	Snapshot() structs.Snapshot
	Subscribe(buffer int) (<-chan structs.Snapshot, func())
}

// Follow plays cues for every transition until ctx ends or the source
// closes the subscription.
func Follow(ctx context.Context, src Source, s Sounder) {
	sub, cancel := src.Subscribe(8)
	defer cancel()

	prev := src.Snapshot()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			if cue := CueFor(prev, next); cue != CueNone {
				s.Play(cue)
			}
			prev = next
		}
	}
}

// Player writes cues to the system speaker.
type Player struct{}

func NewPlayer() (*Player, error) {
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		return nil, err
	}
	return &Player{}, nil
}

func (p *Player) Play(c Cue) {
	freq, duration := 880.0, 50*time.Millisecond
	if c == CueCrash {
		freq, duration = 220.0, 400*time.Millisecond
	}
	sine, err := generators.SineTone(sampleRate, freq)
	if err != nil {
		log.Printf("sound: %v", err)
		return
	}
	tone := &effects.Volume{
		Streamer: beep.Take(sampleRate.N(duration), sine),
		Base:     2,
		Volume:   -2,
	}
	speaker.Play(tone)
}

func (p *Player) Close() {
	speaker.Close()
}
