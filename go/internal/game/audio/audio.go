// Package audio adapts a playback environment to the round lifecycle.
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrPlaybackBlocked is returned by an Output that refuses to start playback
// without a user gesture.
var ErrPlaybackBlocked = errors.New("audio: playback blocked until user interaction")

// Output renders a source. generation lets the output tag its asynchronous
// reports so that stale ones can be dropped.
type Output interface {
	Play(ctx context.Context, source string, generation uint64) error
	Stop() error
}

// EndedFunc receives the natural end of the track armed at generation.
type EndedFunc func(generation uint64)

// Player holds the current round's source. A blocked play request is kept and
// retried on the next user interaction.
type Player struct {
	output  Output
	onEnded EndedFunc

	mu         sync.Mutex
	source     string
	generation uint64
	deferred   bool
	playing    bool
	ended      bool
}

func NewPlayer(output Output, onEnded EndedFunc) *Player {
	return &Player{
		output:  output,
		onEnded: onEnded,
	}
}

// Reset stops whatever is playing and loads a new source. It returns the new
// generation; reports for older generations are ignored from now on.
func (p *Player) Reset(source string) uint64 {
	p.mu.Lock()
	wasPlaying := p.playing
	p.generation++
	p.source = source
	p.deferred = false
	p.playing = false
	p.ended = false
	gen := p.generation
	p.mu.Unlock()

	if wasPlaying {
		if err := p.output.Stop(); err != nil {
			log.Warn().Err(err).Msg("failed to stop previous track")
		}
	}
	return gen
}

// Play starts the loaded source. An empty source is a no-op. If the output
// refuses playback the request is deferred and nil is returned.
func (p *Player) Play(ctx context.Context) error {
	p.mu.Lock()
	source, gen := p.source, p.generation
	if source == "" || p.playing || p.ended {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	err := p.output.Play(ctx, source, gen)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		return nil
	}
	switch {
	case errors.Is(err, ErrPlaybackBlocked):
		p.deferred = true
		log.Info().Uint64("generation", gen).Msg("playback deferred until user interaction")
		return nil
	case err != nil:
		return fmt.Errorf("failed to play %s: %w", source, err)
	}
	p.deferred = false
	p.playing = true
	return nil
}

// Interact is called on any user gesture and retries a deferred play request.
func (p *Player) Interact(ctx context.Context) error {
	p.mu.Lock()
	deferred := p.deferred
	p.mu.Unlock()
	if !deferred {
		return nil
	}
	return p.Play(ctx)
}

// Blocked records an asynchronous refusal reported by the output.
func (p *Player) Blocked(generation uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if generation != p.generation || p.ended {
		return
	}
	p.playing = false
	p.deferred = true
}

// Ended forwards the natural end of the current track once.
func (p *Player) Ended(generation uint64) {
	p.mu.Lock()
	if generation != p.generation || p.ended {
		p.mu.Unlock()
		log.Debug().Uint64("generation", generation).Msg("ignoring stale audio end")
		return
	}
	p.ended = true
	p.playing = false
	p.mu.Unlock()

	if p.onEnded != nil {
		p.onEnded(generation)
	}
}

// Stop halts playback and invalidates pending reports.
func (p *Player) Stop() {
	p.mu.Lock()
	wasPlaying := p.playing
	p.generation++
	p.playing = false
	p.deferred = false
	p.mu.Unlock()

	if wasPlaying {
		if err := p.output.Stop(); err != nil {
			log.Warn().Err(err).Msg("failed to stop track")
		}
	}
}

func (p *Player) Source() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

func (p *Player) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

// Deferred reports whether a play request is waiting for a user gesture.
func (p *Player) Deferred() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deferred
}
