package session

import (
	"context"
	"sync"

	"github.com/mcdev12/musiguessr/go/clients/musiguessr_client"
	"github.com/mcdev12/musiguessr/go/internal/game/events"
)

// ------------------------
// Fake Game API
// ------------------------

type FakeGameAPI struct {
	mu    sync.Mutex
	trace []string

	CreateGameFunc func(ctx context.Context, playlistID *int64) (musiguessr_client.CreateGameResponse, error)
	StartGameFunc  func(ctx context.Context, gameID int64) (musiguessr_client.StartGameResponse, error)
	GuessFunc      func(ctx context.Context, gameID int64, guess musiguessr_client.GuessRequest) (musiguessr_client.RoundResult, error)
	SkipFunc       func(ctx context.Context, gameID int64) (musiguessr_client.RoundResult, error)
	GetMusicFunc   func(ctx context.Context, musicID int64) (musiguessr_client.Music, error)
	FinishGameFunc func(ctx context.Context, gameID int64) error
}

func (f *FakeGameAPI) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.trace...)
}

func (f *FakeGameAPI) Count(step string) int {
	n := 0
	for _, s := range f.Trace() {
		if s == step {
			n++
		}
	}
	return n
}

func (f *FakeGameAPI) record(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, step)
}

func (f *FakeGameAPI) CreateGame(ctx context.Context, playlistID *int64) (musiguessr_client.CreateGameResponse, error) {
	f.record("CreateGame")
	if f.CreateGameFunc != nil {
		return f.CreateGameFunc(ctx, playlistID)
	}
	return musiguessr_client.CreateGameResponse{ID: 123}, nil
}

func (f *FakeGameAPI) StartGame(ctx context.Context, gameID int64) (musiguessr_client.StartGameResponse, error) {
	f.record("StartGame")
	if f.StartGameFunc != nil {
		return f.StartGameFunc(ctx, gameID)
	}
	return musiguessr_client.StartGameResponse{CurrentRound: 1, TotalRounds: 5, NextPreviewURL: "http://audio.mp3"}, nil
}

func (f *FakeGameAPI) Guess(ctx context.Context, gameID int64, guess musiguessr_client.GuessRequest) (musiguessr_client.RoundResult, error) {
	f.record("Guess")
	if f.GuessFunc != nil {
		return f.GuessFunc(ctx, gameID, guess)
	}
	return musiguessr_client.RoundResult{}, nil
}

func (f *FakeGameAPI) Skip(ctx context.Context, gameID int64) (musiguessr_client.RoundResult, error) {
	f.record("Skip")
	if f.SkipFunc != nil {
		return f.SkipFunc(ctx, gameID)
	}
	return musiguessr_client.RoundResult{}, nil
}

func (f *FakeGameAPI) GetMusic(ctx context.Context, musicID int64) (musiguessr_client.Music, error) {
	f.record("GetMusic")
	if f.GetMusicFunc != nil {
		return f.GetMusicFunc(ctx, musicID)
	}
	return musiguessr_client.Music{ID: musicID}, nil
}

func (f *FakeGameAPI) FinishGame(ctx context.Context, gameID int64) error {
	f.record("FinishGame")
	if f.FinishGameFunc != nil {
		return f.FinishGameFunc(ctx, gameID)
	}
	return nil
}

// ------------------------
// Fake collaborators
// ------------------------

type FakeTimer struct {
	mu     sync.Mutex
	gen    uint64
	resets []int
	stops  int
}

func (f *FakeTimer) Reset(seconds int) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	f.resets = append(f.resets, seconds)
	return f.gen
}

func (f *FakeTimer) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	f.stops++
}

type FakeAudio struct {
	mu      sync.Mutex
	gen     uint64
	sources []string
	plays   int
	stops   int
}

func (f *FakeAudio) Reset(source string) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	f.sources = append(f.sources, source)
	return f.gen
}

func (f *FakeAudio) Play(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	return nil
}

func (f *FakeAudio) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	f.stops++
}

func (f *FakeAudio) Generation() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen
}

type FakeSearch struct {
	mu     sync.Mutex
	tokens []int
}

func (f *FakeSearch) Sync(token int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	return true
}

func (f *FakeSearch) Tokens() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.tokens...)
}

// ------------------------
// Fake metrics and publisher
// ------------------------

type FakeMetrics struct {
	mu       sync.Mutex
	outcomes []string
	failures []string
	started  int
	finished int
}

func (f *FakeMetrics) SessionStarted(resumed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
}

func (f *FakeMetrics) SessionStartFailed(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, "start:"+step)
}

func (f *FakeMetrics) RoundResolved(outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
}

func (f *FakeMetrics) BackendFailure(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, step)
}

func (f *FakeMetrics) SessionFinished(finishErr bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished++
}

type FakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *FakePublisher) Publish(ctx context.Context, event events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *FakePublisher) Types() []events.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]events.EventType, 0, len(f.events))
	for _, e := range f.events {
		types = append(types, e.Type)
	}
	return types
}
