package session

import (
	"context"

	"github.com/mcdev12/musiguessr/go/clients/musiguessr_client"
)

// GameAPI defines what the controller needs from the backend client
type GameAPI interface {
	CreateGame(ctx context.Context, playlistID *int64) (musiguessr_client.CreateGameResponse, error)
	StartGame(ctx context.Context, gameID int64) (musiguessr_client.StartGameResponse, error)
	Guess(ctx context.Context, gameID int64, guess musiguessr_client.GuessRequest) (musiguessr_client.RoundResult, error)
	Skip(ctx context.Context, gameID int64) (musiguessr_client.RoundResult, error)
	GetMusic(ctx context.Context, musicID int64) (musiguessr_client.Music, error)
	FinishGame(ctx context.Context, gameID int64) error
}

// Timer is the round countdown. Reset must cancel any earlier schedule.
type Timer interface {
	Reset(seconds int) uint64
	Stop()
}

// Audio is the round's track player. Reset must invalidate earlier end reports.
type Audio interface {
	Reset(source string) uint64
	Play(ctx context.Context) error
	Stop()
}

// SearchBox clears its visible input whenever the reset token changes.
type SearchBox interface {
	Sync(token int) bool
}

// Metrics receives controller outcomes
type Metrics interface {
	SessionStarted(resumed bool)
	SessionStartFailed(step string)
	RoundResolved(outcome string)
	BackendFailure(step string)
	SessionFinished(finishErr bool)
}

// NoOpMetrics is a no-op implementation for when metrics aren't needed
type NoOpMetrics struct{}

func (NoOpMetrics) SessionStarted(resumed bool) {}
func (NoOpMetrics) SessionStartFailed(step string) {}
func (NoOpMetrics) RoundResolved(outcome string) {}
func (NoOpMetrics) BackendFailure(step string) {}
func (NoOpMetrics) SessionFinished(finishErr bool) {}
