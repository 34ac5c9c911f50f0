package terminal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/musiguessr/go/clients"
	"github.com/mcdev12/musiguessr/go/clients/musiguessr_client"
	"github.com/mcdev12/musiguessr/go/internal/game/search"
	"github.com/mcdev12/musiguessr/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type scriptedBackend struct {
	mu         sync.Mutex
	createErr  error
	finishedID int64
}

func (s *scriptedBackend) setCreateErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createErr = err
}

func (s *scriptedBackend) CreateGame(ctx context.Context, playlistID *int64) (musiguessr_client.CreateGameResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return musiguessr_client.CreateGameResponse{}, s.createErr
	}
	return musiguessr_client.CreateGameResponse{ID: 123}, nil
}

func (s *scriptedBackend) StartGame(ctx context.Context, gameID int64) (musiguessr_client.StartGameResponse, error) {
	return musiguessr_client.StartGameResponse{CurrentRound: 1, TotalRounds: 2, NextPreviewURL: "http://audio.mp3"}, nil
}

func (s *scriptedBackend) Guess(ctx context.Context, gameID int64, guess musiguessr_client.GuessRequest) (musiguessr_client.RoundResult, error) {
	return musiguessr_client.RoundResult{Correct: true, EarnedScore: 100, CorrectMusicID: 1, TotalScore: 100, NextRound: 2, NextPreviewURL: "B"}, nil
}

func (s *scriptedBackend) Skip(ctx context.Context, gameID int64) (musiguessr_client.RoundResult, error) {
	return musiguessr_client.RoundResult{CorrectMusicID: 2, TotalScore: 100, GameFinished: true}, nil
}

func (s *scriptedBackend) GetMusic(ctx context.Context, musicID int64) (musiguessr_client.Music, error) {
	if musicID == 2 {
		return musiguessr_client.Music{}, errors.New("not found")
	}
	return musiguessr_client.Music{ID: 1, Name: "Song A", Artist: musiguessr_client.NamedRef{Name: "Artist A"}}, nil
}

func (s *scriptedBackend) FinishGame(ctx context.Context, gameID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishedID = gameID
	return nil
}

func (s *scriptedBackend) ListMusics(ctx context.Context) ([]musiguessr_client.Music, error) {
	return []musiguessr_client.Music{
		{ID: 1, Name: "Song A", Artist: musiguessr_client.NamedRef{Name: "Artist A"}},
		{ID: 2, Name: "Other Tune", Artist: musiguessr_client.NamedRef{Name: "Artist B"}},
	}, nil
}

func newTestPlayer(backend *scriptedBackend, in string, out *syncBuffer) *Player {
	return New(Options{
		API:   backend,
		Index: search.NewIndex(backend),
		Clock: clockwork.NewFakeClock(),
		In:    strings.NewReader(in),
		Out:   out,
	})
}

func TestExecute_PlaysWholeGame(t *testing.T) {
	backend := &scriptedBackend{}
	out := &syncBuffer{}
	p := newTestPlayer(backend, "", out)
	defer p.Close()
	ctx := context.Background()

	exec := func(line string) {
		t.Helper()
		quit, err := p.Execute(ctx, line)
		require.NoError(t, err)
		require.False(t, quit)
	}

	exec("")
	assert.Equal(t, models.SessionStateInRound, p.Controller().State())
	assert.Contains(t, out.String(), "Round 1/2  Score 0")

	exec("song")
	assert.Contains(t, out.String(), `1. "Song A" by Artist A`)

	exec("1")
	assert.Equal(t, models.SessionStateAwaitingAnswerDismissal, p.Controller().State())
	assert.Contains(t, out.String(), "Correct!")

	exec("")
	assert.Equal(t, 2, p.Controller().Snapshot().Session.CurrentRoundIndex)
	assert.Contains(t, out.String(), "Round 2/2  Score 100")

	exec("/skip")
	assert.Contains(t, out.String(), "The answer could not be loaded.")
	assert.Contains(t, out.String(), "[See results]")

	exec("/next")
	p.Controller().Wait()
	assert.Equal(t, models.SessionStateFinished, p.Controller().State())
	assert.Contains(t, out.String(), "Final score: 100")

	backend.mu.Lock()
	assert.Equal(t, int64(123), backend.finishedID)
	backend.mu.Unlock()

	select {
	case <-p.finished:
	default:
		t.Fatal("finished channel not closed")
	}

	quit, err := p.Execute(ctx, "/quit")
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestExecute_Errors(t *testing.T) {
	backend := &scriptedBackend{createErr: errors.New("backend down")}
	out := &syncBuffer{}
	p := newTestPlayer(backend, "", out)
	defer p.Close()
	ctx := context.Background()

	_, err := p.Execute(ctx, "/start")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateNotStarted, p.Controller().State())
	assert.Contains(t, out.String(), "failed to create game: backend down")
	assert.Nil(t, p.Controller().Snapshot().Notice)

	_, err = p.Execute(ctx, "3")
	assert.Error(t, err)

	// Skipping before the game starts is silently ignored.
	_, err = p.Execute(ctx, "/skip")
	assert.NoError(t, err)
}

func TestExecute_RejectedTokenHint(t *testing.T) {
	backend := &scriptedBackend{}
	backend.setCreateErr(&clients.APIError{Method: http.MethodPost, Path: "/api/games", StatusCode: http.StatusUnauthorized})
	out := &syncBuffer{}
	p := newTestPlayer(backend, "", out)
	defer p.Close()

	_, err := p.Execute(context.Background(), "/start")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "musiguessr token set")

	backend.setCreateErr(errors.New("backend down"))
	before := strings.Count(out.String(), "musiguessr token set")
	_, err = p.Execute(context.Background(), "/start")
	require.NoError(t, err)
	assert.Equal(t, before, strings.Count(out.String(), "musiguessr token set"))
}

func TestRun_ReturnsWhenGameFinishes(t *testing.T) {
	in, w := io.Pipe()
	defer w.Close()
	out := &syncBuffer{}
	p := New(Options{
		API:   &scriptedBackend{},
		Index: search.NewIndex(&scriptedBackend{}),
		Clock: clockwork.NewFakeClock(),
		In:    in,
		Out:   out,
	})

	// The scripted skip reports the game as finished after round 1.
	go func() {
		for _, line := range []string{"", "/skip", "/next"} {
			if _, err := io.WriteString(w, line+"\n"); err != nil {
				return
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Run(ctx))
	assert.Contains(t, out.String(), "Final score: 100")

	// The input stays open; the reader must still exit once it sees more input.
	go io.WriteString(w, "ignored\n")
	select {
	case <-p.readerDone:
	case <-time.After(time.Second):
		t.Fatal("input reader still running after Run returned")
	}
}

func TestRun_QuitsOnCommand(t *testing.T) {
	out := &syncBuffer{}
	p := newTestPlayer(&scriptedBackend{}, "\n/quit\n", out)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Contains(t, out.String(), "Commands:")
	assert.Contains(t, out.String(), "[Start]")
	assert.Contains(t, out.String(), "Round 1/2")
}

func TestRun_EndOfInput(t *testing.T) {
	p := newTestPlayer(&scriptedBackend{}, "", &syncBuffer{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	assert.NoError(t, p.Run(ctx))
}
