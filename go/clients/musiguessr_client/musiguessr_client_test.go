package musiguessr_client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *MusiguessrClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewMusiguessrClient(srv.URL)
}

func TestCreateGame(t *testing.T) {
	playlistID := int64(1)

	tests := []struct {
		name       string
		playlistID *int64
		wantBody   string
	}{
		{name: "with playlist", playlistID: &playlistID, wantBody: `{"playlistId":1}`},
		{name: "without playlist", playlistID: nil, wantBody: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api/games", r.URL.Path)
				var raw json.RawMessage
				require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
				assert.JSONEq(t, tt.wantBody, string(raw))
				w.Write([]byte(`{"id":123}`))
			})

			resp, err := c.CreateGame(context.Background(), tt.playlistID)
			require.NoError(t, err)
			assert.Equal(t, int64(123), resp.ID)
		})
	}
}

func TestStartGame(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/games/123/start", r.URL.Path)
		w.Write([]byte(`{"currentRound":1,"totalRounds":5,"nextPreviewUrl":"http://audio.mp3"}`))
	})

	resp, err := c.StartGame(context.Background(), 123)
	require.NoError(t, err)
	assert.Equal(t, StartGameResponse{CurrentRound: 1, TotalRounds: 5, NextPreviewURL: "http://audio.mp3"}, resp)
}

func TestGuess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/games/123/guess", r.URL.Path)
		var req GuessRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, GuessRequest{MusicID: 100, ElapsedMs: 4200}, req)
		w.Write([]byte(`{"correct":true,"earnedScore":100,"correctMusicId":100,"totalScore":100,"nextRound":2,"gameFinished":false,"nextPreviewUrl":"B"}`))
	})

	resp, err := c.Guess(context.Background(), 123, GuessRequest{MusicID: 100, ElapsedMs: 4200})
	require.NoError(t, err)
	assert.True(t, resp.Correct)
	assert.Equal(t, 100, resp.EarnedScore)
	assert.Equal(t, int64(100), resp.CorrectMusicID)
	assert.Equal(t, 2, resp.NextRound)
	assert.Equal(t, "B", resp.NextPreviewURL)
}

func TestSkipNeverCorrect(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/games/123/skip", r.URL.Path)
		w.Write([]byte(`{"correct":true,"earnedScore":0,"correctMusicId":9,"totalScore":40,"nextRound":3}`))
	})

	resp, err := c.Skip(context.Background(), 123)
	require.NoError(t, err)
	assert.False(t, resp.Correct)
	assert.Equal(t, 40, resp.TotalScore)
}

func TestFinishGame(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/games/123/finish", r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := c.FinishGame(context.Background(), 123)
	assert.Error(t, err)
}

func TestGetMusic(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/musics/100", r.URL.Path)
		w.Write([]byte(`{"id":100,"name":"Song A","artist":{"name":"Artist A"},"genre":{"name":"Rock"}}`))
	})

	music, err := c.GetMusic(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, "Song A", music.Name)
	assert.Equal(t, "Artist A", music.Artist.Name)
	assert.Equal(t, "Rock", music.Genre.Name)
}

func TestListMusics(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bare array", body: `[{"id":1,"name":"One"},{"id":2,"name":"Two"}]`},
		{name: "page envelope", body: `{"content":[{"id":1,"name":"One"},{"id":2,"name":"Two"}],"totalElements":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/musics", r.URL.Path)
				w.Write([]byte(tt.body))
			})

			musics, err := c.ListMusics(context.Background())
			require.NoError(t, err)
			require.Len(t, musics, 2)
			assert.Equal(t, "Two", musics[1].Name)
		})
	}
}
