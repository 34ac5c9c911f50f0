package musiguessr_client

import (
	"context"
	"encoding/json"
	"fmt"
)

type CreateGameRequest struct {
	PlaylistID *int64 `json:"playlistId,omitempty"`
}

type CreateGameResponse struct {
	ID int64 `json:"id"`
}

type StartGameResponse struct {
	CurrentRound   int    `json:"currentRound"`
	TotalRounds    int    `json:"totalRounds"`
	NextPreviewURL string `json:"nextPreviewUrl"`
}

type GuessRequest struct {
	MusicID   int64 `json:"musicId"`
	ElapsedMs int64 `json:"elapsedMs"`
}

// RoundResult is the backend's answer to a guess or a skip. A skip never
// reports Correct.
type RoundResult struct {
	Correct        bool   `json:"correct"`
	EarnedScore    int    `json:"earnedScore"`
	CorrectMusicID int64  `json:"correctMusicId"`
	TotalScore     int    `json:"totalScore"`
	NextRound      int    `json:"nextRound"`
	GameFinished   bool   `json:"gameFinished"`
	NextPreviewURL string `json:"nextPreviewUrl"`
}

// CreateGame creates a session, optionally bound to a playlist.
func (c *MusiguessrClient) CreateGame(ctx context.Context, playlistID *int64) (CreateGameResponse, error) {
	var response CreateGameResponse
	body, err := c.Post(ctx, GamesEndpoint, CreateGameRequest{PlaylistID: playlistID})
	if err != nil {
		return response, fmt.Errorf("failed to create game: %w", err)
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return response, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	return response, nil
}

func (c *MusiguessrClient) StartGame(ctx context.Context, gameID int64) (StartGameResponse, error) {
	var response StartGameResponse
	body, err := c.Post(ctx, gamePath(gameID, StartAction), nil)
	if err != nil {
		return response, fmt.Errorf("failed to start game %d: %w", gameID, err)
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return response, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	return response, nil
}

func (c *MusiguessrClient) Guess(ctx context.Context, gameID int64, guess GuessRequest) (RoundResult, error) {
	var response RoundResult
	body, err := c.Post(ctx, gamePath(gameID, GuessAction), guess)
	if err != nil {
		return response, fmt.Errorf("failed to submit guess for game %d: %w", gameID, err)
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return response, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	return response, nil
}

func (c *MusiguessrClient) Skip(ctx context.Context, gameID int64) (RoundResult, error) {
	var response RoundResult
	body, err := c.Get(ctx, gamePath(gameID, SkipAction))
	if err != nil {
		return response, fmt.Errorf("failed to skip round for game %d: %w", gameID, err)
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return response, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	response.Correct = false
	return response, nil
}

// FinishGame closes the session. The response body is ignored.
func (c *MusiguessrClient) FinishGame(ctx context.Context, gameID int64) error {
	if _, err := c.Post(ctx, gamePath(gameID, FinishAction), nil); err != nil {
		return fmt.Errorf("failed to finish game %d: %w", gameID, err)
	}
	return nil
}
