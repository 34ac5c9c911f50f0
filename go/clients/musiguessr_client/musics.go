package musiguessr_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

type NamedRef struct {
	Name string `json:"name"`
}

type Music struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name"`
	Artist NamedRef `json:"artist"`
	Genre  NamedRef `json:"genre"`
}

type musicPage struct {
	Content []Music `json:"content"`
}

func (c *MusiguessrClient) GetMusic(ctx context.Context, musicID int64) (Music, error) {
	var music Music
	body, err := c.Get(ctx, musicPath(musicID))
	if err != nil {
		return music, fmt.Errorf("failed to get music %d: %w", musicID, err)
	}
	if err := json.Unmarshal(body, &music); err != nil {
		return music, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	return music, nil
}

// ListMusics fetches the whole searchable catalog. The backend answers either
// with a bare array or with a page envelope.
func (c *MusiguessrClient) ListMusics(ctx context.Context) ([]Music, error) {
	body, err := c.Get(ctx, MusicsEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to list musics: %w", err)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var musics []Music
		if err := json.Unmarshal(trimmed, &musics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
		}
		return musics, nil
	}

	var page musicPage
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	return page.Content, nil
}
