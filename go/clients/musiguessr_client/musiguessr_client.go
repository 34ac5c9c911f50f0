package musiguessr_client

import (
	"fmt"

	"github.com/mcdev12/musiguessr/go/clients"
)

type MusiguessrClient struct {
	*clients.BaseClient
}

// NewMusiguessrClient returns a client for the game backend rooted at baseURL.
func NewMusiguessrClient(baseURL string) *MusiguessrClient {
	return &MusiguessrClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}
}

func gamePath(gameID int64, action string) string {
	return fmt.Sprintf("%s/%d%s", GamesEndpoint, gameID, action)
}

func musicPath(musicID int64) string {
	return fmt.Sprintf("%s/%d", MusicsEndpoint, musicID)
}
