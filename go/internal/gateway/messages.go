package gateway

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/musiguessr/go/internal/game/session"
	"github.com/mcdev12/musiguessr/go/internal/game/view"
	"github.com/mcdev12/musiguessr/go/internal/models"
)

// ClientMessageType is what the browser asks for.
type ClientMessageType string

const (
	ClientStart        ClientMessageType = "start"
	ClientSearch       ClientMessageType = "search"
	ClientGuess        ClientMessageType = "guess"
	ClientSkip         ClientMessageType = "skip"
	ClientAudioEnded   ClientMessageType = "audio_ended"
	ClientAudioBlocked ClientMessageType = "audio_blocked"
	ClientInteract     ClientMessageType = "interact"
	ClientDismiss      ClientMessageType = "dismiss"
)

// ClientMessage is a single command received over the socket.
type ClientMessage struct {
	Type       ClientMessageType `json:"type"`
	Query      string            `json:"query,omitempty"`
	MusicID    int64             `json:"music_id,omitempty"`
	Generation uint64            `json:"generation,omitempty"`
}

// ServerMessageType is what the gateway pushes to the browser.
type ServerMessageType string

const (
	ServerSnapshot      ServerMessageType = "snapshot"
	ServerSearchResults ServerMessageType = "search_results"
	ServerTick          ServerMessageType = "tick"
	ServerAudio         ServerMessageType = "audio"
	ServerError         ServerMessageType = "error"
)

// ServerMessage is the envelope for everything sent to a client.
type ServerMessage struct {
	ID        string            `json:"id"`
	Type      ServerMessageType `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Data      json.RawMessage   `json:"data"`
}

// SnapshotPayload carries the controller state and the modal to show.
type SnapshotPayload struct {
	Snapshot session.Snapshot `json:"snapshot"`
	Modal    view.Modal       `json:"modal"`
	HUD      view.HUD         `json:"hud"`
}

type SearchResultsPayload struct {
	Query   string         `json:"query"`
	Results []models.Track `json:"results"`
}

type TickPayload struct {
	Generation uint64 `json:"generation"`
	Remaining  int    `json:"remaining"`
}

// AudioCommand tells the browser's player what to do.
type AudioCommand string

const (
	AudioPlay AudioCommand = "play"
	AudioStop AudioCommand = "stop"
)

type AudioPayload struct {
	Command    AudioCommand `json:"command"`
	URL        string       `json:"url,omitempty"`
	Generation uint64       `json:"generation"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// encodeServerMessage wraps a payload in a ServerMessage and marshals it.
func encodeServerMessage(msgType ServerMessageType, payload interface{}, at time.Time) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ServerMessage{
		ID:        uuid.New().String(),
		Type:      msgType,
		Timestamp: at,
		Data:      data,
	})
}

func newSnapshotPayload(snap session.Snapshot) SnapshotPayload {
	return SnapshotPayload{
		Snapshot: snap,
		Modal:    view.Current(snap),
		HUD:      view.Header(snap),
	}
}
