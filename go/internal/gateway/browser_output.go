package gateway

import (
	"context"
)

// BrowserOutput plays audio in the connected browser. Play only sends a
// command; a refused autoplay comes back later as an audio_blocked message.
type BrowserOutput struct {
	send func(msgType ServerMessageType, payload interface{})
}

func NewBrowserOutput(send func(msgType ServerMessageType, payload interface{})) *BrowserOutput {
	return &BrowserOutput{send: send}
}

func (o *BrowserOutput) Play(ctx context.Context, source string, generation uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.send(ServerAudio, AudioPayload{Command: AudioPlay, URL: source, Generation: generation})
	return nil
}

func (o *BrowserOutput) Stop() error {
	o.send(ServerAudio, AudioPayload{Command: AudioStop})
	return nil
}
