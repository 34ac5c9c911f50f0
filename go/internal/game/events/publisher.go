package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Publisher sends session lifecycle events somewhere else.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoOpPublisher drops every event.
type NoOpPublisher struct{}

func (NoOpPublisher) Publish(ctx context.Context, event Event) error { return nil }

// NewEvent builds an event with a fresh id.
func NewEvent(eventType EventType, sessionID int64, payload interface{}) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		SessionID: sessionID,
		Payload:   payload,
	}
}

type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // How long to keep messages
	Replicas        int
	DuplicateWindow time.Duration
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "MUSIGUESSR_EVENTS",
		SubjectPrefix:   "musiguessr.events",
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          7 * 24 * time.Hour,
		Replicas:        1,
		DuplicateWindow: 2 * time.Minute,
	}
}

type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

func NewJetStreamPublisher(ctx context.Context, cfg JetStreamConfig) (*JetStreamPublisher, error) {
	opts := []nats.Option{
		nats.Name("musiguessr"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &JetStreamPublisher{nc: nc, js: js, config: cfg}
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return p, nil
}

func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Description: "Game session lifecycle events",
		Subjects:    []string{fmt.Sprintf("%s.>", p.config.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      p.config.MaxAge,
		Storage:     jetstream.FileStorage,
		Replicas:    p.config.Replicas,
		Duplicates:  p.config.DuplicateWindow,
	}

	if _, err := p.js.CreateOrUpdateStream(ctx, sc); err != nil {
		return fmt.Errorf("create or update stream: %w", err)
	}
	log.Info().Str("stream", p.config.StreamName).Msg("JetStream stream ready")
	return nil
}

// Subject returns the subject an event type is published on.
func (p *JetStreamPublisher) Subject(eventType EventType) string {
	return fmt.Sprintf("%s.%s", p.config.SubjectPrefix, eventType)
}

func (p *JetStreamPublisher) Publish(ctx context.Context, event Event) error {
	subject := p.Subject(event.Type)

	data, err := Envelope(event, time.Now().UTC())
	if err != nil {
		return err
	}

	ack, err := p.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{string(event.Type)},
			"Session-ID": []string{strconv.FormatInt(event.SessionID, 10)},
			"Event-ID":   []string{event.ID},
		},
	},
		jetstream.WithMsgID(event.ID),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("event_id", event.ID).
		Uint64("sequence", ack.Sequence).
		Msg("published to JetStream")
	return nil
}

func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

// Envelope marshals an event the way it is written to the stream.
func Envelope(event Event, at time.Time) ([]byte, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	env := map[string]interface{}{
		"eventId":   event.ID,
		"eventType": event.Type,
		"sessionId": event.SessionID,
		"timestamp": at,
		"payload":   json.RawMessage(payload),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}
