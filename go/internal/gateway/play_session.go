package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/musiguessr/go/internal/game/audio"
	"github.com/mcdev12/musiguessr/go/internal/game/countdown"
	"github.com/mcdev12/musiguessr/go/internal/game/events"
	"github.com/mcdev12/musiguessr/go/internal/game/search"
	"github.com/mcdev12/musiguessr/go/internal/game/session"
	"github.com/mcdev12/musiguessr/go/internal/models"
	"github.com/rs/zerolog/log"
)

// SendFunc queues a message for the client.
type SendFunc func(msgType ServerMessageType, payload interface{})

// PlaySessionDeps are shared by every play session of a gateway.
type PlaySessionDeps struct {
	API           session.GameAPI
	Index         *search.Index
	Clock         clockwork.Clock
	RoundSeconds  int
	SearchLimit   int
	FinishTimeout time.Duration
	Publisher     events.Publisher
	Metrics       session.Metrics
}

// PlaySession is one browser's game: a controller and its collaborators.
type PlaySession struct {
	id      string
	request session.StartRequest
	send    SendFunc

	ctrl   *session.Controller
	timer  *countdown.Countdown
	player *audio.Player
	widget *search.Widget
	index  *search.Index
}

func NewPlaySession(id string, deps PlaySessionDeps, req session.StartRequest, send SendFunc) *PlaySession {
	cfg := session.DefaultConfig()
	if deps.Clock != nil {
		cfg.Clock = deps.Clock
	}
	if deps.RoundSeconds > 0 {
		cfg.RoundSeconds = deps.RoundSeconds
	}
	if deps.FinishTimeout > 0 {
		cfg.FinishTimeout = deps.FinishTimeout
	}
	if deps.Publisher != nil {
		cfg.Publisher = deps.Publisher
	}
	if deps.Metrics != nil {
		cfg.Metrics = deps.Metrics
	}

	ctrl := session.NewController(deps.API, cfg)
	timer := countdown.New(cfg.Clock, ctrl.TimerExpired)
	timer.OnTick(func(generation uint64, remaining int) {
		send(ServerTick, TickPayload{Generation: generation, Remaining: remaining})
	})
	player := audio.NewPlayer(NewBrowserOutput(send), ctrl.AudioEnded)
	widget := search.NewWidget(deps.Index, deps.SearchLimit, nil)

	ctrl.Attach(session.Collaborators{Timer: timer, Audio: player, Search: widget})
	ctrl.OnChange(func(snap session.Snapshot) {
		send(ServerSnapshot, newSnapshotPayload(snap))
	})

	return &PlaySession{
		id:      id,
		request: req,
		send:    send,
		ctrl:    ctrl,
		timer:   timer,
		player:  player,
		widget:  widget,
		index:   deps.Index,
	}
}

// Controller exposes the session's controller, mainly for stats and tests.
func (p *PlaySession) Controller() *session.Controller {
	return p.ctrl
}

// SendSnapshot pushes the current state, used right after connecting.
func (p *PlaySession) SendSnapshot() {
	p.send(ServerSnapshot, newSnapshotPayload(p.ctrl.Snapshot()))
}

// Handle applies one client message. Errors returned here are reported to the
// client; no-op errors from the controller are swallowed.
func (p *PlaySession) Handle(ctx context.Context, msg ClientMessage) error {
	switch msg.Type {
	case ClientAudioEnded:
		p.player.Ended(msg.Generation)
		return nil
	case ClientAudioBlocked:
		p.player.Blocked(msg.Generation)
		return nil
	}

	// Every other message is a user gesture.
	if err := p.player.Interact(ctx); err != nil {
		log.Warn().Err(err).Str("connection_id", p.id).Msg("failed to resume deferred audio")
	}

	var err error
	switch msg.Type {
	case ClientInteract:
		return nil
	case ClientStart:
		err = p.ctrl.StartSession(ctx, p.request)
		var startErr *session.StartError
		if errors.As(err, &startErr) {
			// Already surfaced as a blocking notice in the snapshot.
			return nil
		}
		if err == nil {
			go p.preloadCatalog(ctx)
		}
	case ClientSearch:
		return p.search(ctx, msg.Query)
	case ClientGuess:
		err = p.guess(ctx, msg.MusicID)
	case ClientSkip:
		err = p.ctrl.SkipRound(ctx)
	case ClientDismiss:
		err = p.ctrl.DismissAnswer(ctx)
		if errors.Is(err, session.ErrNoPendingAnswer) && p.ctrl.Snapshot().Notice != nil {
			p.ctrl.ClearNotice()
			return nil
		}
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}

	if err != nil && !session.Ignorable(err) {
		return err
	}
	return nil
}

func (p *PlaySession) search(ctx context.Context, query string) error {
	if err := p.index.Load(ctx); err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	results, err := p.widget.Search(query)
	if err != nil {
		return err
	}
	if results == nil {
		results = []models.Track{}
	}
	p.send(ServerSearchResults, SearchResultsPayload{Query: query, Results: results})
	return nil
}

func (p *PlaySession) guess(ctx context.Context, musicID int64) error {
	if musicID <= 0 {
		return errors.New("music_id is required")
	}
	track, err := p.widget.Select(musicID)
	if err != nil {
		// The backend is the authority on ids; the catalog only adds names.
		track = models.Track{ID: musicID}
	}
	return p.ctrl.SubmitGuess(ctx, track)
}

func (p *PlaySession) preloadCatalog(ctx context.Context) {
	if err := p.index.Load(ctx); err != nil {
		log.Warn().Err(err).Str("connection_id", p.id).Msg("failed to preload catalog")
	}
}

// Close stops the round collaborators and waits for a pending finish call.
func (p *PlaySession) Close() {
	p.ctrl.Close()
	p.timer.Stop()
}
