// Package terminal runs a game session on stdin/stdout with an external audio
// player.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/musiguessr/go/clients"
	"github.com/mcdev12/musiguessr/go/internal/game/audio"
	"github.com/mcdev12/musiguessr/go/internal/game/countdown"
	"github.com/mcdev12/musiguessr/go/internal/game/events"
	"github.com/mcdev12/musiguessr/go/internal/game/search"
	"github.com/mcdev12/musiguessr/go/internal/game/session"
	"github.com/mcdev12/musiguessr/go/internal/game/view"
	"github.com/mcdev12/musiguessr/go/internal/models"
	"github.com/rs/zerolog/log"
)

const helpText = `Commands:
  <text>    search the catalog
  <n>       guess the n-th search result
  /skip     skip the round
  /next     continue after an answer (or press enter)
  /play     retry audio playback
  /quit     leave the game`

// EndNotifier is implemented by outputs that report the natural end of a
// track, such as audio.ExecOutput.
type EndNotifier interface {
	SetOnEnded(fn audio.EndedFunc)
}

type Options struct {
	API           session.GameAPI
	Index         *search.Index
	Output        audio.Output
	Clock         clockwork.Clock
	RoundSeconds  int
	SearchLimit   int
	FinishTimeout time.Duration
	Publisher     events.Publisher
	Metrics       session.Metrics
	Start         session.StartRequest
	In            io.Reader
	Out           io.Writer
}

// Player is an interactive terminal game.
type Player struct {
	in    io.Reader
	start session.StartRequest

	ctrl   *session.Controller
	timer  *countdown.Countdown
	audio  *audio.Player
	widget *search.Widget
	index  *search.Index

	outMu     sync.Mutex
	out       io.Writer
	lastState models.SessionState
	lastRound int

	finished     chan struct{}
	finishedOnce sync.Once

	// readerDone is closed when Run's input goroutine exits.
	readerDone chan struct{}
}

func New(opts Options) *Player {
	cfg := session.DefaultConfig()
	if opts.Clock != nil {
		cfg.Clock = opts.Clock
	}
	if opts.RoundSeconds > 0 {
		cfg.RoundSeconds = opts.RoundSeconds
	}
	if opts.FinishTimeout > 0 {
		cfg.FinishTimeout = opts.FinishTimeout
	}
	if opts.Publisher != nil {
		cfg.Publisher = opts.Publisher
	}
	if opts.Metrics != nil {
		cfg.Metrics = opts.Metrics
	}

	p := &Player{
		in:       opts.In,
		out:      opts.Out,
		start:    opts.Start,
		index:    opts.Index,
		finished: make(chan struct{}),
	}

	p.ctrl = session.NewController(opts.API, cfg)
	p.timer = countdown.New(cfg.Clock, p.ctrl.TimerExpired)
	p.timer.OnTick(p.onTick)
	p.widget = search.NewWidget(opts.Index, opts.SearchLimit, nil)

	collab := session.Collaborators{Timer: p.timer, Search: p.widget}
	if opts.Output != nil {
		p.audio = audio.NewPlayer(opts.Output, p.ctrl.AudioEnded)
		if n, ok := opts.Output.(EndNotifier); ok {
			n.SetOnEnded(p.audio.Ended)
		}
		collab.Audio = p.audio
	}
	p.ctrl.Attach(collab)
	p.ctrl.OnChange(p.onChange)
	return p
}

// Controller exposes the underlying session controller.
func (p *Player) Controller() *session.Controller {
	return p.ctrl
}

// Run plays until the session is finished, the input ends or ctx is done.
func (p *Player) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer p.Close()

	p.printf("%s\n", helpText)
	if err := view.Render(p.writer(), view.Current(p.ctrl.Snapshot())); err != nil {
		return err
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	p.readerDone = make(chan struct{})
	go func() {
		defer close(p.readerDone)
		scanner := bufio.NewScanner(p.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.finished:
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			quit, err := p.Execute(ctx, line)
			if err != nil {
				p.printf("! %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// Execute applies one line of input. It reports whether the player quit.
func (p *Player) Execute(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)

	if p.audio != nil {
		if err := p.audio.Interact(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to resume deferred audio")
		}
	}

	state := p.ctrl.State()
	switch {
	case line == "/quit":
		return true, nil
	case line == "/help":
		p.printf("%s\n", helpText)
		return false, nil
	case line == "/play":
		return false, nil
	case line == "/skip":
		return false, quiet(p.ctrl.SkipRound(ctx))
	case line == "/next" || (line == "" && state == models.SessionStateAwaitingAnswerDismissal):
		return false, quiet(p.ctrl.DismissAnswer(ctx))
	case line == "/start" || (line == "" && state == models.SessionStateNotStarted):
		return false, p.startSession(ctx)
	case line == "":
		return false, nil
	}

	if n, err := strconv.Atoi(line); err == nil {
		track, err := p.widget.SelectResult(n)
		if err != nil {
			return false, err
		}
		p.printf("> %s by %s\n", track.Name, track.ArtistName)
		return false, quiet(p.ctrl.SubmitGuess(ctx, track))
	}

	if err := p.index.Load(ctx); err != nil {
		return false, fmt.Errorf("failed to load catalog: %w", err)
	}
	results, err := p.widget.Search(line)
	if err != nil {
		return false, err
	}
	return false, view.RenderResults(p.writer(), results)
}

func (p *Player) startSession(ctx context.Context) error {
	err := p.ctrl.StartSession(ctx, p.start)
	var startErr *session.StartError
	if errors.As(err, &startErr) {
		if clients.IsStatus(err, http.StatusUnauthorized) {
			p.printf("! the backend rejected the stored token, run: musiguessr token set\n")
		}
		// The start modal shows it; clear it so the next attempt starts clean.
		p.ctrl.ClearNotice()
		return nil
	}
	if err != nil {
		return quiet(err)
	}
	go func() {
		if err := p.index.Load(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to preload catalog")
		}
	}()
	return nil
}

// Close stops playback and waits for a pending finish call.
func (p *Player) Close() {
	p.ctrl.Close()
	p.timer.Stop()
}

func (p *Player) onChange(snap session.Snapshot) {
	p.outMu.Lock()
	defer p.outMu.Unlock()

	changed := snap.State != p.lastState || snap.Session.CurrentRoundIndex != p.lastRound
	notice := snap.Notice != nil
	if !changed && !notice {
		return
	}
	p.lastState = snap.State
	p.lastRound = snap.Session.CurrentRoundIndex

	switch snap.State {
	case models.SessionStateStarting, models.SessionStateResolving, models.SessionStateFinishing:
		return
	case models.SessionStateInRound:
		if err := view.RenderHeader(p.out, view.Header(snap)); err != nil {
			log.Warn().Err(err).Msg("failed to render header")
		}
		return
	}

	if err := view.Render(p.out, view.Current(snap)); err != nil {
		log.Warn().Err(err).Msg("failed to render modal")
	}
	if snap.State == models.SessionStateFinished {
		p.finishedOnce.Do(func() { close(p.finished) })
	}
}

func (p *Player) onTick(_ uint64, remaining int) {
	if remaining > 5 && remaining%10 != 0 {
		return
	}
	p.printf("  %ds\n", remaining)
}

func (p *Player) printf(format string, args ...interface{}) {
	p.outMu.Lock()
	defer p.outMu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

// writer serializes writes with the asynchronous renderers.
func (p *Player) writer() io.Writer {
	return lockedWriter{p: p}
}

type lockedWriter struct {
	p *Player
}

func (w lockedWriter) Write(b []byte) (int, error) {
	w.p.outMu.Lock()
	defer w.p.outMu.Unlock()
	return w.p.out.Write(b)
}

// quiet drops the controller's no-op errors.
func quiet(err error) error {
	if session.Ignorable(err) {
		return nil
	}
	return err
}
