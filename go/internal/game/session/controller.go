// Package session implements the round-based game session state machine.
//
// A Controller owns the GameSession, the current RoundState and the
// PendingAnswer. Three independent sources can resolve a round: countdown
// expiry, the end of the audio track, and the player (guess or skip). All of
// them go through the same guarded entry points, where checking the state and
// moving out of InRound happen under one lock, so a round is resolved by
// exactly one backend call no matter how the triggers interleave.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/musiguessr/go/clients/musiguessr_client"
	"github.com/mcdev12/musiguessr/go/internal/game/events"
	"github.com/mcdev12/musiguessr/go/internal/game/search"
	"github.com/mcdev12/musiguessr/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	DefaultRoundSeconds  = 30
	DefaultFinishTimeout = 10 * time.Second

	eventBufferSize = 64
	publishTimeout  = 5 * time.Second
)

// Round outcomes reported to Metrics.
const (
	OutcomeCorrect = "correct"
	OutcomeWrong   = "wrong"
	OutcomeSkipped = "skipped"
)

// Config holds the controller's tunables and optional dependencies.
type Config struct {
	Clock         clockwork.Clock
	RoundSeconds  int
	FinishTimeout time.Duration
	Publisher     events.Publisher
	Metrics       Metrics
}

func DefaultConfig() Config {
	return Config{
		Clock:         clockwork.NewRealClock(),
		RoundSeconds:  DefaultRoundSeconds,
		FinishTimeout: DefaultFinishTimeout,
		Publisher:     events.NoOpPublisher{},
		Metrics:       NoOpMetrics{},
	}
}

// StartRequest selects how a session begins. When SessionID is set (a
// tournament match that already exists) creation is skipped.
type StartRequest struct {
	PlaylistID *int64
	SessionID  *int64
}

// Collaborators are the components the controller fans round state out to.
// Any of them may be nil.
type Collaborators struct {
	Timer  Timer
	Audio  Audio
	Search SearchBox
}

type Controller struct {
	api       GameAPI
	clock     clockwork.Clock
	seconds   int
	finishTTL time.Duration
	publisher events.Publisher
	metrics   Metrics

	ctx       context.Context
	cancel    context.CancelFunc
	finishing sync.WaitGroup

	// Events are published from a single goroutine so a slow broker never
	// holds up a state change.
	outbox       chan events.Event
	outboxMu     sync.Mutex
	outboxClosed bool
	publishing   sync.WaitGroup

	mu        sync.Mutex
	collab    Collaborators
	listeners []func(Snapshot)
	state     models.SessionState
	session   models.GameSession
	round     models.RoundState
	pending   *models.PendingAnswer
	timerGen  uint64
	audioGen  uint64
	notice    *Notice

	// triggerHook runs before an automatic trigger is resolved. Tests use it
	// to interleave other calls.
	triggerHook func(source string)
}

// NewController creates a controller in the NotStarted state.
func NewController(api GameAPI, cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.RoundSeconds <= 0 {
		cfg.RoundSeconds = DefaultRoundSeconds
	}
	if cfg.FinishTimeout <= 0 {
		cfg.FinishTimeout = DefaultFinishTimeout
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NoOpPublisher{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NoOpMetrics{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		api:       api,
		clock:     cfg.Clock,
		seconds:   cfg.RoundSeconds,
		finishTTL: cfg.FinishTimeout,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		ctx:       ctx,
		cancel:    cancel,
		outbox:    make(chan events.Event, eventBufferSize),
		state:     models.SessionStateNotStarted,
	}
	c.publishing.Add(1)
	go c.publishLoop()
	return c
}

// Attach wires the round collaborators. It is called once, before StartSession.
func (c *Controller) Attach(collab Collaborators) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collab = collab
}

// OnChange registers a listener called with a fresh snapshot after every
// state change. Listeners run outside the controller lock.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// StartSession creates (unless resuming) and starts a session. On failure the
// controller stays NotStarted and a blocking notice is raised.
func (c *Controller) StartSession(ctx context.Context, req StartRequest) error {
	c.mu.Lock()
	if c.state != models.SessionStateNotStarted {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.state = models.SessionStateStarting
	c.notice = nil
	c.mu.Unlock()
	c.notify()

	var sessionID int64
	resumed := req.SessionID != nil
	if resumed {
		sessionID = *req.SessionID
	} else {
		created, err := c.api.CreateGame(ctx, req.PlaylistID)
		if err != nil {
			return c.failStart("create", err)
		}
		sessionID = created.ID
	}

	started, err := c.api.StartGame(ctx, sessionID)
	if err != nil {
		return c.failStart("start", err)
	}

	c.mu.Lock()
	c.session = models.GameSession{
		SessionID:         sessionID,
		PlaylistID:        req.PlaylistID,
		CurrentRoundIndex: started.CurrentRound,
		TotalRounds:       started.TotalRounds,
		IsStarted:         true,
	}
	c.round = models.RoundState{
		AudioSourceURL:      started.NextPreviewURL,
		RoundStartTimestamp: c.clock.Now(),
		SearchResetToken:    1,
	}
	c.state = models.SessionStateInRound
	c.armRoundLocked()
	c.mu.Unlock()

	log.Info().
		Int64("session_id", sessionID).
		Bool("resumed", resumed).
		Int("round", started.CurrentRound).
		Int("total_rounds", started.TotalRounds).
		Msg("game session started")

	c.metrics.SessionStarted(resumed)
	c.publish(events.NewEvent(events.EventTypeSessionStarted, sessionID, events.SessionStartedPayload{
		SessionID:   sessionID,
		PlaylistID:  req.PlaylistID,
		Resumed:     resumed,
		TotalRounds: started.TotalRounds,
		StartedAt:   c.clock.Now(),
	}))
	c.playAudio(ctx)
	c.notify()
	return nil
}

func (c *Controller) failStart(step string, err error) error {
	startErr := &StartError{Step: step, Err: err}

	c.mu.Lock()
	c.state = models.SessionStateNotStarted
	c.session = models.GameSession{}
	c.notice = &Notice{Message: startErr.Error(), Blocking: true}
	c.mu.Unlock()

	log.Error().Err(err).Str("step", step).Msg("failed to start game session")
	c.metrics.SessionStartFailed(step)
	c.notify()
	return startErr
}

// SubmitGuess resolves the current round with the selected track. It is a
// no-op returning ErrNotInRound unless the round is open.
func (c *Controller) SubmitGuess(ctx context.Context, track models.Track) error {
	id := track.ID
	return c.resolve(ctx, &id, nil)
}

// SkipRound resolves the current round without a guess. Countdown expiry,
// audio end and the skip button all end up here.
func (c *Controller) SkipRound(ctx context.Context) error {
	return c.resolve(ctx, nil, nil)
}

// roundTrigger is an automatic skip request armed for one round.
type roundTrigger struct {
	source     string
	generation uint64
}

// resolve moves the open round to Resolving and reports it to the backend.
// A non-nil trigger must carry the generation of the round that is open, and
// that check happens in the same critical section as the state transition.
func (c *Controller) resolve(ctx context.Context, guessID *int64, trigger *roundTrigger) error {
	c.mu.Lock()
	if c.session.IsOver {
		c.mu.Unlock()
		return ErrSessionOver
	}
	if c.state != models.SessionStateInRound {
		c.mu.Unlock()
		return ErrNotInRound
	}
	if trigger != nil && !c.currentTriggerLocked(trigger) {
		c.mu.Unlock()
		return ErrStaleTrigger
	}
	c.state = models.SessionStateResolving
	sessionID := c.session.SessionID
	roundIndex := c.session.CurrentRoundIndex
	elapsed := c.clock.Since(c.round.RoundStartTimestamp)
	if c.collab.Timer != nil {
		c.collab.Timer.Stop()
	}
	gens := [2]uint64{c.timerGen, c.audioGen}
	c.timerGen = 0
	c.audioGen = 0
	c.mu.Unlock()
	c.notify()

	step := "skip"
	var (
		result musiguessr_client.RoundResult
		err    error
	)
	if guessID != nil {
		step = "guess"
		result, err = c.api.Guess(ctx, sessionID, musiguessr_client.GuessRequest{
			MusicID:   *guessID,
			ElapsedMs: elapsed.Milliseconds(),
		})
	} else {
		result, err = c.api.Skip(ctx, sessionID)
	}
	if err != nil {
		return c.failResolve(step, sessionID, roundIndex, gens, err)
	}

	revealed := c.lookupTrack(ctx, sessionID, result.CorrectMusicID)

	skipped := guessID == nil
	pending := &models.PendingAnswer{
		WasCorrect:     result.Correct && !skipped,
		WasSkipped:     skipped,
		EarnedScore:    result.EarnedScore,
		GuessedTrackID: guessID,
		RevealedTrack:  revealed,
		NextRoundTransition: models.RoundTransition{
			NextRound:      result.NextRound,
			GameFinished:   result.GameFinished,
			NextPreviewURL: result.NextPreviewURL,
			TotalScore:     result.TotalScore,
		},
	}

	c.mu.Lock()
	c.session.CumulativeScore = result.TotalScore
	c.pending = pending
	c.state = models.SessionStateAwaitingAnswerDismissal
	c.mu.Unlock()

	outcome := OutcomeWrong
	switch {
	case pending.WasSkipped:
		outcome = OutcomeSkipped
	case pending.WasCorrect:
		outcome = OutcomeCorrect
	}
	log.Info().
		Int64("session_id", sessionID).
		Int("round", roundIndex).
		Str("outcome", outcome).
		Int("earned_score", result.EarnedScore).
		Int("total_score", result.TotalScore).
		Msg("round resolved")

	c.metrics.RoundResolved(outcome)
	c.publish(events.NewEvent(events.EventTypeRoundResolved, sessionID, events.RoundResolvedPayload{
		SessionID:   sessionID,
		Round:       roundIndex,
		Correct:     pending.WasCorrect,
		Skipped:     pending.WasSkipped,
		EarnedScore: result.EarnedScore,
		TotalScore:  result.TotalScore,
		ElapsedMs:   elapsed.Milliseconds(),
		ResolvedAt:  c.clock.Now(),
	}))
	c.notify()
	return nil
}

// failResolve reopens the round after a failed guess or skip so the player
// can try again. The countdown is not re-armed, but the round's generations
// are restored so the end of its audio still skips it.
func (c *Controller) failResolve(step string, sessionID int64, roundIndex int, gens [2]uint64, err error) error {
	c.mu.Lock()
	if c.state == models.SessionStateResolving {
		c.state = models.SessionStateInRound
		c.timerGen, c.audioGen = gens[0], gens[1]
		c.notice = &Notice{Message: fmt.Sprintf("could not %s, try again", step)}
	}
	c.mu.Unlock()

	log.Error().
		Err(err).
		Int64("session_id", sessionID).
		Int("round", roundIndex).
		Str("step", step).
		Msg("failed to resolve round")
	c.metrics.BackendFailure(step)
	c.notify()
	return fmt.Errorf("failed to %s round %d: %w", step, roundIndex, err)
}

// lookupTrack fetches the revealed track. Failure leaves it absent.
func (c *Controller) lookupTrack(ctx context.Context, sessionID int64, musicID int64) *models.Track {
	if musicID == 0 {
		return nil
	}
	music, err := c.api.GetMusic(ctx, musicID)
	if err != nil {
		log.Warn().
			Err(err).
			Int64("session_id", sessionID).
			Int64("music_id", musicID).
			Msg("failed to look up revealed track")
		c.metrics.BackendFailure("lookup")
		return nil
	}
	track := search.TrackFromMusic(music)
	return &track
}

// DismissAnswer consumes the pending answer and either opens the next round
// or finishes the session.
func (c *Controller) DismissAnswer(ctx context.Context) error {
	c.mu.Lock()
	if c.session.IsOver {
		c.mu.Unlock()
		return ErrSessionOver
	}
	if c.state != models.SessionStateAwaitingAnswerDismissal || c.pending == nil {
		c.mu.Unlock()
		return ErrNoPendingAnswer
	}
	transition := c.pending.NextRoundTransition
	c.pending = nil
	c.notice = nil
	sessionID := c.session.SessionID

	if transition.GameFinished {
		c.session.IsOver = true
		c.session.CumulativeScore = transition.TotalScore
		c.state = models.SessionStateFinishing
		c.stopCollaboratorsLocked()
		c.finishing.Add(1)
		c.mu.Unlock()

		go c.finish(ctx, sessionID)
		c.notify()
		return nil
	}

	next := transition.NextRound
	if next <= c.session.CurrentRoundIndex {
		log.Warn().
			Int64("session_id", sessionID).
			Int("current_round", c.session.CurrentRoundIndex).
			Int("next_round", next).
			Msg("backend did not advance the round index, advancing locally")
		next = c.session.CurrentRoundIndex + 1
	}
	c.session.CurrentRoundIndex = next
	c.round = models.RoundState{
		AudioSourceURL:      transition.NextPreviewURL,
		RoundStartTimestamp: c.clock.Now(),
		SearchResetToken:    c.round.SearchResetToken + 1,
	}
	c.state = models.SessionStateInRound
	c.armRoundLocked()
	c.mu.Unlock()

	log.Debug().Int64("session_id", sessionID).Int("round", next).Msg("next round")
	c.playAudio(ctx)
	c.notify()
	return nil
}

// finish closes the session on the backend. The outcome only affects logging;
// the session is Finished either way.
func (c *Controller) finish(ctx context.Context, sessionID int64) {
	defer c.finishing.Done()

	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.finishTTL)
	defer cancel()

	err := c.api.FinishGame(finishCtx, sessionID)
	if err != nil {
		log.Error().Err(err).Int64("session_id", sessionID).Msg("failed to finish game session")
		c.metrics.BackendFailure("finish")
	}

	c.mu.Lock()
	c.state = models.SessionStateFinished
	total := c.session.CumulativeScore
	rounds := c.session.CurrentRoundIndex
	c.mu.Unlock()

	log.Info().Int64("session_id", sessionID).Int("total_score", total).Msg("game session finished")

	payload := events.SessionFinishedPayload{
		SessionID:  sessionID,
		TotalScore: total,
		Rounds:     rounds,
		FinishedAt: c.clock.Now(),
	}
	if err != nil {
		payload.FinishError = err.Error()
	}
	c.metrics.SessionFinished(err != nil)
	c.publish(events.NewEvent(events.EventTypeSessionFinished, sessionID, payload))
	c.notify()
}

const (
	triggerCountdown  = "countdown"
	triggerAudioEnded = "audio_ended"
)

// TimerExpired is the countdown's expiry callback.
func (c *Controller) TimerExpired(generation uint64) {
	c.trigger(&roundTrigger{source: triggerCountdown, generation: generation})
}

// AudioEnded is the audio player's end-of-track callback.
func (c *Controller) AudioEnded(generation uint64) {
	c.trigger(&roundTrigger{source: triggerAudioEnded, generation: generation})
}

func (c *Controller) trigger(t *roundTrigger) {
	if c.triggerHook != nil {
		c.triggerHook(t.source)
	}
	err := c.resolve(c.ctx, nil, t)
	switch {
	case errors.Is(err, ErrStaleTrigger):
		log.Debug().
			Str("trigger", t.source).
			Uint64("generation", t.generation).
			Msg("ignoring trigger from an earlier round")
	case err != nil && !Ignorable(err):
		log.Error().Err(err).Str("trigger", t.source).Msg("automatic skip failed")
	}
}

// currentTriggerLocked reports whether t was armed for the open round.
func (c *Controller) currentTriggerLocked(t *roundTrigger) bool {
	switch t.source {
	case triggerCountdown:
		return t.generation != 0 && t.generation == c.timerGen
	case triggerAudioEnded:
		return t.generation != 0 && t.generation == c.audioGen
	}
	return false
}

// ClearNotice dismisses the current notice.
func (c *Controller) ClearNotice() {
	c.mu.Lock()
	c.notice = nil
	c.mu.Unlock()
	c.notify()
}

// Wait blocks until a background finish call has returned.
func (c *Controller) Wait() {
	c.finishing.Wait()
}

// Close stops the collaborators, cancels automatic triggers, waits for a
// pending finish call and flushes queued events. It is safe to call twice.
func (c *Controller) Close() {
	c.cancel()
	c.mu.Lock()
	c.stopCollaboratorsLocked()
	c.mu.Unlock()
	c.finishing.Wait()

	c.outboxMu.Lock()
	if !c.outboxClosed {
		c.outboxClosed = true
		close(c.outbox)
	}
	c.outboxMu.Unlock()
	c.publishing.Wait()
}

// armRoundLocked fans the current round out to the collaborators. The
// generations they return identify this round's callbacks.
func (c *Controller) armRoundLocked() {
	if c.collab.Timer != nil {
		c.timerGen = c.collab.Timer.Reset(c.seconds)
	}
	if c.collab.Audio != nil {
		c.audioGen = c.collab.Audio.Reset(c.round.AudioSourceURL)
	}
	if c.collab.Search != nil {
		c.collab.Search.Sync(c.round.SearchResetToken)
	}
}

func (c *Controller) stopCollaboratorsLocked() {
	if c.collab.Timer != nil {
		c.collab.Timer.Stop()
	}
	if c.collab.Audio != nil {
		c.collab.Audio.Stop()
	}
	c.timerGen = 0
	c.audioGen = 0
}

func (c *Controller) playAudio(ctx context.Context) {
	c.mu.Lock()
	player := c.collab.Audio
	c.mu.Unlock()
	if player == nil {
		return
	}
	if err := player.Play(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to start round audio")
	}
}

// publish queues an event without blocking. A full queue drops the event.
func (c *Controller) publish(event events.Event) {
	c.outboxMu.Lock()
	defer c.outboxMu.Unlock()
	if c.outboxClosed {
		return
	}
	select {
	case c.outbox <- event:
	default:
		log.Warn().
			Str("event_type", string(event.Type)).
			Int64("session_id", event.SessionID).
			Msg("event queue full, dropping game event")
	}
}

func (c *Controller) publishLoop() {
	defer c.publishing.Done()
	for event := range c.outbox {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := c.publisher.Publish(ctx, event)
		cancel()
		if err != nil {
			log.Warn().
				Err(err).
				Str("event_type", string(event.Type)).
				Int64("session_id", event.SessionID).
				Msg("failed to publish game event")
		}
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	listeners := append([]func(Snapshot){}, c.listeners...)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
