package view

import (
	"bytes"
	"testing"

	"github.com/mcdev12/musiguessr/go/internal/game/session"
	"github.com/mcdev12/musiguessr/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrent(t *testing.T) {
	pending := &models.PendingAnswer{WasCorrect: true, EarnedScore: 100}

	tests := []struct {
		name string
		snap session.Snapshot
		want ModalKind
	}{
		{name: "not started", snap: session.Snapshot{State: models.SessionStateNotStarted}, want: ModalStart},
		{name: "starting", snap: session.Snapshot{State: models.SessionStateStarting}, want: ModalStart},
		{name: "in round", snap: session.Snapshot{State: models.SessionStateInRound}, want: ModalNone},
		{name: "resolving", snap: session.Snapshot{State: models.SessionStateResolving}, want: ModalNone},
		{name: "awaiting answer", snap: session.Snapshot{State: models.SessionStateAwaitingAnswerDismissal, Pending: pending}, want: ModalAnswer},
		{name: "finishing", snap: session.Snapshot{State: models.SessionStateFinishing}, want: ModalResult},
		{name: "finished", snap: session.Snapshot{State: models.SessionStateFinished}, want: ModalResult},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Current(tt.snap).Kind)
		})
	}
}

func TestStartModal_ShowsBlockingNotice(t *testing.T) {
	m := StartModal(session.Snapshot{
		State:  models.SessionStateNotStarted,
		Notice: &session.Notice{Message: "failed to create game: boom", Blocking: true},
	})

	assert.Equal(t, "failed to create game: boom", m.Error)
	assert.Equal(t, "Retry", m.Action)
	assert.False(t, m.Busy)
}

func TestAnswerModal(t *testing.T) {
	tests := []struct {
		name      string
		pending   models.PendingAnswer
		wantTitle string
		wantLine  string
		action    string
	}{
		{
			name: "correct with reveal",
			pending: models.PendingAnswer{
				WasCorrect:    true,
				EarnedScore:   100,
				RevealedTrack: &models.Track{ID: 100, Name: "Song A", ArtistName: "Artist A"},
			},
			wantTitle: "Correct!",
			wantLine:  `It was "Song A" by Artist A`,
			action:    "Continue",
		},
		{
			name:      "wrong without reveal",
			pending:   models.PendingAnswer{},
			wantTitle: "Wrong answer",
			wantLine:  "The answer could not be loaded.",
			action:    "Continue",
		},
		{
			name: "skipped last round",
			pending: models.PendingAnswer{
				WasSkipped:          true,
				NextRoundTransition: models.RoundTransition{GameFinished: true},
			},
			wantTitle: "Skipped",
			wantLine:  "+0 points",
			action:    "See results",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pending := tt.pending
			m := AnswerModal(session.Snapshot{
				State:   models.SessionStateAwaitingAnswerDismissal,
				Session: models.GameSession{CumulativeScore: 250},
				Pending: &pending,
			})
			assert.Equal(t, ModalAnswer, m.Kind)
			assert.Equal(t, tt.wantTitle, m.Title)
			assert.Contains(t, m.Lines, tt.wantLine)
			assert.Contains(t, m.Lines, "Score: 250")
			assert.Equal(t, tt.action, m.Action)
		})
	}
}

func TestResultModal(t *testing.T) {
	m := ResultModal(session.Snapshot{
		State:   models.SessionStateFinished,
		Session: models.GameSession{CumulativeScore: 150, TotalRounds: 5, IsOver: true},
	})

	assert.Equal(t, []string{"Final score: 150", "Rounds played: 5"}, m.Lines)
	assert.False(t, m.Busy)
}

func TestHeaderHidesBlockingNotice(t *testing.T) {
	snap := session.Snapshot{
		Session: models.GameSession{CurrentRoundIndex: 2, TotalRounds: 5, CumulativeScore: 100},
		Notice:  &session.Notice{Message: "could not guess, try again"},
	}
	assert.Equal(t, HUD{Round: 2, TotalRounds: 5, Score: 100, Notice: "could not guess, try again"}, Header(snap))

	snap.Notice.Blocking = true
	assert.Empty(t, Header(snap).Notice)
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Modal{Kind: ModalNone}))
	assert.Empty(t, buf.String())

	require.NoError(t, Render(&buf, Modal{
		Kind:   ModalAnswer,
		Title:  "Correct!",
		Lines:  []string{"+100 points"},
		Action: "Continue",
	}))
	out := buf.String()
	assert.Contains(t, out, "  Correct!\n")
	assert.Contains(t, out, "  +100 points\n")
	assert.Contains(t, out, "  [Continue]\n")

	buf.Reset()
	require.NoError(t, RenderHeader(&buf, HUD{Round: 1, TotalRounds: 5, Score: 0}))
	assert.Equal(t, "Round 1/5  Score 0\n", buf.String())

	buf.Reset()
	require.NoError(t, RenderResults(&buf, []models.Track{{ID: 1, Name: "Heroes", ArtistName: "David Bowie"}}))
	assert.Equal(t, "   1. \"Heroes\" by David Bowie\n", buf.String())
}
