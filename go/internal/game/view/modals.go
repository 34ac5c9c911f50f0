// Package view turns controller snapshots into the Start, Answer and Result
// modals. Everything here is a pure function of a session.Snapshot.
package view

import (
	"fmt"

	"github.com/mcdev12/musiguessr/go/internal/game/session"
	"github.com/mcdev12/musiguessr/go/internal/models"
)

// ModalKind identifies which modal is on screen.
type ModalKind string

const (
	ModalNone   ModalKind = "none"
	ModalStart  ModalKind = "start"
	ModalAnswer ModalKind = "answer"
	ModalResult ModalKind = "result"
)

// Modal is the presentational state of one dialog.
type Modal struct {
	Kind   ModalKind `json:"kind"`
	Title  string    `json:"title"`
	Lines  []string  `json:"lines,omitempty"`
	Action string    `json:"action,omitempty"`
	Busy   bool      `json:"busy"`
	Error  string    `json:"error,omitempty"`
}

// HUD is the in-round header.
type HUD struct {
	Round       int    `json:"round"`
	TotalRounds int    `json:"total_rounds"`
	Score       int    `json:"score"`
	Notice      string `json:"notice,omitempty"`
}

// Current picks the modal for the snapshot's state. InRound and Resolving show
// no modal.
func Current(snap session.Snapshot) Modal {
	switch snap.State {
	case models.SessionStateNotStarted, models.SessionStateStarting:
		return StartModal(snap)
	case models.SessionStateAwaitingAnswerDismissal:
		if snap.Pending != nil {
			return AnswerModal(snap)
		}
	case models.SessionStateFinishing, models.SessionStateFinished:
		return ResultModal(snap)
	}
	return Modal{Kind: ModalNone}
}

func StartModal(snap session.Snapshot) Modal {
	m := Modal{
		Kind:   ModalStart,
		Title:  "MusiGuessr",
		Lines:  []string{"Listen to the preview and find the track before the countdown runs out."},
		Action: "Start",
		Busy:   snap.State == models.SessionStateStarting,
	}
	if snap.Notice != nil && snap.Notice.Blocking {
		m.Error = snap.Notice.Message
		m.Action = "Retry"
	}
	return m
}

func AnswerModal(snap session.Snapshot) Modal {
	pending := snap.Pending
	if pending == nil {
		return Modal{Kind: ModalNone}
	}

	m := Modal{Kind: ModalAnswer, Action: "Continue"}
	switch {
	case pending.WasSkipped:
		m.Title = "Skipped"
	case pending.WasCorrect:
		m.Title = "Correct!"
	default:
		m.Title = "Wrong answer"
	}

	if track := pending.RevealedTrack; track != nil {
		m.Lines = append(m.Lines, fmt.Sprintf("It was %s", describeTrack(*track)))
	} else {
		m.Lines = append(m.Lines, "The answer could not be loaded.")
	}
	m.Lines = append(m.Lines,
		fmt.Sprintf("+%d points", pending.EarnedScore),
		fmt.Sprintf("Score: %d", snap.Session.CumulativeScore),
	)
	if pending.NextRoundTransition.GameFinished {
		m.Action = "See results"
	}
	return m
}

func ResultModal(snap session.Snapshot) Modal {
	return Modal{
		Kind:  ModalResult,
		Title: "Game over",
		Lines: []string{
			fmt.Sprintf("Final score: %d", snap.Session.CumulativeScore),
			fmt.Sprintf("Rounds played: %d", snap.Session.TotalRounds),
		},
		Action: "Close",
		Busy:   snap.State == models.SessionStateFinishing,
	}
}

// Header returns the in-round status line data.
func Header(snap session.Snapshot) HUD {
	hud := HUD{
		Round:       snap.Session.CurrentRoundIndex,
		TotalRounds: snap.Session.TotalRounds,
		Score:       snap.Session.CumulativeScore,
	}
	if snap.Notice != nil && !snap.Notice.Blocking {
		hud.Notice = snap.Notice.Message
	}
	return hud
}

func describeTrack(track models.Track) string {
	s := fmt.Sprintf("%q", track.Name)
	if track.ArtistName != "" {
		s += " by " + track.ArtistName
	}
	if track.GenreName != "" {
		s += fmt.Sprintf(" (%s)", track.GenreName)
	}
	return s
}
