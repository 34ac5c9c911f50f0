package models

import (
	"time"
)

// SessionState defines where a game session is in its round lifecycle.
type SessionState string

const (
	SessionStateNotStarted              SessionState = "NOT_STARTED"
	SessionStateStarting                SessionState = "STARTING"
	SessionStateInRound                 SessionState = "IN_ROUND"
	SessionStateResolving               SessionState = "RESOLVING"
	SessionStateAwaitingAnswerDismissal SessionState = "AWAITING_ANSWER_DISMISSAL"
	SessionStateFinishing               SessionState = "FINISHING"
	SessionStateFinished                SessionState = "FINISHED"
)

// GameSession represents one play-through.
type GameSession struct {
	SessionID         int64  `json:"session_id,omitempty"`
	PlaylistID        *int64 `json:"playlist_id,omitempty"`
	CurrentRoundIndex int    `json:"current_round_index"`
	TotalRounds       int    `json:"total_rounds"`
	CumulativeScore   int    `json:"cumulative_score"`
	IsStarted         bool   `json:"is_started"`
	IsOver            bool   `json:"is_over"`
}

// RoundState is replaced wholesale on every round transition.
type RoundState struct {
	AudioSourceURL      string    `json:"audio_source_url"`
	RoundStartTimestamp time.Time `json:"round_start_timestamp"`
	SearchResetToken    int       `json:"search_reset_token"`
}

// RoundTransition is the backend's description of what follows the current
// round. It is held untouched until the answer is dismissed.
type RoundTransition struct {
	NextRound      int    `json:"next_round"`
	GameFinished   bool   `json:"game_finished"`
	NextPreviewURL string `json:"next_preview_url"`
	TotalScore     int    `json:"total_score"`
}

// PendingAnswer is the outcome of a guess or skip awaiting dismissal.
type PendingAnswer struct {
	WasCorrect          bool            `json:"was_correct"`
	WasSkipped          bool            `json:"was_skipped"`
	EarnedScore         int             `json:"earned_score"`
	GuessedTrackID      *int64          `json:"guessed_track_id,omitempty"`
	RevealedTrack       *Track          `json:"revealed_track,omitempty"`
	NextRoundTransition RoundTransition `json:"-"`
}
