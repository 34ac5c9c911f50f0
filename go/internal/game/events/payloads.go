package events

import (
	"time"
)

// Event payload types published by the session controller

type EventType string

const (
	EventTypeSessionStarted  EventType = "SessionStarted"
	EventTypeRoundResolved   EventType = "RoundResolved"
	EventTypeSessionFinished EventType = "SessionFinished"
)

// SessionStartedPayload is the payload for a SessionStarted event
type SessionStartedPayload struct {
	SessionID   int64     `json:"session_id"`
	PlaylistID  *int64    `json:"playlist_id,omitempty"`
	Resumed     bool      `json:"resumed"`
	TotalRounds int       `json:"total_rounds"`
	StartedAt   time.Time `json:"started_at"`
}

// RoundResolvedPayload is the payload for a RoundResolved event
type RoundResolvedPayload struct {
	SessionID   int64     `json:"session_id"`
	Round       int       `json:"round"`
	Correct     bool      `json:"correct"`
	Skipped     bool      `json:"skipped"`
	EarnedScore int       `json:"earned_score"`
	TotalScore  int       `json:"total_score"`
	ElapsedMs   int64     `json:"elapsed_ms"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

// SessionFinishedPayload is the payload for a SessionFinished event
type SessionFinishedPayload struct {
	SessionID   int64     `json:"session_id"`
	TotalScore  int       `json:"total_score"`
	Rounds      int       `json:"rounds"`
	FinishedAt  time.Time `json:"finished_at"`
	FinishError string    `json:"finish_error,omitempty"`
}

// Event wraps a payload for publishing.
type Event struct {
	ID        string
	Type      EventType
	SessionID int64
	Payload   interface{}
}
