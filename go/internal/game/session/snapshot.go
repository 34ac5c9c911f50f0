package session

import (
	"github.com/mcdev12/musiguessr/go/internal/models"
)

// Notice is a user-facing message. Blocking notices must be dismissed
// before anything else happens.
type Notice struct {
	Message  string `json:"message"`
	Blocking bool   `json:"blocking"`
}

// Snapshot is a read-only copy of the controller state.
type Snapshot struct {
	State   models.SessionState   `json:"state"`
	Session models.GameSession    `json:"session"`
	Round   models.RoundState     `json:"round"`
	Pending *models.PendingAnswer `json:"pending,omitempty"`
	Notice  *Notice               `json:"notice,omitempty"`
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// State returns the current state machine state.
func (c *Controller) State() models.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:   c.state,
		Session: c.session,
		Round:   c.round,
	}
	if c.session.PlaylistID != nil {
		id := *c.session.PlaylistID
		snap.Session.PlaylistID = &id
	}
	if c.pending != nil {
		pending := *c.pending
		if c.pending.RevealedTrack != nil {
			track := *c.pending.RevealedTrack
			pending.RevealedTrack = &track
		}
		if c.pending.GuessedTrackID != nil {
			id := *c.pending.GuessedTrackID
			pending.GuessedTrackID = &id
		}
		snap.Pending = &pending
	}
	if c.notice != nil {
		notice := *c.notice
		snap.Notice = &notice
	}
	return snap
}
