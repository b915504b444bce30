/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package engine

import (
	"time"
)

// Participant holds the data we store per player in a room.
type Participant struct {
	Username  string `json:"username"`
	Spent     int    `json:"spent"`
	Received  int    `json:"received"`
	IsGifter  bool   `json:"is_gifter"`
	Recipient string `json:"recipient,omitempty"` // set iff IsGifter
}

// Assignment pairs a gifter with a recipient for the current round.
// At most one assignment per gifter, and no recipient appears in two
// active assignments at once.
type Assignment struct {
	Gifter    string `json:"gifter"`
	Recipient string `json:"recipient"`
}

// Gift is an append-only ledger entry. Immutable once recorded, except
// Hidden flips to false when the room reveals.
type Gift struct {
	ID          string    `json:"id"`
	Seq         int       `json:"seq"`
	Gifter      string    `json:"gifter"`
	Recipient   string    `json:"recipient"`
	Description string    `json:"description"`
	Amount      int       `json:"amount"`
	Timestamp   time.Time `json:"timestamp"`
	Hidden      bool      `json:"hidden"`
}

// Room is the aggregate the engine transforms. Revision is bumped by
// the store on every committed write so concurrent writers can be
// detected and retried.
type Room struct {
	ID                string        `json:"id"`
	Budget            int           `json:"budget"`
	GameStarted       bool          `json:"game_started"`
	Revealed          bool          `json:"revealed"`
	Participants      []Participant `json:"participants"`
	Gifts             []Gift        `json:"gifts"`
	ActiveAssignments []Assignment  `json:"active_assignments"`
	Revision          int64         `json:"revision"`
}

// Clone deep-copies the room so a transition can be applied without
// touching the caller's copy.
func (r *Room) Clone() *Room {
	next := *r
	next.Participants = make([]Participant, len(r.Participants))
	copy(next.Participants, r.Participants)
	next.Gifts = make([]Gift, len(r.Gifts))
	copy(next.Gifts, r.Gifts)
	next.ActiveAssignments = make([]Assignment, len(r.ActiveAssignments))
	copy(next.ActiveAssignments, r.ActiveAssignments)

	return &next
}

// Participant returns a pointer into r.Participants for the given
// username, or nil if absent.
func (r *Room) Participant(username string) *Participant {
	for i := range r.Participants {
		if r.Participants[i].Username == username {
			return &r.Participants[i]
		}
	}

	return nil
}
