/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package engine

import (
	"github.com/google/uuid"
)

// StartGame begins the exchange: it computes the first round of
// assignments and marks the room started. Fails below the configured
// minimum participant count. The input room is not mutated.
func (e *Engine) StartGame(room *Room) (*Room, error) {
	if room.GameStarted {
		return nil, ErrGameStarted
	}
	if len(room.Participants) < e.minParticipants {
		return nil, ErrInsufficientParticipants
	}

	next := room.Clone()
	next.GameStarted = true

	pairs := e.ComputeAssignments(next.Participants, next.Budget, nil, nil)
	applyAssignments(next, pairs)

	return next, nil
}

// SettleGift records a completed gift against an active assignment and
// backfills new assignments up to capacity, as one state transition.
// On any validation failure the input room is left untouched.
func (e *Engine) SettleGift(room *Room, gifter, recipient string, amount int, description string) (*Room, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	matched := -1
	for i, a := range room.ActiveAssignments {
		if a.Gifter == gifter && a.Recipient == recipient {
			matched = i
			break
		}
	}
	if matched == -1 {
		return nil, ErrAssignmentNotFound
	}

	if e.enforceBudget {
		if p := room.Participant(recipient); p != nil && p.Received+amount > room.Budget {
			return nil, ErrBudgetExceeded
		}
	}

	next := room.Clone()

	next.Participant(gifter).Spent += amount
	next.Participant(recipient).Received += amount

	next.ActiveAssignments = append(
		next.ActiveAssignments[:matched],
		next.ActiveAssignments[matched+1:]...,
	)

	giver := next.Participant(gifter)
	giver.IsGifter = false
	giver.Recipient = ""

	next.Gifts = append(next.Gifts, Gift{
		ID:          uuid.NewString(),
		Seq:         len(next.Gifts) + 1,
		Gifter:      gifter,
		Recipient:   recipient,
		Description: description,
		Amount:      amount,
		Timestamp:   e.now(),
		Hidden:      !next.Revealed,
	})

	// The settling gifter is barred from immediately regaining gifter
	// status this round.
	pairs := e.ComputeAssignments(next.Participants, next.Budget, next.ActiveAssignments, map[string]bool{
		gifter: true,
	})
	applyAssignments(next, pairs)

	if e.ShouldReveal(next) {
		reveal(next)
	}

	return next, nil
}
