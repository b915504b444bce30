package engine

import (
	"errors"
)

var (
	// ErrInsufficientParticipants is returned by StartGame when the room
	// has fewer participants than the configured minimum.
	ErrInsufficientParticipants = errors.New("not enough participants to start the game")

	// ErrGameStarted is returned by StartGame if the game already began.
	ErrGameStarted = errors.New("game has already started")

	// ErrAssignmentNotFound is returned by SettleGift when no active
	// assignment matches the (gifter, recipient) pair. Stale client
	// state and double-submits both land here.
	ErrAssignmentNotFound = errors.New("no active assignment for that gifter and recipient")

	// ErrInvalidAmount is returned by SettleGift for non-positive amounts.
	ErrInvalidAmount = errors.New("gift amount must be a positive integer")

	// ErrBudgetExceeded is returned by SettleGift when a gift would push
	// the recipient past the room budget.
	ErrBudgetExceeded = errors.New("gift amount exceeds the recipient's remaining budget")
)
