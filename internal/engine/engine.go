/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package engine

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"time"
)

const (
	// DefaultMinParticipants avoids the degenerate two-player graph
	// where gifter and recipient sets are symmetric and trivial.
	DefaultMinParticipants = 3
)

// Rand is the randomness source used for shuffling candidates. It is
// satisfied by *math/rand/v2.Rand, so tests can pass a seeded PCG and
// assert exact pairings.
type Rand interface {
	IntN(n int) int
}

// Config tunes an Engine. Zero values fall back to defaults.
type Config struct {
	// MinParticipants is the StartGame threshold. Defaults to
	// DefaultMinParticipants.
	MinParticipants int

	// EnforceBudget rejects gifts that would push a recipient past the
	// room budget instead of tolerating a single-gift overshoot.
	EnforceBudget bool

	// Rand supplies shuffle randomness. Defaults to a PCG seeded from
	// crypto/rand.
	Rand Rand

	// Now supplies gift timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Engine computes assignments and settles gifts. Safe for sequential
// use; the caller serializes calls per room.
type Engine struct {
	minParticipants int
	enforceBudget   bool
	rng             Rand
	now             func() time.Time
}

func New(cfg Config) *Engine {
	e := &Engine{
		minParticipants: cfg.MinParticipants,
		enforceBudget:   cfg.EnforceBudget,
		rng:             cfg.Rand,
		now:             cfg.Now,
	}

	if e.minParticipants <= 0 {
		e.minParticipants = DefaultMinParticipants
	}

	if e.rng == nil {
		var seed [16]byte
		if _, err := crand.Read(seed[:]); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		e.rng = rand.New(rand.NewPCG(
			binary.LittleEndian.Uint64(seed[:8]),
			binary.LittleEndian.Uint64(seed[8:]),
		))
	}

	if e.now == nil {
		e.now = time.Now
	}

	return e
}

// shuffle is an in-place Fisher-Yates over usernames.
func (e *Engine) shuffle(names []string) {
	for i := len(names) - 1; i > 0; i-- {
		j := e.rng.IntN(i + 1)
		names[i], names[j] = names[j], names[i]
	}
}
