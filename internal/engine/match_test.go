package engine

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine(seed uint64) *Engine {
	return New(Config{
		Rand: rand.New(rand.NewPCG(seed, seed<<1|1)),
	})
}

func makeParticipants(usernames ...string) []Participant {
	ps := make([]Participant, 0, len(usernames))
	for _, u := range usernames {
		ps = append(ps, Participant{Username: u})
	}
	return ps
}

func TestComputeAssignments_CapacityBound(t *testing.T) {
	e := testEngine(1)

	for n := 2; n <= 9; n++ {
		names := make([]string, n)
		for i := range names {
			names[i] = string(rune('a' + i))
		}

		pairs := e.ComputeAssignments(makeParticipants(names...), 100, nil, nil)
		assert.LessOrEqual(t, len(pairs), n/2, "capacity bound for %d participants", n)
		assert.NotEmpty(t, pairs, "some pairing should form for %d participants", n)
	}
}

func TestComputeAssignments_NoSelfAssignment(t *testing.T) {
	for seed := uint64(1); seed <= 50; seed++ {
		e := testEngine(seed)

		pairs := e.ComputeAssignments(makeParticipants("a", "b", "c", "d", "e"), 100, nil, nil)
		for _, pair := range pairs {
			assert.NotEqual(t, pair.Gifter, pair.Recipient, "seed %d", seed)
		}
	}
}

func TestComputeAssignments_RecipientExclusivity(t *testing.T) {
	for seed := uint64(1); seed <= 50; seed++ {
		e := testEngine(seed)

		active := []Assignment{{Gifter: "a", Recipient: "b"}}
		participants := makeParticipants("a", "b", "c", "d", "e", "f")
		participants[0].IsGifter = true
		participants[0].Recipient = "b"

		pairs := e.ComputeAssignments(participants, 100, active, nil)

		seen := map[string]bool{"b": true}
		for _, pair := range pairs {
			assert.False(t, seen[pair.Recipient], "recipient %q assigned twice (seed %d)", pair.Recipient, seed)
			seen[pair.Recipient] = true
		}
	}
}

func TestComputeAssignments_FairnessTier(t *testing.T) {
	// While anyone still has spent == 0, no repeat gifter is selected.
	for seed := uint64(1); seed <= 50; seed++ {
		e := testEngine(seed)

		participants := makeParticipants("a", "b", "c", "d", "e", "f")
		participants[0].Spent = 30
		participants[1].Spent = 10

		pairs := e.ComputeAssignments(participants, 100, nil, nil)
		require.NotEmpty(t, pairs)

		for _, pair := range pairs {
			assert.NotContains(t, []string{"a", "b"}, pair.Gifter,
				"repeat gifter selected while first-timers remain (seed %d)", seed)
		}
	}
}

func TestComputeAssignments_FallbackTier(t *testing.T) {
	// Once everyone has gifted, repeat gifters are allowed.
	e := testEngine(7)

	participants := makeParticipants("a", "b", "c", "d")
	for i := range participants {
		participants[i].Spent = 10
	}

	pairs := e.ComputeAssignments(participants, 100, nil, nil)
	assert.NotEmpty(t, pairs)
}

func TestComputeAssignments_ExcludedNeverSelected(t *testing.T) {
	for seed := uint64(1); seed <= 50; seed++ {
		e := testEngine(seed)

		pairs := e.ComputeAssignments(makeParticipants("a", "b", "c", "d"), 100, nil, map[string]bool{
			"a": true,
		})
		for _, pair := range pairs {
			assert.NotEqual(t, "a", pair.Gifter, "seed %d", seed)
		}
	}
}

func TestComputeAssignments_SkipsFullRecipients(t *testing.T) {
	for seed := uint64(1); seed <= 50; seed++ {
		e := testEngine(seed)

		participants := makeParticipants("a", "b", "c", "d")
		participants[1].Received = 100

		pairs := e.ComputeAssignments(participants, 100, nil, nil)
		for _, pair := range pairs {
			assert.NotEqual(t, "b", pair.Recipient, "full recipient chosen (seed %d)", seed)
		}
	}
}

func TestComputeAssignments_NoCapacityLeft(t *testing.T) {
	e := testEngine(3)

	active := []Assignment{{Gifter: "a", Recipient: "b"}}
	participants := makeParticipants("a", "b", "c")
	participants[0].IsGifter = true
	participants[0].Recipient = "b"

	pairs := e.ComputeAssignments(participants, 100, active, nil)
	assert.Empty(t, pairs, "floor(3/2)=1 slot is already filled")
}

func TestComputeAssignments_NoEligibleRecipients(t *testing.T) {
	e := testEngine(3)

	participants := makeParticipants("a", "b", "c", "d")
	for i := range participants {
		participants[i].Received = 100
	}

	pairs := e.ComputeAssignments(participants, 100, nil, nil)
	assert.Empty(t, pairs)
}

func TestComputeAssignments_NoCandidateGifters(t *testing.T) {
	e := testEngine(3)

	pairs := e.ComputeAssignments(makeParticipants("a", "b", "c", "d"), 100, nil, map[string]bool{
		"a": true, "b": true, "c": true, "d": true,
	})
	assert.Empty(t, pairs)
}

func TestComputeAssignments_SeededReplay(t *testing.T) {
	// The same seed over the same inputs yields identical pairings, so
	// hosts can reproduce a round for debugging.
	participants := makeParticipants("a", "b", "c", "d", "e", "f", "g")

	first := testEngine(42).ComputeAssignments(participants, 100, nil, nil)
	second := testEngine(42).ComputeAssignments(participants, 100, nil, nil)

	assert.Equal(t, first, second)
}
