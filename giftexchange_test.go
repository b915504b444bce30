package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/giftbox/internal/engine"
	"github.com/Seednode/giftbox/internal/store"
)

func testHub() *Hub {
	return newHub("testroom", store.New(), engine.New(engine.Config{}))
}

func maskedRoom() *engine.Room {
	return &engine.Room{
		ID:     "testroom",
		Budget: 100,
		Participants: []engine.Participant{
			{Username: "alice", Spent: 40, IsGifter: false},
			{Username: "bob", Received: 40, IsGifter: true, Recipient: "carol"},
			{Username: "carol"},
		},
		Gifts: []engine.Gift{
			{
				Seq:         1,
				Gifter:      "alice",
				Recipient:   "bob",
				Description: "wool socks",
				Amount:      40,
				Timestamp:   time.Now(),
				Hidden:      true,
			},
		},
		ActiveAssignments: []engine.Assignment{
			{Gifter: "bob", Recipient: "carol"},
		},
		GameStarted: true,
	}
}

func TestStateFor_MasksHiddenGifts(t *testing.T) {
	h := testHub()
	room := maskedRoom()

	state := h.stateFor(room, "carol")
	require.Len(t, state.Gifts, 1)
	assert.Empty(t, state.Gifts[0].Description, "hidden descriptions are blanked for other players")
	assert.Equal(t, 40, state.Gifts[0].Amount, "amounts stay visible so balances render")
	assert.True(t, state.Gifts[0].Hidden)
}

func TestStateFor_GifterSeesOwnGift(t *testing.T) {
	h := testHub()
	room := maskedRoom()

	state := h.stateFor(room, "alice")
	require.Len(t, state.Gifts, 1)
	assert.Equal(t, "wool socks", state.Gifts[0].Description)
}

func TestStateFor_RevealedGiftsVisibleToAll(t *testing.T) {
	h := testHub()
	room := maskedRoom()
	room.Revealed = true
	room.Gifts[0].Hidden = false

	for _, viewer := range []string{"alice", "bob", "carol"} {
		state := h.stateFor(room, viewer)
		require.Len(t, state.Gifts, 1)
		assert.Equal(t, "wool socks", state.Gifts[0].Description, "viewer %q", viewer)
	}
}

func TestStateFor_AssignmentIsPrivate(t *testing.T) {
	h := testHub()
	room := maskedRoom()

	assert.Equal(t, "carol", h.stateFor(room, "bob").YourRecipient)
	assert.Empty(t, h.stateFor(room, "alice").YourRecipient)
	assert.Empty(t, h.stateFor(room, "carol").YourRecipient)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		port:            8080,
		defaultBudget:   100,
		minParticipants: 3,
	}
	assert.NoError(t, valid.validate())

	badPort := valid
	badPort.port = 0
	assert.Error(t, badPort.validate())

	badBudget := valid
	badBudget.defaultBudget = 0
	assert.Error(t, badBudget.validate())

	badMinimum := valid
	badMinimum.minParticipants = 1
	assert.Error(t, badMinimum.validate())

	tlsMismatch := valid
	tlsMismatch.tlsCert = "cert.pem"
	assert.Error(t, tlsMismatch.validate())
}
