package engine

// ShouldReveal reports whether every participant has received the full
// budget, the condition under which all gift descriptions become
// visible. The check runs after every settlement; once a room reveals
// it stays revealed.
func (e *Engine) ShouldReveal(room *Room) bool {
	if room.Revealed {
		return true
	}
	if !room.GameStarted || len(room.Participants) == 0 {
		return false
	}

	for _, p := range room.Participants {
		if p.Received < room.Budget {
			return false
		}
	}

	return true
}

// reveal flips every gift visible, irreversibly.
func reveal(room *Room) {
	room.Revealed = true
	for i := range room.Gifts {
		room.Gifts[i].Hidden = false
	}
}
