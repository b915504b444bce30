/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package engine

// ComputeAssignments selects new gifter→recipient pairs for the next
// round. Assignments already in active are left untouched and never
// duplicated; usernames in excluded cannot become gifters this call.
//
// Candidate gifters are tiered: anyone with Spent == 0 gets a turn
// before any repeat gifter is considered. Both candidate lists are
// shuffled independently and paired greedily, capped at
// floor(len(participants)/2) total simultaneous assignments.
//
// The returned slice holds only the newly formed pairs; the caller
// merges them into the room.
func (e *Engine) ComputeAssignments(participants []Participant, budget int, active []Assignment, excluded map[string]bool) []Assignment {
	capacity := len(participants)/2 - len(active)
	if capacity <= 0 {
		return nil
	}

	activeGifters := make(map[string]bool, len(active))
	activeRecipients := make(map[string]bool, len(active))
	for _, a := range active {
		activeGifters[a.Gifter] = true
		activeRecipients[a.Recipient] = true
	}

	recipients := make([]string, 0, len(participants))
	for _, p := range participants {
		if p.Received < budget && !activeRecipients[p.Username] {
			recipients = append(recipients, p.Username)
		}
	}
	if len(recipients) == 0 {
		return nil
	}

	isCandidate := func(p Participant) bool {
		return !p.IsGifter && !activeGifters[p.Username] && !excluded[p.Username]
	}

	// First-timers gift before anyone gifts twice.
	gifters := make([]string, 0, len(participants))
	for _, p := range participants {
		if p.Spent == 0 && isCandidate(p) {
			gifters = append(gifters, p.Username)
		}
	}
	if len(gifters) == 0 {
		for _, p := range participants {
			if isCandidate(p) {
				gifters = append(gifters, p.Username)
			}
		}
	}
	if len(gifters) == 0 {
		return nil
	}

	e.shuffle(gifters)
	e.shuffle(recipients)

	var pairs []Assignment
	used := make(map[string]bool, len(recipients))

	for _, gifter := range gifters {
		if len(pairs) >= capacity {
			break
		}

		// A gifter whose only available recipient is itself sits this
		// round out and is retried on the next triggering event.
		for _, recipient := range recipients {
			if used[recipient] || recipient == gifter {
				continue
			}
			pairs = append(pairs, Assignment{
				Gifter:    gifter,
				Recipient: recipient,
			})
			used[recipient] = true
			break
		}
	}

	return pairs
}

// applyAssignments merges freshly computed pairs into the room and
// flags the chosen participants.
func applyAssignments(room *Room, pairs []Assignment) {
	for _, pair := range pairs {
		room.ActiveAssignments = append(room.ActiveAssignments, pair)

		if p := room.Participant(pair.Gifter); p != nil {
			p.IsGifter = true
			p.Recipient = pair.Recipient
		}
	}
}
