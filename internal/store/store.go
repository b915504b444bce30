/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package store holds the authoritative room documents. Every write
// goes through a read-modify-write transaction serialized per room, so
// two simultaneous settlements can never observe the same assignment
// set. Rooms are process-local; durability is the deployment's problem.
package store

import (
	crand "crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/Seednode/giftbox/internal/engine"
)

// ErrRoomNotFound is returned when a room id does not resolve.
var ErrRoomNotFound = errors.New("no such room")

type entry struct {
	mu   sync.Mutex
	room *engine.Room

	lastActive time.Time
}

// Store is an in-memory room registry keyed by room id.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*entry
}

func New() *Store {
	return &Store{
		rooms: make(map[string]*entry),
	}
}

// Create registers a new room with the given budget and a fresh
// collision-checked id, and returns a snapshot of it.
func (s *Store) Create(budget int) *engine.Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	for {
		id = newRoomID()
		if _, exists := s.rooms[id]; !exists {
			break
		}
	}

	room := &engine.Room{
		ID:     id,
		Budget: budget,
	}

	s.rooms[id] = &entry{
		room:       room,
		lastActive: time.Now(),
	}

	return room.Clone()
}

// Get returns a snapshot of the room, or ErrRoomNotFound.
func (s *Store) Get(id string) (*engine.Room, error) {
	ent, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	return ent.room.Clone(), nil
}

// Update runs fn as a single logical transaction against the room.
// fn receives a snapshot; if it returns a room and no error, that room
// is committed with a bumped revision and returned. On error nothing
// is written. Updates to the same room are serialized; different rooms
// proceed in parallel.
func (s *Store) Update(id string, fn func(*engine.Room) (*engine.Room, error)) (*engine.Room, error) {
	ent, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	next, err := fn(ent.room.Clone())
	if err != nil {
		return nil, err
	}

	next.Revision = ent.room.Revision + 1
	ent.room = next
	ent.lastActive = time.Now()

	return next.Clone(), nil
}

// LastActive reports when the room last committed a write, for idle
// reaping. The zero time means the room is unknown.
func (s *Store) LastActive(id string) time.Time {
	ent, err := s.entry(id)
	if err != nil {
		return time.Time{}
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()

	return ent.lastActive
}

// Delete forgets a room. Deleting an unknown id is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms, id)
}

func (s *Store) entry(id string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}

	return ent, nil
}

// newRoomID generates a crypto-random 8-char id, the same shape the
// room URLs use.
func newRoomID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	buf := make([]byte, 8)
	if _, err := crand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}

	out := make([]byte, 8)
	for i := range out {
		out[i] = letters[int(buf[i])%len(letters)]
	}

	return string(out)
}
