// Package engine implements the round-based assignment and settlement
// core of the gift exchange game.
//
// The engine is a pure in-memory transform: every entry point takes the
// current Room, validates, and returns a new Room for the caller to
// persist. It never performs I/O, never locks, and never mutates its
// input. Serializing calls per room is the caller's job.
package engine
