// Package registry owns live person state.
//
// Ownership boundary:
// - id -> Person map
//
// - observer registration and lifecycle fan-out
//
// Lifecycle per id:
// - ABSENT -> LIVE on entered, or on updated/moved for an unknown id
//
// - LIVE -> LIVE on updated/moved (and entered, which overwrites)
//
// - LIVE -> ABSENT on will-leave; will-leave for an unknown id is a no-op
//
// A Registry is confined to one goroutine. It has no lock; callers on other
// goroutines read published snapshots instead.
package registry
