// Package world implements the region lifecycle engine of an infinite,
// tile-based world: coordinate algebra between tiles, slices and regions,
// the per-region lifecycle and save state machines, anchor-based residency
// and eviction, and the host façade that game code drives each tick.
//
// Concrete tile/wall semantics, terrain generation algorithms, the on-disk
// tag container format and anything related to rendering, input or
// networking are treated as external collaborators and are not implemented
// here.
package world
