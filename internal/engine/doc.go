// Package engine implements the sync coordinator.
//
// A sync run moves one project through a fixed sequence of stages:
//
//	IDLE → REFRESHING_PERMISSIONS → SWITCH_TO_PROJECT → SYNCING_PROJECT →
//	SYNCING_CORPORA → SYNCING_ALIGNMENTS → UPDATING_PROJECT →
//	{SUCCESS | FAILED | CANCELED} → IDLE
//
// ARCHITECTURE:
//
// Single-Goroutine Run Loop:
// Each run owns a FIFO transition queue and one goroutine that drains it.
// A stage is a method that performs its I/O and returns the next state; the
// loop enqueues that state and picks it up on the next iteration. No stage
// calls another stage, so two stages of one run never execute concurrently.
//
// Suspend Points:
// SWITCH_TO_PROJECT may hand control to the workspace, which enqueues
// SYNCING_PROJECT from its own goroutine once it has reinitialized.
//
// Cancellation:
// The run's context is checked between stages and while suspended. Canceling
// it also aborts in-flight remote requests. Store writes committed by earlier
// stages stay; only the provisional project record is rolled back.
//
// Failure Buckets:
// Project upsert and corpus hydration failures are fatal (FAILED, rollback).
// Corpus upload and alignment push/pull failures are logged and the run
// continues, leaving the journal intact for the next sync.
package engine
