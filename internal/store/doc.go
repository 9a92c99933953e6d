// Package store provides SQLite-backed storage for one alignment project.
//
// A store holds:
//   - Tokens (words_or_parts): corpus words and word parts keyed by (side, id)
//   - Links: alignments with denormalized sources_text/targets_text
//   - Join tables: links__source_words and links__target_words, one per side
//   - Catalog: corpora and language metadata
//   - Project: the single project record and its sync lifecycle
//   - Journal: link mutations not yet acknowledged by the remote service
//
// # Write Rules
//
// Every link write runs in one transaction that rewrites the link's full
// join membership, recomputes its text, and appends journal entries when the
// project is LOCAL or SYNCED. Partial application is never visible.
//
// # Read Rules
//
//   - Reads return empty slices, never nil, when nothing matches
//   - Missing required arguments short-circuit to an empty result
//   - Multi-row results are ordered by a deterministic key
//   - Caller sort requests go through querysql allow-lists
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Join rows cascade with their link
//   - One open connection: writes serialize
//
// Failures are returned as *Error with a Kind (NotFound, Conflict,
// IoFailure, InvalidArgument) and logged with the operation name.
package store
