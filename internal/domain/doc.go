// Package domain provides the shared types for alignsync.
//
// This package contains type definitions and small pure helpers only. All
// other internal packages import domain; domain imports nothing internal.
//
// Key design constraints:
//   - Token ids carry no side prefix; the side travels next to the id
//   - All JSON tags use snake_case
//   - Zero time.Time means "never set" for project timestamps
package domain
