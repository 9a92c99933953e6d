package domain

import (
	"fmt"
	"time"
)

// Location is where a project currently lives.
type Location string

const (
	// LocationLocal projects exist only in the local store.
	LocationLocal Location = "LOCAL"
	// LocationSynced projects exist locally and on the remote service.
	LocationSynced Location = "SYNCED"
	// LocationRemote projects exist only on the remote service.
	LocationRemote Location = "REMOTE"
)

// ParseLocation validates a stored location value.
func ParseLocation(s string) (Location, error) {
	switch Location(s) {
	case LocationLocal, LocationSynced, LocationRemote:
		return Location(s), nil
	}
	return "", fmt.Errorf("unknown project location %q", s)
}

// ProjectState is the published/draft flag pushed to the remote service.
type ProjectState string

const (
	ProjectStateDraft     ProjectState = "DRAFT"
	ProjectStatePublished ProjectState = "PUBLISHED"
)

// Project is the per-store project record.
type Project struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	Location           Location     `json:"location"`
	State              ProjectState `json:"state"`
	CorporaChanged     bool         `json:"corpora_changed,omitempty"`
	LastSyncTime       time.Time    `json:"last_sync_time,omitzero"`
	LastSyncServerTime time.Time    `json:"last_sync_server_time,omitzero"`
	ServerUpdatedAt    time.Time    `json:"server_updated_at,omitzero"`
	UpdatedAt          time.Time    `json:"updated_at,omitzero"`
}

// Journaled reports whether link edits on this project must be recorded
// for a later push.
func (p Project) Journaled() bool {
	return p.Location == LocationLocal || p.Location == LocationSynced
}

// Operation is the kind of link mutation recorded in the journal.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// JournalEntry is a link mutation not yet acknowledged by the remote service.
//
// Link holds the link after the mutation; it is nil for deletes.
type JournalEntry struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Seq       int64     `json:"seq"`
	Operation Operation `json:"operation"`
	LinkID    string    `json:"link_id"`
	Link      *Link     `json:"link,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
