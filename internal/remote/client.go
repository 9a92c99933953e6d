// Package remote talks to the project service that hosts synced projects.
//
// Client is the boundary the sync coordinator depends on; HTTPClient is the
// REST implementation used by the CLI.
package remote

import (
	"context"
	"time"

	"github.com/roach88/alignsync/internal/domain"
)

// Client is the remote project service.
type Client interface {
	CreateProject(ctx context.Context, p ProjectPayload) (ProjectResponse, error)
	UpdateProject(ctx context.Context, p ProjectPayload) (ProjectResponse, error)
	DeleteProject(ctx context.Context, projectID string) error
	UploadTokens(ctx context.Context, projectID string, corpus domain.Corpus, tokens []domain.Token) error
	PullLinks(ctx context.Context, projectID string) ([]domain.Link, error)

	// PushLinkMutations sends journal entries in order. A nil error means
	// every entry was acknowledged.
	PushLinkMutations(ctx context.Context, projectID string, entries []domain.JournalEntry) error
}

// Authorizer refreshes the caller's group claims before a sync.
type Authorizer interface {
	RefreshPermissions(ctx context.Context) error
}

// ProjectPayload is the project metadata sent on create and update.
type ProjectPayload struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	State     domain.ProjectState `json:"state"`
	Corpora   []domain.Corpus     `json:"corpora,omitempty"`
	UpdatedAt time.Time           `json:"updated_at,omitzero"`
}

// ProjectResponse carries the timestamps the service assigned.
type ProjectResponse struct {
	ID         string    `json:"id"`
	UpdatedAt  time.Time `json:"updated_at,omitzero"`
	ServerTime time.Time `json:"server_time,omitzero"`
}

// PayloadFor builds the payload for a stored project and its corpora.
func PayloadFor(p domain.Project, corpora []domain.Corpus) ProjectPayload {
	return ProjectPayload{
		ID:        p.ID,
		Name:      p.Name,
		State:     p.State,
		Corpora:   corpora,
		UpdatedAt: p.UpdatedAt,
	}
}
