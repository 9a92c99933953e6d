package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/alignsync/internal/domain"
	"github.com/roach88/alignsync/internal/remote"
	"github.com/roach88/alignsync/internal/store"
)

// uploadConcurrency bounds parallel corpus uploads within one run.
const uploadConcurrency = 2

// refreshPermissions never fails the run; a stale claim set only affects
// which errors the remote returns later.
func (c *Coordinator) refreshPermissions(ctx context.Context, r *run) (State, error) {
	if c.auth == nil {
		return StateSwitchToProject, nil
	}
	if err := c.auth.RefreshPermissions(ctx); err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		r.log().Warn("refresh permissions failed, continuing", "error", err)
	}
	return StateSwitchToProject, nil
}

// switchToProject binds the workspace to the project. When the workspace has
// to reload, the run suspends until it calls back.
func (c *Coordinator) switchToProject(_ context.Context, r *run) (State, error) {
	ws := c.workspace
	if ws == nil || (ws.CurrentProject() == r.projectID && ws.IsInitialized()) {
		return StateSyncingProject, nil
	}

	ws.ResetLinkView()
	ws.Bind(r.projectID)
	ws.MarkPreferencesUninitialized()

	q := r.queue
	ws.OnReinitialized(func() {
		if !q.Enqueue(transition{next: StateSyncingProject}) {
			r.log().Debug("workspace reinitialized after run ended")
		}
	})
	r.log().Debug("waiting for workspace to reinitialize")
	return stateSuspended, nil
}

// syncProject creates or updates the remote project record.
func (c *Coordinator) syncProject(ctx context.Context, r *run) (State, error) {
	if r.startLocation == domain.LocationRemote {
		return StateSyncingCorpora, nil
	}

	corpora, err := r.store.GetAllCorpora(ctx)
	if err != nil {
		return 0, fmt.Errorf("load corpora: %w", err)
	}
	payload := remote.PayloadFor(r.project, corpora)

	var resp remote.ProjectResponse
	if r.startLocation == domain.LocationLocal {
		// The provisional record is what a failed run rolls back.
		r.project.Location = domain.LocationSynced
		r.project.UpdatedAt = c.clock.Now()
		if err := r.store.SaveProject(ctx, r.project); err != nil {
			return 0, fmt.Errorf("save provisional project: %w", err)
		}
		resp, err = c.remote.CreateProject(ctx, payload)
	} else {
		resp, err = c.remote.UpdateProject(ctx, payload)
	}

	switch {
	case err == nil:
	case remote.IsPermissionDenied(err):
		return 0, newSyncError(CodePermissionDenied, r.projectID, StateSyncingProject, "not authorized", err)
	case remote.IsConflict(err):
		r.nameUnavailable = true
		return 0, newSyncError(CodeNameUnavailable, r.projectID, StateSyncingProject, "project name is unavailable", err)
	default:
		return 0, fmt.Errorf("upsert remote project: %w", err)
	}

	r.serverTime = resp.ServerTime
	r.serverUpdatedAt = resp.UpdatedAt
	return StateSyncingCorpora, nil
}

// syncCorpora makes sure both sides have a corpus with tokens and uploads
// them when the remote does not have them yet.
func (c *Coordinator) syncCorpora(ctx context.Context, r *run) (State, error) {
	corpora, err := hydrateCorpora(ctx, r.store)
	if err != nil {
		return 0, err
	}

	if !complete(corpora) {
		var fallback []domain.Corpus
		if c.corpora != nil {
			fallback, err = c.corpora.Corpora(ctx, r.projectID)
			if err != nil {
				r.log().Warn("load corpora from container failed", "error", err)
			}
		}
		if !complete(fallback) {
			return 0, newSyncError(CodeCorporaIncomplete, r.projectID, StateSyncingCorpora, "project corpora are incomplete", nil)
		}
		corpora = fallback
		if err := adoptCorpora(ctx, r.store, corpora); err != nil {
			r.log().Warn("persist container corpora failed", "error", err)
		}
		r.project.CorporaChanged = true
	}

	if r.startLocation != domain.LocationLocal && !r.project.CorporaChanged {
		return StateSyncingAlignments, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for _, corpus := range corpora {
		g.Go(func() error {
			if err := c.remote.UploadTokens(gctx, r.projectID, corpus, corpus.Words); err != nil {
				return fmt.Errorf("upload corpus %s: %w", corpus.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		r.log().Warn("corpus upload failed, continuing", "error", err)
		c.emit(r, StateSyncingCorpora, "corpus upload failed", err)
	}
	return StateSyncingAlignments, nil
}

// syncAlignments pushes the journal and, for previously synced projects,
// pulls the remote link set. Failures leave the journal for the next run.
func (c *Coordinator) syncAlignments(ctx context.Context, r *run) (State, error) {
	if err := c.exchangeLinks(ctx, r); err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		r.log().Warn("alignment sync failed, continuing", "error", err)
		c.emit(r, StateSyncingAlignments, "alignment sync failed", err)
	}
	return StateUpdatingProject, nil
}

func (c *Coordinator) exchangeLinks(ctx context.Context, r *run) error {
	entries, err := r.store.DrainJournal(ctx, r.project.ID)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		if err := c.remote.PushLinkMutations(ctx, r.projectID, entries); err != nil {
			return fmt.Errorf("push %d journal entries: %w", len(entries), err)
		}
		ids := make([]string, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		if err := r.store.DeleteJournalByIDs(ctx, ids); err != nil {
			return err
		}
		r.log().Info("journal pushed", "entries", len(entries))
	}

	if r.startLocation == domain.LocationLocal {
		return nil
	}

	links, err := c.remote.PullLinks(ctx, r.projectID)
	if err != nil {
		return fmt.Errorf("pull links: %w", err)
	}
	if err := r.store.ReplaceLinks(ctx, links); err != nil {
		return err
	}
	r.log().Info("links pulled", "links", len(links))
	return nil
}

// updateProject stamps the project as synced, persists and publishes it.
func (c *Coordinator) updateProject(ctx context.Context, r *run) (State, error) {
	now := c.clock.Now()
	p := r.project
	p.Location = domain.LocationSynced
	p.UpdatedAt = now
	p.LastSyncTime = now
	p.CorporaChanged = false
	if !r.serverTime.IsZero() {
		p.LastSyncServerTime = r.serverTime
	}
	if !r.serverUpdatedAt.IsZero() {
		p.ServerUpdatedAt = r.serverUpdatedAt
	}

	resp, err := c.remote.UpdateProject(ctx, remote.PayloadFor(p, nil))
	switch {
	case err == nil:
		if !resp.ServerTime.IsZero() {
			p.LastSyncServerTime = resp.ServerTime
		}
		if !resp.UpdatedAt.IsZero() {
			p.ServerUpdatedAt = resp.UpdatedAt
		}
	case ctx.Err() != nil:
		return 0, ctx.Err()
	default:
		r.log().Warn("update remote project failed, continuing", "error", err)
	}

	if err := r.store.SaveProject(ctx, p); err != nil {
		return 0, fmt.Errorf("save project: %w", err)
	}
	r.project = p
	c.publish(p)
	return StateSuccess, nil
}

// hydrateCorpora loads every corpus of the store together with its tokens.
func hydrateCorpora(ctx context.Context, s *store.Store) ([]domain.Corpus, error) {
	corpora, err := s.GetAllCorpora(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpora: %w", err)
	}
	for i := range corpora {
		words, err := s.GetAllWordsByCorpus(ctx, corpora[i].Side, corpora[i].ID, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("load corpus %s: %w", corpora[i].ID, err)
		}
		corpora[i].Words = words
	}
	return corpora, nil
}

// complete reports whether both sides have at least one corpus with tokens.
func complete(corpora []domain.Corpus) bool {
	var sources, targets bool
	for _, c := range corpora {
		if len(c.Words) == 0 {
			continue
		}
		switch c.Side {
		case domain.SideSources:
			sources = true
		case domain.SideTargets:
			targets = true
		}
	}
	return sources && targets
}

// adoptCorpora stores container corpora in the project store. Replacing the
// tokens recomputes link text.
func adoptCorpora(ctx context.Context, s *store.Store, corpora []domain.Corpus) error {
	for _, c := range corpora {
		if err := s.SaveCorpus(ctx, c); err != nil {
			return err
		}
		if err := s.ReplaceCorpusTokens(ctx, c.ID, c.Words); err != nil {
			return err
		}
	}
	return nil
}
