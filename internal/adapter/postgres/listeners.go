package postgres

import (
	"context"

	"github.com/youthforge/forge/internal/adapter"
)

// Listener callbacks must not block: each snapshot is loaded from the
// database after a committed write and delivered on its own goroutine.

// ListenProject registers cb for push updates on the project identified by
// id or slug. The current snapshot (or nil) is delivered asynchronously
// right after registration.
func (a *Adapter) ListenProject(idOrSlug string, cb adapter.ProjectCallback) adapter.Unsubscribe {
	ctx := context.Background()

	record, err := selectProject(ctx, a.db, `id = $1`, idOrSlug)
	if err != nil {
		a.logger.Error(ctx, "loading project for listener", "identifier", idOrSlug, "error", err)
	}

	key := idOrSlug
	registry := a.slugListeners
	if record != nil {
		key = record.ID
		registry = a.projectListeners
	}

	a.mu.Lock()
	token := a.nextToken
	a.nextToken++
	if registry[key] == nil {
		registry[key] = make(map[int]adapter.ProjectCallback)
	}
	registry[key][token] = cb
	a.mu.Unlock()

	go func() {
		initial := record
		if initial == nil {
			initial, _ = selectProject(ctx, a.db, `slug = $1 AND visibility <> 'deleted'`, idOrSlug)
		}
		cb(initial)
	}()

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if set, ok := registry[key]; ok {
			delete(set, token)
			if len(set) == 0 {
				delete(registry, key)
			}
		}
	}
}

// ListenComments registers cb for the comment page selected by cursor. The
// current page is delivered asynchronously right after registration.
func (a *Adapter) ListenComments(projectID string, cb adapter.CommentsCallback, cursor string) adapter.Unsubscribe {
	a.mu.Lock()
	token := a.nextToken
	a.nextToken++
	if a.commentListeners[projectID] == nil {
		a.commentListeners[projectID] = make(map[int]commentListener)
	}
	a.commentListeners[projectID][token] = commentListener{cb: cb, cursor: cursor}
	a.mu.Unlock()

	go func() {
		ctx := context.Background()
		page, err := selectCommentPage(ctx, a.db, projectID, cursor)
		if err != nil {
			a.logger.Error(ctx, "loading comments for listener", "project", projectID, "error", err)
			return
		}
		cb(*page)
	}()

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if set, ok := a.commentListeners[projectID]; ok {
			delete(set, token)
			if len(set) == 0 {
				delete(a.commentListeners, projectID)
			}
		}
	}
}

// emitProject reloads the committed snapshot and pushes it to every listener
// registered for the project id, plus any listener keyed by its current slug.
func (a *Adapter) emitProject(projectID string) {
	ctx := context.Background()
	snapshot, err := selectProject(ctx, a.db, `id = $1`, projectID)
	if err != nil {
		a.logger.Error(ctx, "loading project for emit", "project", projectID, "error", err)
		return
	}

	a.mu.Lock()
	var targets []adapter.ProjectCallback
	for _, cb := range a.projectListeners[projectID] {
		targets = append(targets, cb)
	}
	if snapshot != nil {
		for _, cb := range a.slugListeners[snapshot.Slug] {
			targets = append(targets, cb)
		}
	}
	a.mu.Unlock()

	for _, cb := range targets {
		go cb(snapshot.Clone())
	}
}

// emitComments rebuilds each listener's page at its own cursor and pushes it.
func (a *Adapter) emitComments(projectID string) {
	a.mu.Lock()
	listeners := make([]commentListener, 0, len(a.commentListeners[projectID]))
	for _, l := range a.commentListeners[projectID] {
		listeners = append(listeners, l)
	}
	a.mu.Unlock()

	ctx := context.Background()
	for _, l := range listeners {
		page, err := selectCommentPage(ctx, a.db, projectID, l.cursor)
		if err != nil {
			a.logger.Error(ctx, "loading comments for emit", "project", projectID, "error", err)
			continue
		}
		go l.cb(*page)
	}
}

var _ adapter.ProjectsAdapter = (*Adapter)(nil)
