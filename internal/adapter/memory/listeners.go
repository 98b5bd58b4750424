package memory

import (
	"github.com/youthforge/forge/internal/adapter"
	"github.com/youthforge/forge/internal/models"
)

// ListenProject registers cb for push updates on the project identified by
// id or slug. The current snapshot (or nil) is delivered asynchronously
// right after registration.
func (a *Adapter) ListenProject(idOrSlug string, cb adapter.ProjectCallback) adapter.Unsubscribe {
	a.mu.Lock()
	token := a.nextToken
	a.nextToken++

	id, resolved := a.resolveID(idOrSlug)
	key := idOrSlug
	registry := a.slugListeners
	if resolved {
		key = id
		registry = a.projectListeners
	}
	if registry[key] == nil {
		registry[key] = make(map[int]adapter.ProjectCallback)
	}
	registry[key][token] = cb

	var initial *models.ProjectRecord
	if resolved {
		initial = a.projects[id].Clone()
	} else if sid, ok := a.slugIndex[idOrSlug]; ok {
		initial = a.projects[sid].Clone()
	}
	a.mu.Unlock()

	go cb(initial)

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
	initial := a.buildCommentPage(projectID, cursor)
	a.mu.Unlock()

	go cb(initial)

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

// buildCommentPage slices the newest-first comment list. The cursor is the
// id (or timestamp) of the last comment of the previous page. Caller holds
// a.mu.
func (a *Adapter) buildCommentPage(projectID, cursor string) models.CommentPage {
	comments := a.comments[projectID]
	start := 0
	if cursor != "" {
		for i, c := range comments {
			if c.ID == cursor || c.CreatedAt == cursor {
				start = i + 1
				break
			}
		}
	}
	end := start + models.CommentPageSize
	if end > len(comments) {
		end = len(comments)
	}
	page := models.CommentPage{Comments: append([]models.ProjectComment(nil), comments[start:end]...)}
	if len(page.Comments) == models.CommentPageSize {
		page.NextCursor = page.Comments[len(page.Comments)-1].ID
	}
	return page
}

// emitProject pushes the current snapshot to every listener registered for
// the project id, plus any listener keyed by its current slug.
func (a *Adapter) emitProject(projectID string) {
	a.mu.Lock()
	var snapshot *models.ProjectRecord
	var targets []adapter.ProjectCallback
	if p, ok := a.projects[projectID]; ok {
		snapshot = p.Clone()
		for _, cb := range a.slugListeners[p.Slug] {
			targets = append(targets, cb)
		}
	}
	for _, cb := range a.projectListeners[projectID] {
		targets = append(targets, cb)
	}
	a.mu.Unlock()

	for _, cb := range targets {
		cb(snapshot.Clone())
	}
}

// emitComments rebuilds each listener's page at its own cursor and pushes it.
func (a *Adapter) emitComments(projectID string) {
	a.mu.Lock()
	type delivery struct {
		cb   adapter.CommentsCallback
		page models.CommentPage
	}
	var out []delivery
	for _, l := range a.commentListeners[projectID] {
		out = append(out, delivery{cb: l.cb, page: a.buildCommentPage(projectID, l.cursor)})
	}
	a.mu.Unlock()

	for _, d := range out {
		d.cb(d.page)
	}
}
