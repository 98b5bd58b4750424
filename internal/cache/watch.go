package cache

import (
	"github.com/youthforge/forge/internal/adapter"
	"github.com/youthforge/forge/internal/models"
)

// WatchProject subscribes to push updates for a project. The cache holds at
// most one backend subscription per identifier no matter how many local
// watchers attach; each pushed snapshot is reconciled into the canonical
// store before fan-out, so reads agree with what watchers just saw.
func (c *Cache) WatchProject(idOrSlug string, cb adapter.ProjectCallback) adapter.Unsubscribe {
	c.mu.Lock()
	key := idOrSlug
	if e := c.lookupLocked(idOrSlug); e != nil {
		key = e.record.ID
	}

	token := c.nextToken
	c.nextToken++
	if c.projectWatchers[key] == nil {
		c.projectWatchers[key] = make(map[int]adapter.ProjectCallback)
	}
	c.projectWatchers[key][token] = cb

	first := c.upstreamProject[key] == nil
	if first {
		// Reserve the slot before unlocking so a concurrent WatchProject
		// does not open a second upstream subscription.
		c.upstreamProject[key] = func() {}
	}
	var cached *models.ProjectRecord
	if e := c.lookupLocked(idOrSlug); e != nil {
		cached = e.record.Clone()
	}
	c.mu.Unlock()

	if first {
		unsub := c.backend.ListenProject(idOrSlug, func(record *models.ProjectRecord) {
			c.ingestProjectPush(key, record)
		})
		c.mu.Lock()
		c.upstreamProject[key] = unsub
		c.mu.Unlock()
	} else {
		// The upstream's initial delivery already happened; give the late
		// watcher the cached snapshot so it gets its own initial value.
		go cb(cached)
	}

	return func() {
		c.mu.Lock()
		var unsub adapter.Unsubscribe
		if set, ok := c.projectWatchers[key]; ok {
			delete(set, token)
			if len(set) == 0 {
				delete(c.projectWatchers, key)
				unsub = c.upstreamProject[key]
				delete(c.upstreamProject, key)
			}
		}
		c.mu.Unlock()
		if unsub != nil {
			unsub()
		}
	}
}

// ingestProjectPush reconciles a backend push into the canonical store and
// fans it out. A nil record (unknown identifier) is forwarded untouched.
func (c *Cache) ingestProjectPush(key string, record *models.ProjectRecord) {
	if record == nil {
		c.mu.Lock()
		targets := append([]adapter.ProjectCallback(nil), valuesOf(c.projectWatchers[key])...)
		c.mu.Unlock()
		for _, cb := range targets {
			cb(nil)
		}
		return
	}

	c.mu.Lock()
	targets := c.storeLocked(record.Clone())
	if key != record.ID && key != record.Slug {
		targets = append(targets, valuesOf(c.projectWatchers[key])...)
	}
	c.mu.Unlock()

	deliver(targets, record)
}

// WatchComments subscribes to the head page of a project's comment thread,
// multiplexing all local watchers over one backend subscription.
func (c *Cache) WatchComments(projectID string, cb adapter.CommentsCallback) adapter.Unsubscribe {
	c.mu.Lock()
	token := c.nextToken
	c.nextToken++
	if c.commentWatchers[projectID] == nil {
		c.commentWatchers[projectID] = make(map[int]adapter.CommentsCallback)
	}
	c.commentWatchers[projectID][token] = cb

	first := c.upstreamComment[projectID] == nil
	if first {
		c.upstreamComment[projectID] = func() {}
	}
	var cached *models.CommentPage
	if cs, ok := c.comments[projectID]; ok && cs.loaded {
		cached = commentPageOf(cs)
	}
	c.mu.Unlock()

	if first {
		unsub := c.backend.ListenComments(projectID, func(page models.CommentPage) {
			c.ingestCommentsPush(projectID, page)
		}, "")
		c.mu.Lock()
		c.upstreamComment[projectID] = unsub
		c.mu.Unlock()
	} else if cached != nil {
		go cb(*cached)
	}

	return func() {
		c.mu.Lock()
		var unsub adapter.Unsubscribe
		if set, ok := c.commentWatchers[projectID]; ok {
			delete(set, token)
			if len(set) == 0 {
				delete(c.commentWatchers, projectID)
				unsub = c.upstreamComment[projectID]
				delete(c.upstreamComment, projectID)
			}
		}
		c.mu.Unlock()
		if unsub != nil {
			unsub()
		}
	}
}

// ingestCommentsPush reconciles a pushed head page with the accumulated
// local state: unsettled optimistic comments stay at the head, the pushed
// page replaces the region it covers, and locally paged-in older comments
// are kept as the tail.
func (c *Cache) ingestCommentsPush(projectID string, page models.CommentPage) {
	c.mu.Lock()
	cs, ok := c.comments[projectID]
	if !ok {
		cs = &commentState{}
		c.comments[projectID] = cs
	}

	inPage := make(map[string]bool, len(page.Comments))
	for _, item := range page.Comments {
		inPage[item.ID] = true
	}

	var pending, tail []models.ProjectComment
	for _, item := range cs.items {
		if inPage[item.ID] {
			continue
		}
		if isTempComment(item.ID) {
			pending = append(pending, item)
		} else if len(page.Comments) > 0 && item.CreatedAt < page.Comments[len(page.Comments)-1].CreatedAt {
			tail = append(tail, item)
		}
	}

	merged := make([]models.ProjectComment, 0, len(pending)+len(page.Comments)+len(tail))
	merged = append(merged, pending...)
	merged = append(merged, page.Comments...)
	merged = append(merged, tail...)
	cs.items = merged
	cs.loaded = true
	if len(tail) == 0 {
		cs.nextCursor = page.NextCursor
	}

	visible := commentPageOf(cs)
	targets := valuesOf(c.commentWatchers[projectID])
	c.mu.Unlock()

	for _, cb := range targets {
		cb(*visible)
	}
}

func valuesOf[V any](set map[int]V) []V {
	out := make([]V, 0, len(set))
	for _, v := range set {
		out = append(out, v)
	}
	return out
}
