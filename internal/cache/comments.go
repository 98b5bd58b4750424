package cache

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/youthforge/forge/internal/models"
)

// tempCommentPrefix marks optimistic comments that have not settled yet.
const tempCommentPrefix = "temp_"

// commentState accumulates the newest-first comment pages loaded for one
// project.
type commentState struct {
	items      []models.ProjectComment
	nextCursor string
	loaded     bool
}

// Comments returns the accumulated comment pages for a project, loading the
// first page through the backend on first use.
func (c *Cache) Comments(ctx context.Context, projectID string) (*models.CommentPage, error) {
	c.mu.Lock()
	if cs, ok := c.comments[projectID]; ok && cs.loaded {
		page := commentPageOf(cs)
		c.mu.Unlock()
		return page, nil
	}
	c.mu.Unlock()

	fetched, err := c.fetchCommentPage(ctx, projectID, "")
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	cs := &commentState{items: fetched.Comments, nextCursor: fetched.NextCursor, loaded: true}
	c.comments[projectID] = cs
	page := commentPageOf(cs)
	c.mu.Unlock()
	return page, nil
}

// LoadMoreComments appends the next page. An exhausted thread is returned
// unchanged.
func (c *Cache) LoadMoreComments(ctx context.Context, projectID string) (*models.CommentPage, error) {
	c.mu.Lock()
	cs, ok := c.comments[projectID]
	if !ok || !cs.loaded {
		c.mu.Unlock()
		return c.Comments(ctx, projectID)
	}
	if cs.nextCursor == "" {
		page := commentPageOf(cs)
		c.mu.Unlock()
		return page, nil
	}
	cursor := cs.nextCursor
	c.mu.Unlock()

	fetched, err := c.fetchCommentPage(ctx, projectID, cursor)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	seen := make(map[string]bool, len(cs.items))
	for _, item := range cs.items {
		seen[item.ID] = true
	}
	for _, item := range fetched.Comments {
		if !seen[item.ID] {
			cs.items = append(cs.items, item)
		}
	}
	cs.nextCursor = fetched.NextCursor
	page := commentPageOf(cs)
	c.mu.Unlock()
	return page, nil
}

// SubmitComment inserts the comment at the head of the thread immediately
// under a temporary id and bumps the project's comment count, then settles
// against the backend. Success swaps the temporary comment for the stored
// one in place; failure restores the thread and the count exactly as they
// were.
func (c *Cache) SubmitComment(ctx context.Context, projectID string, input models.CreateCommentInput) (*models.ProjectComment, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	tempID := tempCommentPrefix + uuid.NewString()
	optimistic := models.ProjectComment{
		ID:        tempID,
		ProjectID: projectID,
		Body:      input.Body,
		Author:    input.Author,
		ParentID:  input.ParentID,
		CreatedAt: models.NowISO(),
	}

	type snapshot struct {
		items      []models.ProjectComment
		nextCursor string
		hadState   bool
		loaded     bool
		record     *models.ProjectRecord
	}

	var created *models.ProjectComment
	err := runOptimistic(ctx, c, mutation[snapshot]{
		capture: func() snapshot {
			snap := snapshot{}
			if cs, ok := c.comments[projectID]; ok {
				snap.hadState = true
				snap.loaded = cs.loaded
				snap.items = append([]models.ProjectComment(nil), cs.items...)
				snap.nextCursor = cs.nextCursor
			}
			if e := c.lookupLocked(projectID); e != nil {
				snap.record = e.record.Clone()
			}
			return snap
		},
		apply: func() {
			if cs, ok := c.comments[projectID]; ok && cs.loaded {
				cs.items = append([]models.ProjectComment{optimistic}, cs.items...)
				go c.notifyCommentWatchers(projectID)
			}
			if e := c.lookupLocked(projectID); e != nil {
				next := e.record.Clone()
				next.CommentsCount++
				notify := c.storeLocked(next)
				go deliver(notify, next)
			}
		},
		commit: func(ctx context.Context) error {
			stored, err := c.backend.CreateComment(ctx, projectID, input)
			if err != nil {
				return err
			}
			created = stored

			c.mu.Lock()
			if cs, ok := c.comments[projectID]; ok {
				c.settleCommentLocked(cs, tempID, stored)
			}
			c.mu.Unlock()
			c.notifyCommentWatchers(projectID)
			return nil
		},
		rollback: func(snap snapshot) {
			if snap.hadState {
				c.comments[projectID] = &commentState{
					items:      snap.items,
					nextCursor: snap.nextCursor,
					loaded:     snap.loaded,
				}
			} else {
				delete(c.comments, projectID)
			}
			go c.notifyCommentWatchers(projectID)
			if snap.record != nil {
				notify := c.storeLocked(snap.record)
				go deliver(notify, snap.record)
			}
		},
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// settleCommentLocked swaps the optimistic comment for the stored one. When
// a realtime push already delivered the stored comment, the temporary entry
// is dropped instead so the thread never shows it twice.
func (c *Cache) settleCommentLocked(cs *commentState, tempID string, stored *models.ProjectComment) {
	hasStored := false
	for _, item := range cs.items {
		if item.ID == stored.ID {
			hasStored = true
			break
		}
	}
	for i := range cs.items {
		if cs.items[i].ID != tempID {
			continue
		}
		if hasStored {
			cs.items = append(cs.items[:i], cs.items[i+1:]...)
		} else {
			cs.items[i] = *stored
		}
		return
	}
}

// notifyCommentWatchers pushes the current visible page to every local
// watcher of the project's thread.
func (c *Cache) notifyCommentWatchers(projectID string) {
	c.mu.Lock()
	cs, ok := c.comments[projectID]
	if !ok {
		cs = &commentState{}
	}
	page := commentPageOf(cs)
	targets := valuesOf(c.commentWatchers[projectID])
	c.mu.Unlock()

	for _, cb := range targets {
		cb(*page)
	}
}

// fetchCommentPage loads one page through the backend's listen contract:
// subscribe at the cursor, take the initial delivery, unsubscribe.
func (c *Cache) fetchCommentPage(ctx context.Context, projectID, cursor string) (*models.CommentPage, error) {
	ch := make(chan models.CommentPage, 1)
	unsub := c.backend.ListenComments(projectID, func(page models.CommentPage) {
		select {
		case ch <- page:
		default:
		}
	}, cursor)
	defer unsub()

	select {
	case page := <-ch:
		return &page, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// commentPageOf builds the visible page, with the cursor the accumulated
// tail carries.
func commentPageOf(cs *commentState) *models.CommentPage {
	return &models.CommentPage{
		Comments:   append([]models.ProjectComment(nil), cs.items...),
		NextCursor: cs.nextCursor,
	}
}

// isTempComment reports whether a comment id belongs to an unsettled
// optimistic insert.
func isTempComment(id string) bool {
	return strings.HasPrefix(id, tempCommentPrefix)
}
