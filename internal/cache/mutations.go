package cache

import (
	"context"

	"github.com/youthforge/forge/internal/models"
)

// CreateProject writes through to the backend and installs the stored
// record. Cached feeds are dropped so the next read picks the new project
// up in its sorted position.
func (c *Cache) CreateProject(ctx context.Context, input models.CreateProjectInput) (*models.ProjectRecord, error) {
	record, err := c.backend.CreateProject(ctx, input)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	notify := c.storeLocked(record.Clone())
	c.feeds = make(map[string]*feedState)
	c.mu.Unlock()

	deliver(notify, record)
	return record, nil
}

// UpdateProject writes through and replaces the canonical record. A slug
// change moves the secondary index with it, so lookups under the old slug
// stop resolving immediately.
func (c *Cache) UpdateProject(ctx context.Context, input models.UpdateProjectInput) (*models.ProjectRecord, error) {
	record, err := c.backend.UpdateProject(ctx, input)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	notify := c.storeLocked(record.Clone())
	c.mu.Unlock()

	deliver(notify, record)
	return record, nil
}

// DeleteProject soft-deletes through the backend, then refreshes the
// canonical record so watchers see the deleted state. Feed reads filter
// deleted records out on materialization.
func (c *Cache) DeleteProject(ctx context.Context, projectID string) error {
	if err := c.backend.DeleteProject(ctx, projectID); err != nil {
		return err
	}

	record, err := c.backend.FetchProjectByID(ctx, projectID)
	if err != nil || record == nil {
		return err
	}

	c.mu.Lock()
	notify := c.storeLocked(record)
	c.mu.Unlock()

	deliver(notify, record)
	return nil
}

// UploadProjectMedia passes through; media only becomes part of the record
// via a later UpdateProject.
func (c *Cache) UploadProjectMedia(ctx context.Context, projectID string, files []models.UploadFile, onProgress models.UploadProgress) ([]models.ProjectMedia, error) {
	return c.backend.UploadProjectMedia(ctx, projectID, files, onProgress)
}

// ToggleLike flips the viewer's like optimistically, then settles the count
// against the backend's authoritative answer. On failure the record is
// restored to its exact pre-toggle state.
func (c *Cache) ToggleLike(ctx context.Context, projectID, userID string) (*models.ToggleLikeResult, error) {
	c.mu.Lock()
	var id string
	if e := c.lookupLocked(projectID); e != nil {
		id = e.record.ID
	}
	c.mu.Unlock()

	// A project the cache has never seen has no local state to patch.
	if id == "" {
		return c.backend.ToggleLike(ctx, projectID, userID)
	}

	var result *models.ToggleLikeResult
	err := runOptimistic(ctx, c, mutation[*models.ProjectRecord]{
		capture: func() *models.ProjectRecord {
			return c.entries[id].record.Clone()
		},
		apply: func() {
			next := c.entries[id].record.Clone()
			if next.LikedByViewer {
				next.LikedByViewer = false
				if next.LikesCount > 0 {
					next.LikesCount--
				}
			} else {
				next.LikedByViewer = true
				next.LikesCount++
			}
			notify := c.storeLocked(next)
			go deliver(notify, next)
		},
		commit: func(ctx context.Context) error {
			settled, err := c.backend.ToggleLike(ctx, projectID, userID)
			if err != nil {
				return err
			}
			result = settled

			c.mu.Lock()
			next := c.entries[id].record.Clone()
			next.LikedByViewer = settled.Liked
			next.LikesCount = settled.LikesCount
			notify := c.storeLocked(next)
			c.mu.Unlock()
			deliver(notify, next)
			return nil
		},
		rollback: func(snapshot *models.ProjectRecord) {
			notify := c.storeLocked(snapshot)
			go deliver(notify, snapshot)
		},
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
