package cache

import (
	"context"
	"fmt"

	"github.com/youthforge/forge/internal/models"
)

// feedState holds one paginated feed as an ordered list of project ids.
// Records themselves live in the canonical store, so any mutation shows up
// in every feed without touching the feed states.
type feedState struct {
	ids        []string
	nextCursor string
	loaded     bool
}

// feedKey identifies a feed by its full filter tuple. Queries that differ in
// any filter, sort, or page size paginate independently.
func feedKey(q models.FeedQuery) string {
	return fmt.Sprintf("slug=%s|tag=%s|featured=%t|sort=%s|limit=%d",
		q.Slug, q.Tag, q.FeaturedOnly, q.EffectiveSort(), q.EffectiveLimit())
}

// Feed returns the first page for the query, loading it through the backend
// when this filter tuple has not been seen yet. Subsequent calls with the
// same tuple serve the accumulated cached pages.
func (c *Cache) Feed(ctx context.Context, query models.FeedQuery) (*models.FeedPage, error) {
	key := feedKey(query)

	c.mu.Lock()
	if fs, ok := c.feeds[key]; ok && fs.loaded {
		page := c.materializeLocked(fs)
		c.mu.Unlock()
		return page, nil
	}
	startSeq := c.seq
	c.mu.Unlock()

	query.Cursor = ""
	fetched, err := c.backend.FetchProjects(ctx, query)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	fs := &feedState{nextCursor: fetched.NextCursor, loaded: true}
	for i := range fetched.Projects {
		record := &fetched.Projects[i]
		fs.ids = append(fs.ids, record.ID)
		c.absorbFetchedLocked(record.Clone(), startSeq)
	}
	c.feeds[key] = fs
	page := c.materializeLocked(fs)
	c.mu.Unlock()

	return page, nil
}

// LoadMore appends the next page to the feed identified by the query's
// filter tuple. An exhausted feed (no cursor) is returned as-is; ids already
// present are never appended twice.
func (c *Cache) LoadMore(ctx context.Context, query models.FeedQuery) (*models.FeedPage, error) {
	key := feedKey(query)

	c.mu.Lock()
	fs, ok := c.feeds[key]
	if !ok || !fs.loaded {
		c.mu.Unlock()
		return c.Feed(ctx, query)
	}
	if fs.nextCursor == "" {
		page := c.materializeLocked(fs)
		c.mu.Unlock()
		return page, nil
	}
	cursor := fs.nextCursor
	startSeq := c.seq
	c.mu.Unlock()

	query.Cursor = cursor
	fetched, err := c.backend.FetchProjects(ctx, query)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	seen := make(map[string]bool, len(fs.ids))
	for _, id := range fs.ids {
		seen[id] = true
	}
	for i := range fetched.Projects {
		record := &fetched.Projects[i]
		if !seen[record.ID] {
			fs.ids = append(fs.ids, record.ID)
		}
		c.absorbFetchedLocked(record.Clone(), startSeq)
	}
	fs.nextCursor = fetched.NextCursor
	page := c.materializeLocked(fs)
	c.mu.Unlock()

	return page, nil
}

// absorbFetchedLocked installs a fetched record unless the stale guard
// rejects it; feed membership is recorded either way.
func (c *Cache) absorbFetchedLocked(record *models.ProjectRecord, startSeq uint64) {
	if notify, err := c.applyFetchedLocked(record, startSeq); err == nil {
		go deliver(notify, record)
	}
}

// materializeLocked builds the visible page from canonical records,
// dropping anything soft-deleted since it was paged in.
func (c *Cache) materializeLocked(fs *feedState) *models.FeedPage {
	page := &models.FeedPage{Projects: []models.ProjectRecord{}, NextCursor: fs.nextCursor}
	for _, id := range fs.ids {
		e, ok := c.entries[id]
		if !ok || e.record.Visibility == models.VisibilityDeleted {
			continue
		}
		page.Projects = append(page.Projects, *e.record.Clone())
	}
	return page
}
