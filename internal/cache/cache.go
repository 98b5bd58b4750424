// Package cache is an in-process read/write-through layer over a
// ProjectsAdapter. It keeps one canonical record per project id with a
// secondary slug index, so a mutation is visible through every lookup key
// and every feed the moment it lands. Writes are stamped with a sequence
// number; a fetch that settles after a newer local write is discarded
// instead of clobbering it.
package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/youthforge/forge/internal/adapter"
	"github.com/youthforge/forge/internal/common"
	"github.com/youthforge/forge/internal/logging"
	"github.com/youthforge/forge/internal/models"
)

// Cache wraps a backend adapter. All exported methods are safe for
// concurrent use.
type Cache struct {
	mu      sync.Mutex
	backend adapter.ProjectsAdapter
	logger  logging.Logger

	entries   map[string]*entry
	slugIndex map[string]string
	feeds     map[string]*feedState
	comments  map[string]*commentState

	projectWatchers map[string]map[int]adapter.ProjectCallback
	commentWatchers map[string]map[int]adapter.CommentsCallback
	upstreamProject map[string]adapter.Unsubscribe
	upstreamComment map[string]adapter.Unsubscribe
	nextToken       int

	// seq increases on every local write. Entries remember the seq of the
	// write that produced them, which is what the stale-fetch guard compares
	// against.
	seq uint64
}

type entry struct {
	record    *models.ProjectRecord
	lastWrite uint64
}

func New(backend adapter.ProjectsAdapter, logger logging.Logger) *Cache {
	return &Cache{
		backend:         backend,
		logger:          logger,
		entries:         make(map[string]*entry),
		slugIndex:       make(map[string]string),
		feeds:           make(map[string]*feedState),
		comments:        make(map[string]*commentState),
		projectWatchers: make(map[string]map[int]adapter.ProjectCallback),
		commentWatchers: make(map[string]map[int]adapter.CommentsCallback),
		upstreamProject: make(map[string]adapter.Unsubscribe),
		upstreamComment: make(map[string]adapter.Unsubscribe),
	}
}

// GetProject resolves idOrSlug against the canonical store (id first, then
// the slug index) and loads through the backend on a miss. Returns
// (nil, nil) when the project does not exist anywhere.
func (c *Cache) GetProject(ctx context.Context, idOrSlug string) (*models.ProjectRecord, error) {
	c.mu.Lock()
	if e := c.lookupLocked(idOrSlug); e != nil {
		record := e.record.Clone()
		c.mu.Unlock()
		return record, nil
	}
	startSeq := c.seq
	c.mu.Unlock()

	fetched, err := c.backend.FetchProjectByID(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if fetched == nil {
		return nil, nil
	}

	c.mu.Lock()
	notify, err := c.applyFetchedLocked(fetched, startSeq)
	// On a lost race the cached record is newer than the fetch result, so it
	// wins and the fetch is dropped.
	if err != nil {
		c.logger.Debug(ctx, "discarding stale fetch", "project", fetched.ID)
		if e, ok := c.entries[fetched.ID]; ok {
			fetched = e.record
		}
	}
	record := fetched.Clone()
	c.mu.Unlock()

	deliver(notify, record)
	return record, nil
}

// lookupLocked resolves an identifier to its canonical entry, or nil.
func (c *Cache) lookupLocked(idOrSlug string) *entry {
	if e, ok := c.entries[idOrSlug]; ok {
		return e
	}
	if id, ok := c.slugIndex[idOrSlug]; ok {
		return c.entries[id]
	}
	return nil
}

// storeLocked installs record as the canonical state for its id, reindexes
// the slug, stamps the write, and returns the watcher callbacks to notify
// once the lock is released.
func (c *Cache) storeLocked(record *models.ProjectRecord) []adapter.ProjectCallback {
	c.seq++
	e, ok := c.entries[record.ID]
	if !ok {
		e = &entry{}
		c.entries[record.ID] = e
	}
	if e.record != nil && e.record.Slug != record.Slug {
		delete(c.slugIndex, e.record.Slug)
	}
	e.record = record
	e.lastWrite = c.seq
	if record.Visibility != models.VisibilityDeleted {
		c.slugIndex[record.Slug] = record.ID
	} else {
		delete(c.slugIndex, record.Slug)
	}
	return c.watchersForLocked(record)
}

// applyFetchedLocked installs a backend fetch result unless a local write
// landed on the same project after the fetch started.
func (c *Cache) applyFetchedLocked(record *models.ProjectRecord, startSeq uint64) ([]adapter.ProjectCallback, error) {
	if e, ok := c.entries[record.ID]; ok && e.lastWrite > startSeq {
		return nil, fmt.Errorf("%w: project %q", common.ErrStaleWrite, record.ID)
	}
	return c.storeLocked(record), nil
}

func (c *Cache) watchersForLocked(record *models.ProjectRecord) []adapter.ProjectCallback {
	var out []adapter.ProjectCallback
	for _, cb := range c.projectWatchers[record.ID] {
		out = append(out, cb)
	}
	for _, cb := range c.projectWatchers[record.Slug] {
		out = append(out, cb)
	}
	return out
}

func deliver(targets []adapter.ProjectCallback, record *models.ProjectRecord) {
	for _, cb := range targets {
		cb(record.Clone())
	}
}
