// Package memory implements ProjectsAdapter over process-local maps. It
// backs development mode and tests, and emulates realtime push through an
// in-process listener registry.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/youthforge/forge/internal/adapter"
	"github.com/youthforge/forge/internal/common"
	"github.com/youthforge/forge/internal/models"
)

// Adapter is an in-memory ProjectsAdapter. All maps are guarded by one
// mutex; listener callbacks always run outside of it.
type Adapter struct {
	mu        sync.Mutex
	projects  map[string]*models.ProjectRecord
	slugIndex map[string]string
	comments  map[string][]models.ProjectComment // newest first
	likes     map[string]map[string]struct{}

	projectListeners map[string]map[int]adapter.ProjectCallback // keyed by project id
	slugListeners    map[string]map[int]adapter.ProjectCallback // keyed by unresolved slug
	commentListeners map[string]map[int]commentListener
	nextToken        int
}

type commentListener struct {
	cb     adapter.CommentsCallback
	cursor string
}

func New() *Adapter {
	return &Adapter{
		projects:         make(map[string]*models.ProjectRecord),
		slugIndex:        make(map[string]string),
		comments:         make(map[string][]models.ProjectComment),
		likes:            make(map[string]map[string]struct{}),
		projectListeners: make(map[string]map[int]adapter.ProjectCallback),
		slugListeners:    make(map[string]map[int]adapter.ProjectCallback),
		commentListeners: make(map[string]map[int]commentListener),
	}
}

// resolveID maps an id-or-slug to a project id. Caller holds a.mu.
func (a *Adapter) resolveID(idOrSlug string) (string, bool) {
	if _, ok := a.projects[idOrSlug]; ok {
		return idOrSlug, true
	}
	id, ok := a.slugIndex[idOrSlug]
	return id, ok
}

func (a *Adapter) CreateProject(ctx context.Context, input models.CreateProjectInput) (*models.ProjectRecord, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	if _, taken := a.slugIndex[input.Slug]; taken {
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", common.ErrSlugTaken, input.Slug)
	}

	id := input.ProjectID
	if id == "" {
		id = "proj_" + uuid.NewString()
	}
	now := models.NowISO()

	record := &models.ProjectRecord{
		ID:             id,
		Slug:           input.Slug,
		Title:          input.Title,
		Summary:        input.Summary,
		Description:    input.Description,
		Tags:           append([]string(nil), input.Tags...),
		RepoURL:        input.RepoURL,
		DemoURL:        input.DemoURL,
		Visibility:     input.Visibility,
		IsFeatured:     input.IsFeatured,
		Owner:          input.Owner,
		Media:          append([]models.ProjectMedia(nil), input.Media...),
		LikesCount:     0,
		CommentsCount:  0,
		CreatedAt:      now,
		UpdatedAt:      now,
		ModerationLogs: models.TrimModerationLogs(append([]models.ModerationLogEntry(nil), input.ModerationLogs...)),
	}

	a.projects[id] = record
	a.slugIndex[record.Slug] = id
	a.comments[id] = nil
	a.likes[id] = make(map[string]struct{})
	out := record.Clone()
	a.mu.Unlock()

	a.emitProject(id)
	return out, nil
}

func (a *Adapter) UpdateProject(ctx context.Context, input models.UpdateProjectInput) (*models.ProjectRecord, error) {
	a.mu.Lock()
	current, ok := a.projects[input.ProjectID]
	if !ok {
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: project %q", common.ErrNotFound, input.ProjectID)
	}

	// Merge onto a clone first so a failed slug check leaves nothing behind.
	next := current.Clone()
	input.ApplyTo(next)

	if next.Slug != current.Slug {
		if owner, taken := a.slugIndex[next.Slug]; taken && owner != next.ID {
			a.mu.Unlock()
			return nil, fmt.Errorf("%w: %q", common.ErrSlugTaken, next.Slug)
		}
		delete(a.slugIndex, current.Slug)
		a.slugIndex[next.Slug] = next.ID
	}

	a.projects[next.ID] = next
	out := next.Clone()
	a.mu.Unlock()

	a.emitProject(input.ProjectID)
	return out, nil
}

func (a *Adapter) DeleteProject(ctx context.Context, projectID string) error {
	a.mu.Lock()
	project, ok := a.projects[projectID]
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("%w: project %q", common.ErrNotFound, projectID)
	}

	now := models.NowISO()
	project.Visibility = models.VisibilityDeleted
	project.DeletedAt = now
	project.UpdatedAt = now
	entry := models.ModerationLogEntry{
		ID:        "mod_" + uuid.NewString(),
		ActorID:   "system",
		Action:    models.ModerationSoftDelete,
		Reason:    "soft delete",
		CreatedAt: now,
	}
	project.ModerationLogs = models.TrimModerationLogs(append([]models.ModerationLogEntry{entry}, project.ModerationLogs...))
	a.mu.Unlock()

	a.emitProject(projectID)
	return nil
}

func (a *Adapter) UploadProjectMedia(ctx context.Context, projectID string, files []models.UploadFile, onProgress models.UploadProgress) ([]models.ProjectMedia, error) {
	a.mu.Lock()
	_, ok := a.projects[projectID]
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: project %q", common.ErrNotFound, projectID)
	}

	if len(files) > models.ProjectImageLimit {
		files = files[:models.ProjectImageLimit]
	}

	out := make([]models.ProjectMedia, 0, len(files))
	for _, f := range files {
		if onProgress != nil {
			onProgress(f.Name, 100)
		}
		out = append(out, models.ProjectMedia{
			ID:          "media_" + uuid.NewString(),
			Kind:        models.MediaImage,
			Alt:         f.Name,
			StoragePath: "mock/" + f.Name,
			DownloadURL: "mock://" + f.Name,
			Size:        f.Size,
			ContentType: f.ContentType,
			CreatedAt:   models.NowISO(),
		})
	}
	return out, nil
}

func (a *Adapter) FetchProjectByID(ctx context.Context, idOrSlug string) (*models.ProjectRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.resolveID(idOrSlug)
	if !ok {
		return nil, nil
	}
	return a.projects[id].Clone(), nil
}

func (a *Adapter) FetchProjects(ctx context.Context, query models.FeedQuery) (*models.FeedPage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	matched := make([]*models.ProjectRecord, 0, len(a.projects))
	for _, p := range a.projects {
		if p.Visibility == models.VisibilityDeleted {
			continue
		}
		if query.Slug != "" && p.Slug != query.Slug {
			continue
		}
		if (query.FeaturedOnly || query.EffectiveSort() == models.SortFeatured) && !p.IsFeatured {
			continue
		}
		if query.Tag != "" && !containsTag(p.Tags, query.Tag) {
			continue
		}
		matched = append(matched, p)
	}

	sortProjects(matched, query.EffectiveSort())

	if query.Cursor != "" {
		start := 0
		for i, p := range matched {
			if p.ID == query.Cursor {
				start = i + 1
				break
			}
		}
		matched = matched[start:]
	}

	limit := query.EffectiveLimit()
	if len(matched) > limit {
		matched = matched[:limit]
	}

	page := &models.FeedPage{Projects: make([]models.ProjectRecord, 0, len(matched))}
	for _, p := range matched {
		page.Projects = append(page.Projects, *p.Clone())
	}
	if len(matched) == limit && limit > 0 {
		page.NextCursor = matched[len(matched)-1].ID
	}
	return page, nil
}

func (a *Adapter) CreateComment(ctx context.Context, projectID string, input models.CreateCommentInput) (*models.ProjectComment, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	project, ok := a.projects[projectID]
	if !ok {
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: project %q", common.ErrNotFound, projectID)
	}

	comment := models.ProjectComment{
		ID:        "comment_" + uuid.NewString(),
		ProjectID: projectID,
		Body:      input.Body,
		Author:    input.Author,
		ParentID:  input.ParentID,
		CreatedAt: models.NowISO(),
	}
	// Insertion and counter bump happen under the same lock hold: either
	// both are visible or neither is.
	a.comments[projectID] = append([]models.ProjectComment{comment}, a.comments[projectID]...)
	project.CommentsCount++
	project.UpdatedAt = comment.CreatedAt
	a.mu.Unlock()

	a.emitProject(projectID)
	a.emitComments(projectID)
	return &comment, nil
}

func (a *Adapter) ToggleLike(ctx context.Context, projectID, userID string) (*models.ToggleLikeResult, error) {
	a.mu.Lock()
	project, ok := a.projects[projectID]
	if !ok {
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: project %q", common.ErrNotFound, projectID)
	}

	likes := a.likes[projectID]
	if likes == nil {
		likes = make(map[string]struct{})
		a.likes[projectID] = likes
	}

	_, hasLiked := likes[userID]
	if hasLiked {
		delete(likes, userID)
	} else {
		likes[userID] = struct{}{}
	}
	// The membership set is the source of truth for the counter.
	project.LikesCount = len(likes)
	project.UpdatedAt = models.NowISO()
	result := &models.ToggleLikeResult{Liked: !hasLiked, LikesCount: project.LikesCount}
	a.mu.Unlock()

	a.emitProject(projectID)
	return result, nil
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func sortProjects(projects []*models.ProjectRecord, mode models.Sort) {
	switch mode {
	case models.SortPopular:
		sort.SliceStable(projects, func(i, j int) bool {
			if projects[i].LikesCount != projects[j].LikesCount {
				return projects[i].LikesCount > projects[j].LikesCount
			}
			return projects[i].CreatedAt > projects[j].CreatedAt
		})
	case models.SortFeatured:
		sort.SliceStable(projects, func(i, j int) bool {
			if projects[i].IsFeatured != projects[j].IsFeatured {
				return projects[i].IsFeatured
			}
			return projects[i].CreatedAt > projects[j].CreatedAt
		})
	default:
		sort.SliceStable(projects, func(i, j int) bool {
			if projects[i].CreatedAt != projects[j].CreatedAt {
				return projects[i].CreatedAt > projects[j].CreatedAt
			}
			return projects[i].ID > projects[j].ID
		})
	}
}
