// Package adapter declares the capability interface every project backend
// must satisfy, plus the swappable Provider that selects the active one.
//
// Two implementations exist: an in-memory store (adapter/memory) used for
// development and tests, and a PostgreSQL-backed store (adapter/postgres).
package adapter

import (
	"context"

	"github.com/youthforge/forge/internal/models"
)

// Unsubscribe deregisters a listener. It is idempotent: calling it more than
// once is safe.
type Unsubscribe func()

// ProjectCallback receives project snapshots. A nil record means the project
// does not exist (or no longer matches the watched identifier).
type ProjectCallback func(*models.ProjectRecord)

// CommentsCallback receives newest-first comment pages.
type CommentsCallback func(models.CommentPage)

// ProjectsAdapter is the backend contract for project storage.
//
// Failure semantics shared by all implementations:
//   - "not found" for a referenced project is common.ErrNotFound; read-single
//     operations return (nil, nil) instead of an error.
//   - validation failures (slug collision, attachment limits, comment bounds)
//     are raised before any partial write occurs.
//   - no operation partially applies an effect.
type ProjectsAdapter interface {
	// CreateProject stores a new project. It fails with common.ErrSlugTaken
	// when the slug is already in use, assigns an id when the input carries
	// none, and returns the full stored record with zeroed counters.
	CreateProject(ctx context.Context, input models.CreateProjectInput) (*models.ProjectRecord, error)

	// UpdateProject merges the provided fields over the stored record. A slug
	// change re-validates uniqueness excluding the project's own prior slug.
	// UpdatedAt is always bumped; moderation logs are truncated to the cap.
	UpdateProject(ctx context.Context, input models.UpdateProjectInput) (*models.ProjectRecord, error)

	// DeleteProject soft-deletes: visibility becomes "deleted", DeletedAt and
	// UpdatedAt are stamped, and a soft-delete moderation entry is prepended.
	// Data is never physically removed.
	DeleteProject(ctx context.Context, projectID string) error

	// UploadProjectMedia stores at most models.ProjectImageLimit files,
	// truncating beyond that, reports progress per file by name, and returns
	// one media record per accepted file preserving input order.
	UploadProjectMedia(ctx context.Context, projectID string, files []models.UploadFile, onProgress models.UploadProgress) ([]models.ProjectMedia, error)

	// FetchProjectByID tries an id lookup first and falls back to slug.
	// Returns (nil, nil) when absent.
	FetchProjectByID(ctx context.Context, idOrSlug string) (*models.ProjectRecord, error)

	// ListenProject registers for push updates. At least one initial value
	// (current state or nil) is delivered asynchronously even if nothing
	// changes afterwards.
	ListenProject(idOrSlug string, cb ProjectCallback) Unsubscribe

	// FetchProjects returns one feed page. NextCursor is present iff the page
	// was full; pass it back verbatim for the next page.
	FetchProjects(ctx context.Context, query models.FeedQuery) (*models.FeedPage, error)

	// CreateComment inserts a comment and increments the owning project's
	// CommentsCount atomically with the insertion.
	CreateComment(ctx context.Context, projectID string, input models.CreateCommentInput) (*models.ProjectComment, error)

	// ListenComments pushes newest-first pages of up to models.CommentPageSize
	// comments, with the same initial-value contract as ListenProject. The
	// cursor, when non-empty, selects the page to watch.
	ListenComments(projectID string, cb CommentsCallback, cursor string) Unsubscribe

	// ToggleLike flips the (project, user) like record: removing and
	// decrementing when present (floored at zero), adding and incrementing
	// otherwise. The returned count is derived from the live set of like
	// records, never from a separately tracked value.
	ToggleLike(ctx context.Context, projectID, userID string) (*models.ToggleLikeResult, error)
}
