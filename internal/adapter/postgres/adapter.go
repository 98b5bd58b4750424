// Package postgres implements ProjectsAdapter over PostgreSQL (pgx stdlib
// driver). Counters are maintained transactionally: the like counter is
// recomputed from the membership table inside the same transaction that
// flips the membership row, so the two can never diverge.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/youthforge/forge/internal/adapter"
	"github.com/youthforge/forge/internal/adapter/postgres/migrations"
	"github.com/youthforge/forge/internal/common"
	"github.com/youthforge/forge/internal/dbx"
	"github.com/youthforge/forge/internal/logging"
	"github.com/youthforge/forge/internal/media"
	"github.com/youthforge/forge/internal/models"
)

// Adapter is a PostgreSQL-backed ProjectsAdapter. Realtime push is fanned
// out in-process after each write through the same listener registry shape
// the memory adapter uses.
//
// TODO: fan writes out across processes with pg LISTEN/NOTIFY so listeners
// on other instances see them too.
type Adapter struct {
	db       *sql.DB
	uploader *media.Uploader
	logger   logging.Logger

	mu               sync.Mutex
	projectListeners map[string]map[int]adapter.ProjectCallback
	slugListeners    map[string]map[int]adapter.ProjectCallback
	commentListeners map[string]map[int]commentListener
	nextToken        int
}

type commentListener struct {
	cb     adapter.CommentsCallback
	cursor string
}

func New(db *sql.DB, uploader *media.Uploader, logger logging.Logger) *Adapter {
	return &Adapter{
		db:               db,
		uploader:         uploader,
		logger:           logger,
		projectListeners: make(map[string]map[int]adapter.ProjectCallback),
		slugListeners:    make(map[string]map[int]adapter.ProjectCallback),
		commentListeners: make(map[string]map[int]commentListener),
	}
}

// Open connects to the database and applies pending migrations.
func Open(ctx context.Context, dsn string, uploader *media.Uploader, logger logging.Logger) (*Adapter, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return nil, err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return New(db, uploader, logger), nil
}

func (a *Adapter) Close() error {
	return a.db.Close()
}

func (a *Adapter) CreateProject(ctx context.Context, input models.CreateProjectInput) (*models.ProjectRecord, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	id := input.ProjectID
	if id == "" {
		id = "proj_" + uuid.NewString()
	}
	now := time.Now().UTC()

	var created *models.ProjectRecord
	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		taken, err := slugInUse(ctx, tx, input.Slug, "")
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: %q", common.ErrSlugTaken, input.Slug)
		}

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
			CreatedAt:      isoFromTime(now),
			UpdatedAt:      isoFromTime(now),
			ModerationLogs: models.TrimModerationLogs(append([]models.ModerationLogEntry(nil), input.ModerationLogs...)),
		}

		if err := insertProject(ctx, tx, record, now); err != nil {
			return err
		}
		created = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.emitProject(created.ID)
	return created, nil
}

func (a *Adapter) UpdateProject(ctx context.Context, input models.UpdateProjectInput) (*models.ProjectRecord, error) {
	var updated *models.ProjectRecord
	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		current, err := selectProjectForUpdate(ctx, tx, input.ProjectID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%w: project %q", common.ErrNotFound, input.ProjectID)
		}

		next := current.Clone()
		input.ApplyTo(next)

		if next.Slug != current.Slug {
			taken, err := slugInUse(ctx, tx, next.Slug, next.ID)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("%w: %q", common.ErrSlugTaken, next.Slug)
			}
		}

		if err := saveProject(ctx, tx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.emitProject(updated.ID)
	return updated, nil
}

func (a *Adapter) DeleteProject(ctx context.Context, projectID string) error {
	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		current, err := selectProjectForUpdate(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%w: project %q", common.ErrNotFound, projectID)
		}

		now := models.NowISO()
		current.Visibility = models.VisibilityDeleted
		current.DeletedAt = now
		current.UpdatedAt = now
		entry := models.ModerationLogEntry{
			ID:        "mod_" + uuid.NewString(),
			ActorID:   "system",
			Action:    models.ModerationSoftDelete,
			Reason:    "soft delete",
			CreatedAt: now,
		}
		current.ModerationLogs = models.TrimModerationLogs(append([]models.ModerationLogEntry{entry}, current.ModerationLogs...))

		return saveProject(ctx, tx, current)
	})
	if err != nil {
		return err
	}

	a.emitProject(projectID)
	return nil
}

func (a *Adapter) UploadProjectMedia(ctx context.Context, projectID string, files []models.UploadFile, onProgress models.UploadProgress) ([]models.ProjectMedia, error) {
	record, err := a.FetchProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: project %q", common.ErrNotFound, projectID)
	}

	if len(files) > models.ProjectImageLimit {
		files = files[:models.ProjectImageLimit]
	}

	out := make([]models.ProjectMedia, 0, len(files))
	for _, f := range files {
		m, err := a.uploader.Upload(ctx, projectID, f, onProgress)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}

func (a *Adapter) FetchProjectByID(ctx context.Context, idOrSlug string) (*models.ProjectRecord, error) {
	record, err := selectProject(ctx, a.db, `id = $1`, idOrSlug)
	if err != nil {
		return nil, err
	}
	if record != nil {
		return record, nil
	}
	return selectProject(ctx, a.db, `slug = $1 AND visibility <> 'deleted'`, idOrSlug)
}

func (a *Adapter) FetchProjects(ctx context.Context, query models.FeedQuery) (*models.FeedPage, error) {
	return selectFeedPage(ctx, a.db, query)
}

func (a *Adapter) CreateComment(ctx context.Context, projectID string, input models.CreateCommentInput) (*models.ProjectComment, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	comment := &models.ProjectComment{
		ID:        "comment_" + uuid.NewString(),
		ProjectID: projectID,
		Body:      input.Body,
		Author:    input.Author,
		ParentID:  input.ParentID,
	}
	now := time.Now().UTC()

	// Comment insertion and the counter bump commit or roll back together.
	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		exists, err := projectExistsForUpdate(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: project %q", common.ErrNotFound, projectID)
		}
		if err := insertComment(ctx, tx, comment, now); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE projects SET comments_count = comments_count + 1, updated_at = $2 WHERE id = $1`,
			projectID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	comment.CreatedAt = isoFromTime(now)

	a.emitProject(projectID)
	a.emitComments(projectID)
	return comment, nil
}

func (a *Adapter) ToggleLike(ctx context.Context, projectID, userID string) (*models.ToggleLikeResult, error) {
	result := &models.ToggleLikeResult{}
	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		exists, err := projectExistsForUpdate(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: project %q", common.ErrNotFound, projectID)
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM project_likes WHERE project_id = $1 AND user_id = $2`,
			projectID, userID)
		if err != nil {
			return err
		}
		removed, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if removed == 0 {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO project_likes (project_id, user_id) VALUES ($1, $2)`,
				projectID, userID); err != nil {
				return err
			}
			result.Liked = true
		}

		// The live membership table is the source of truth; the counter is
		// rewritten from it, never incremented blindly.
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM project_likes WHERE project_id = $1`,
			projectID).Scan(&result.LikesCount); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE projects SET likes_count = $2, updated_at = $3 WHERE id = $1`,
			projectID, result.LikesCount, time.Now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}

	a.emitProject(projectID)
	return result, nil
}

// projectExistsForUpdate locks the project row for the duration of the
// transaction so counter updates serialize per project.
func projectExistsForUpdate(ctx context.Context, tx dbx.DBTX, projectID string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id = $1 FOR UPDATE`, projectID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

func slugInUse(ctx context.Context, tx dbx.DBTX, slug, excludeID string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM projects WHERE slug = $1 AND visibility <> 'deleted' AND id <> $2 LIMIT 1`,
		slug, excludeID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}
