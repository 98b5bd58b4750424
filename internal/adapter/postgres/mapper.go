package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/youthforge/forge/internal/dbx"
	"github.com/youthforge/forge/internal/models"
)

// Column order used by every project SELECT in this package.
const projectColumns = `id, slug, title, summary, description, tags, repo_url, demo_url,
	visibility, is_featured, owner, media, likes_count, comments_count,
	moderation_logs, created_at, updated_at, deleted_at`

func isoFromTime(t time.Time) string {
	return t.UTC().Format(models.ISOFormat)
}

func timeFromISO(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(models.ISOFormat, s)
}

// scanProject maps one row onto a ProjectRecord, decoding the JSONB columns
// and normalizing SQL timestamps into ISO strings.
func scanProject(row interface {
	Scan(dest ...any) error
}) (*models.ProjectRecord, error) {
	var (
		p                    models.ProjectRecord
		tagsRaw, ownerRaw    []byte
		mediaRaw, modLogsRaw []byte
		createdAt, updatedAt time.Time
		deletedAt            sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Summary, &p.Description, &tagsRaw,
		&p.RepoURL, &p.DemoURL, &p.Visibility, &p.IsFeatured, &ownerRaw, &mediaRaw,
		&p.LikesCount, &p.CommentsCount, &modLogsRaw, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(tagsRaw, &p.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	if err := json.Unmarshal(ownerRaw, &p.Owner); err != nil {
		return nil, fmt.Errorf("decoding owner: %w", err)
	}
	if err := json.Unmarshal(mediaRaw, &p.Media); err != nil {
		return nil, fmt.Errorf("decoding media: %w", err)
	}
	if err := json.Unmarshal(modLogsRaw, &p.ModerationLogs); err != nil {
		return nil, fmt.Errorf("decoding moderation logs: %w", err)
	}

	p.CreatedAt = isoFromTime(createdAt)
	p.UpdatedAt = isoFromTime(updatedAt)
	if deletedAt.Valid {
		p.DeletedAt = isoFromTime(deletedAt.Time)
	}
	return &p, nil
}

type projectJSON struct {
	tags, owner, media, modLogs []byte
}

func encodeProjectJSON(p *models.ProjectRecord) (projectJSON, error) {
	var out projectJSON
	var err error
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	if out.tags, err = json.Marshal(tags); err != nil {
		return out, err
	}
	if out.owner, err = json.Marshal(p.Owner); err != nil {
		return out, err
	}
	media := p.Media
	if media == nil {
		media = []models.ProjectMedia{}
	}
	if out.media, err = json.Marshal(media); err != nil {
		return out, err
	}
	logs := p.ModerationLogs
	if logs == nil {
		logs = []models.ModerationLogEntry{}
	}
	if out.modLogs, err = json.Marshal(logs); err != nil {
		return out, err
	}
	return out, nil
}

func insertProject(ctx context.Context, tx dbx.DBTX, p *models.ProjectRecord, now time.Time) error {
	enc, err := encodeProjectJSON(p)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (id, slug, title, summary, description, tags, repo_url, demo_url,
			visibility, is_featured, owner, media, likes_count, comments_count,
			moderation_logs, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		p.ID, p.Slug, p.Title, p.Summary, p.Description, enc.tags, p.RepoURL, p.DemoURL,
		string(p.Visibility), p.IsFeatured, enc.owner, enc.media, p.LikesCount,
		p.CommentsCount, enc.modLogs, now, now)
	if err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

func saveProject(ctx context.Context, tx dbx.DBTX, p *models.ProjectRecord) error {
	enc, err := encodeProjectJSON(p)
	if err != nil {
		return err
	}
	updatedAt, err := timeFromISO(p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("parsing updated_at: %w", err)
	}
	var deletedAt any
	if p.DeletedAt != "" {
		t, err := timeFromISO(p.DeletedAt)
		if err != nil {
			return fmt.Errorf("parsing deleted_at: %w", err)
		}
		deletedAt = t
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE projects SET slug = $2, title = $3, summary = $4, description = $5, tags = $6,
			repo_url = $7, demo_url = $8, visibility = $9, is_featured = $10, media = $11,
			moderation_logs = $12, updated_at = $13, deleted_at = $14
		WHERE id = $1`,
		p.ID, p.Slug, p.Title, p.Summary, p.Description, enc.tags, p.RepoURL, p.DemoURL,
		string(p.Visibility), p.IsFeatured, enc.media, enc.modLogs, updatedAt, deletedAt)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}
	return nil
}

func selectProject(ctx context.Context, db dbx.DBTX, where string, args ...any) (*models.ProjectRecord, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE `+where, args...)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func selectProjectForUpdate(ctx context.Context, tx dbx.DBTX, id string) (*models.ProjectRecord, error) {
	return selectProject(ctx, tx, `id = $1 FOR UPDATE`, id)
}

// selectFeedPage runs keyset pagination. Every sort mode orders strictly
// descending with id as the final tiebreak, so a row-value comparison
// against the cursor row's sort columns resumes exactly where the previous
// page stopped, even when rows were inserted or removed in between.
func selectFeedPage(ctx context.Context, db dbx.DBTX, query models.FeedQuery) (*models.FeedPage, error) {
	limit := query.EffectiveLimit()

	var (
		where = []string{`visibility <> 'deleted'`}
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if query.Slug != "" {
		where = append(where, `slug = `+arg(query.Slug))
	}
	if query.Tag != "" {
		where = append(where, `tags ? `+arg(query.Tag))
	}
	if query.FeaturedOnly {
		where = append(where, `is_featured = TRUE`)
	}

	var sortCols []string
	switch query.EffectiveSort() {
	case models.SortPopular:
		sortCols = []string{"likes_count", "created_at", "id"}
	case models.SortFeatured:
		sortCols = []string{"is_featured", "created_at", "id"}
	default:
		sortCols = []string{"created_at", "id"}
	}

	if query.Cursor != "" {
		after, err := selectProject(ctx, db, `id = $1`, query.Cursor)
		if err != nil {
			return nil, err
		}
		// An unknown or deleted cursor restarts from the top rather than
		// failing the whole request.
		if after != nil {
			createdAt, err := timeFromISO(after.CreatedAt)
			if err != nil {
				return nil, err
			}
			vals := make([]string, 0, len(sortCols))
			for _, col := range sortCols {
				switch col {
				case "likes_count":
					vals = append(vals, arg(after.LikesCount))
				case "is_featured":
					vals = append(vals, arg(after.IsFeatured))
				case "created_at":
					vals = append(vals, arg(createdAt))
				case "id":
					vals = append(vals, arg(after.ID))
				}
			}
			where = append(where, fmt.Sprintf("(%s) < (%s)",
				strings.Join(sortCols, ", "), strings.Join(vals, ", ")))
		}
	}

	order := make([]string, len(sortCols))
	for i, col := range sortCols {
		order[i] = col + " DESC"
	}

	q := `SELECT ` + projectColumns + ` FROM projects WHERE ` +
		strings.Join(where, " AND ") +
		` ORDER BY ` + strings.Join(order, ", ") +
		` LIMIT ` + arg(limit)

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	page := &models.FeedPage{Projects: []models.ProjectRecord{}}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		page.Projects = append(page.Projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	// A short page means the feed is exhausted; only a full page advertises
	// a next cursor.
	if len(page.Projects) == limit {
		page.NextCursor = page.Projects[len(page.Projects)-1].ID
	}
	return page, nil
}

func insertComment(ctx context.Context, tx dbx.DBTX, c *models.ProjectComment, now time.Time) error {
	author, err := json.Marshal(c.Author)
	if err != nil {
		return err
	}
	var parent any
	if c.ParentID != "" {
		parent = c.ParentID
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO project_comments (id, project_id, body, author, parent_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.ProjectID, c.Body, author, parent, now)
	if err != nil {
		return fmt.Errorf("inserting comment: %w", err)
	}
	return nil
}

// selectCommentPage returns one newest-first page. The cursor is the id of
// the last comment of the previous page; its (created_at, id) pair anchors
// the keyset predicate.
func selectCommentPage(ctx context.Context, db dbx.DBTX, projectID, cursor string) (*models.CommentPage, error) {
	var (
		where = `project_id = $1`
		args  = []any{projectID}
	)
	if cursor != "" {
		var createdAt time.Time
		err := db.QueryRowContext(ctx,
			`SELECT created_at FROM project_comments WHERE id = $1`, cursor).
			Scan(&createdAt)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if err == nil {
			args = append(args, createdAt, cursor)
			where += ` AND (created_at, id) < ($2, $3)`
		}
	}

	args = append(args, models.CommentPageSize)
	rows, err := db.QueryContext(ctx, `
		SELECT id, project_id, body, author, parent_id, created_at
		FROM project_comments WHERE `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT $`+fmt.Sprint(len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	page := &models.CommentPage{Comments: []models.ProjectComment{}}
	for rows.Next() {
		var (
			c         models.ProjectComment
			authorRaw []byte
			parentID  sql.NullString
			createdAt time.Time
		)
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Body, &authorRaw, &parentID, &createdAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if err := json.Unmarshal(authorRaw, &c.Author); err != nil {
			return nil, fmt.Errorf("decoding author: %w", err)
		}
		c.ParentID = parentID.String
		c.CreatedAt = isoFromTime(createdAt)
		page.Comments = append(page.Comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	if len(page.Comments) == models.CommentPageSize {
		page.NextCursor = page.Comments[len(page.Comments)-1].ID
	}
	return page, nil
}
