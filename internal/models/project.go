// Package models defines the canonical shapes of projects, comments, and
// media attachments shared by every adapter and the cache layer.
//
// Timestamps are carried as ISO-8601 strings. Adapters normalize whatever
// their backing store uses (SQL timestamps etc.) at the boundary so that no
// store-native time type ever leaks past this package.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/youthforge/forge/internal/common"
)

// Visibility states of a project. Deleted is a soft-delete marker; the
// record is never physically removed.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityDeleted  Visibility = "deleted"
)

// Sort modes for the project feed.
type Sort string

const (
	SortNew      Sort = "new"
	SortPopular  Sort = "popular"
	SortFeatured Sort = "featured"
)

// Role of a project owner or comment author.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// ModerationAction identifies an entry in a project's moderation log.
type ModerationAction string

const (
	ModerationFeature    ModerationAction = "feature"
	ModerationUnfeature  ModerationAction = "unfeature"
	ModerationSoftDelete ModerationAction = "soft-delete"
	ModerationRestore    ModerationAction = "restore"
	ModerationNote       ModerationAction = "note"
)

// Bounds shared by all adapters.
const (
	ProjectPageSize      = 12
	CommentPageSize      = 20
	ProjectImageLimit    = 5
	ProjectImageMaxBytes = 1_000_000
	ModerationLogLimit   = 50
	CommentBodyMaxLen    = 2000
	SlugMaxLen           = 64
)

// Owner describes the single owner of a project (also used for comment
// authors).
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Role        Role   `json:"role,omitempty"`
}

// ModerationLogEntry is one moderation action taken against a project.
type ModerationLogEntry struct {
	ID        string           `json:"id"`
	ActorID   string           `json:"actorId"`
	Action    ModerationAction `json:"action"`
	Reason    string           `json:"reason,omitempty"`
	CreatedAt string           `json:"createdAt"`
}

// ProjectRecord is a published project.
type ProjectRecord struct {
	ID             string               `json:"id"`
	Slug           string               `json:"slug"`
	Title          string               `json:"title"`
	Summary        string               `json:"summary"`
	Description    string               `json:"description"`
	Tags           []string             `json:"tags"`
	RepoURL        string               `json:"repoUrl,omitempty"`
	DemoURL        string               `json:"demoUrl,omitempty"`
	Visibility     Visibility           `json:"visibility"`
	IsFeatured     bool                 `json:"isFeatured"`
	Owner          Owner                `json:"owner"`
	Media          []ProjectMedia       `json:"media"`
	LikesCount     int                  `json:"likesCount"`
	CommentsCount  int                  `json:"commentsCount"`
	LikedByViewer  bool                 `json:"likedByViewer,omitempty"`
	CreatedAt      string               `json:"createdAt"`
	UpdatedAt      string               `json:"updatedAt,omitempty"`
	DeletedAt      string               `json:"deletedAt,omitempty"`
	ModerationLogs []ModerationLogEntry `json:"moderationLogs,omitempty"`
}

// Clone returns a deep copy. Adapters and the cache hand out clones so no
// caller can mutate shared state through a returned record.
func (p *ProjectRecord) Clone() *ProjectRecord {
	if p == nil {
		return nil
	}
	out := *p
	out.Tags = append([]string(nil), p.Tags...)
	out.Media = append([]ProjectMedia(nil), p.Media...)
	out.ModerationLogs = append([]ModerationLogEntry(nil), p.ModerationLogs...)
	return &out
}

// TrimModerationLogs caps a moderation log at ModerationLogLimit entries,
// keeping the newest (head of the list). Older entries are dropped.
func TrimModerationLogs(logs []ModerationLogEntry) []ModerationLogEntry {
	if len(logs) <= ModerationLogLimit {
		return logs
	}
	return logs[:ModerationLogLimit]
}

// ISOFormat is fixed-width millisecond ISO-8601. Fixed width keeps the
// strings lexicographically ordered, which cursor comparisons rely on.
const ISOFormat = "2006-01-02T15:04:05.000Z07:00"

// NowISO returns the current UTC instant as an ISO-8601 string.
func NowISO() string {
	return time.Now().UTC().Format(ISOFormat)
}

// CreateProjectInput carries the fields needed to publish a project.
// ProjectID is optional; the adapter assigns one when absent.
type CreateProjectInput struct {
	ProjectID      string               `json:"projectId,omitempty"`
	Owner          Owner                `json:"owner"`
	Title          string               `json:"title"`
	Slug           string               `json:"slug"`
	Summary        string               `json:"summary"`
	Description    string               `json:"description"`
	Tags           []string             `json:"tags"`
	RepoURL        string               `json:"repoUrl,omitempty"`
	DemoURL        string               `json:"demoUrl,omitempty"`
	Visibility     Visibility           `json:"visibility"`
	Media          []ProjectMedia       `json:"media"`
	IsFeatured     bool                 `json:"isFeatured,omitempty"`
	ModerationLogs []ModerationLogEntry `json:"moderationLogs,omitempty"`
}

// Validate checks the input before any write occurs.
func (in *CreateProjectInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", common.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Slug) == "" {
		return fmt.Errorf("%w: slug is required", common.ErrInvalidInput)
	}
	if len(in.Slug) > SlugMaxLen {
		return fmt.Errorf("%w: slug exceeds %d characters", common.ErrInvalidInput, SlugMaxLen)
	}
	if in.Owner.ID == "" {
		return fmt.Errorf("%w: owner is required", common.ErrInvalidInput)
	}
	if len(in.Media) > ProjectImageLimit {
		return fmt.Errorf("%w: projects support up to %d images", common.ErrMediaLimitExceeded, ProjectImageLimit)
	}
	switch in.Visibility {
	case VisibilityPublic, VisibilityUnlisted, VisibilityDeleted:
	default:
		return fmt.Errorf("%w: unknown visibility %q", common.ErrInvalidInput, in.Visibility)
	}
	return nil
}

// UpdateProjectInput carries a partial update. Nil pointer/slice fields are
// left untouched; present fields are merged over the stored record.
type UpdateProjectInput struct {
	ProjectID      string               `json:"projectId"`
	Title          *string              `json:"title,omitempty"`
	Slug           *string              `json:"slug,omitempty"`
	Summary        *string              `json:"summary,omitempty"`
	Description    *string              `json:"description,omitempty"`
	Tags           []string             `json:"tags,omitempty"`
	RepoURL        *string              `json:"repoUrl,omitempty"`
	DemoURL        *string              `json:"demoUrl,omitempty"`
	Visibility     *Visibility          `json:"visibility,omitempty"`
	Media          []ProjectMedia       `json:"media,omitempty"`
	IsFeatured     *bool                `json:"isFeatured,omitempty"`
	ModerationLogs []ModerationLogEntry `json:"moderationLogs,omitempty"`
}

// ApplyTo merges the update over a stored record, bumping UpdatedAt. Slug
// uniqueness is the adapter's responsibility; this only does the merge.
func (in *UpdateProjectInput) ApplyTo(p *ProjectRecord) {
	if in.Title != nil {
		p.Title = *in.Title
	}
	if in.Slug != nil {
		p.Slug = *in.Slug
	}
	if in.Summary != nil {
		p.Summary = *in.Summary
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Tags != nil {
		p.Tags = append([]string(nil), in.Tags...)
	}
	if in.RepoURL != nil {
		p.RepoURL = *in.RepoURL
	}
	if in.DemoURL != nil {
		p.DemoURL = *in.DemoURL
	}
	if in.Visibility != nil {
		p.Visibility = *in.Visibility
	}
	if in.Media != nil {
		p.Media = append([]ProjectMedia(nil), in.Media...)
	}
	if in.IsFeatured != nil {
		p.IsFeatured = *in.IsFeatured
	}
	if in.ModerationLogs != nil {
		p.ModerationLogs = TrimModerationLogs(append([]ModerationLogEntry(nil), in.ModerationLogs...))
	}
	p.UpdatedAt = NowISO()
}
