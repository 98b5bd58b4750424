package models

import (
	"fmt"
	"strings"

	"github.com/youthforge/forge/internal/common"
)

// ProjectComment is a single comment on exactly one project. Comments are
// immutable after creation; ParentID is a flat reply marker, not a deeply
// validated thread pointer.
type ProjectComment struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Body      string `json:"body"`
	Author    Owner  `json:"author"`
	ParentID  string `json:"parentId,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// CommentPage is one newest-first page of comments. NextCursor is set iff
// the page was full.
type CommentPage struct {
	Comments   []ProjectComment `json:"comments"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

// CreateCommentInput carries a new comment body and author.
type CreateCommentInput struct {
	Body     string `json:"body"`
	ParentID string `json:"parentId,omitempty"`
	Author   Owner  `json:"author"`
}

// Validate checks body bounds and author presence before any write occurs.
func (in *CreateCommentInput) Validate() error {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return fmt.Errorf("%w: body is empty", common.ErrInvalidCommentBody)
	}
	if len(in.Body) > CommentBodyMaxLen {
		return fmt.Errorf("%w: body exceeds %d characters", common.ErrInvalidCommentBody, CommentBodyMaxLen)
	}
	if in.Author.ID == "" {
		return fmt.Errorf("%w: author is required", common.ErrInvalidInput)
	}
	return nil
}

// ToggleLikeResult reports the post-mutation like state for a viewer.
// LikesCount is derived from the adapter's live count of like records.
type ToggleLikeResult struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likesCount"`
}
