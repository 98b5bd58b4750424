package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/youthforge/forge/internal/adapter"
	"github.com/youthforge/forge/internal/auth"
	"github.com/youthforge/forge/internal/cache"
	"github.com/youthforge/forge/internal/common"
	"github.com/youthforge/forge/internal/models"
	"github.com/youthforge/forge/internal/slugx"
)

type handlers struct {
	backend  adapter.ProjectsAdapter
	store    *cache.Cache
	secret   []byte
	validity time.Duration
	respond  responder
}

// issueToken hands out an anonymous viewer token so likes and comments can
// be attributed to a stable identity.
func (h *handlers) issueToken(w http.ResponseWriter, req *http.Request) {
	viewerID := "viewer_" + uuid.NewString()
	token, err := auth.GenerateToken(viewerID, h.secret, h.validity)
	if err != nil {
		h.respond.writeError(w, err)
		return
	}
	h.respond.writeJSON(w, http.StatusOK, map[string]string{
		"viewerId": viewerID,
		"token":    token,
	})
}

// listProjects serves one feed page. The cursor, when present, is passed
// through verbatim so clients paginate statelessly.
func (h *handlers) listProjects(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	query := models.FeedQuery{
		Cursor:       q.Get("cursor"),
		Slug:         q.Get("slug"),
		Tag:          q.Get("tag"),
		FeaturedOnly: q.Get("featured") == "true" || q.Get("featured") == "1",
		Sort:         models.Sort(q.Get("sort")),
	}
	if raw := q.Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			query.Limit = limit
		}
	}

	page, err := h.backend.FetchProjects(req.Context(), query)
	if err != nil {
		h.respond.writeError(w, err)
		return
	}
	h.respond.writeJSON(w, http.StatusOK, page)
}

func (h *handlers) getProject(w http.ResponseWriter, req *http.Request) {
	record, err := h.store.GetProject(req.Context(), chi.URLParam(req, "idOrSlug"))
	if err != nil {
		h.respond.writeError(w, err)
		return
	}
	if record == nil {
		h.respond.writeError(w, fmt.Errorf("%w: project", common.ErrNotFound))
		return
	}
	h.respond.writeJSON(w, http.StatusOK, record)
}

func (h *handlers) createProject(w http.ResponseWriter, req *http.Request) {
	var input models.CreateProjectInput
	if err := json.NewDecoder(req.Body).Decode(&input); err != nil {
		h.respond.writeError(w, fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
		return
	}
	if input.Owner.ID == "" {
		input.Owner.ID = viewerIDFrom(req.Context())
	}
	if input.Visibility == "" {
		input.Visibility = models.VisibilityPublic
	}
	if input.Slug == "" {
		slug, err := slugx.EnsureUnique(req.Context(), input.Title, h.slugFree)
		if err != nil {
			h.respond.writeError(w, err)
			return
		}
		input.Slug = slug
	}

	record, err := h.store.CreateProject(req.Context(), input)
	if err != nil {
		h.respond.writeError(w, err)
		return
	}
	h.respond.writeJSON(w, http.StatusCreated, record)
}

// slugFree satisfies slugx.Checker against the live backend.
func (h *handlers) slugFree(ctx context.Context, slug string) (bool, error) {
	existing, err := h.backend.FetchProjectByID(ctx, slug)
	if err != nil {
		return false, err
	}
	return existing == nil, nil
}

func (h *handlers) updateProject(w http.ResponseWriter, req *http.Request) {
	var input models.UpdateProjectInput
	if err := json.NewDecoder(req.Body).Decode(&input); err != nil {
		h.respond.writeError(w, fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
		return
	}
	input.ProjectID = chi.URLParam(req, "projectID")

	record, err := h.store.UpdateProject(req.Context(), input)
	if err != nil {
		h.respond.writeError(w, err)
		return
	}
	h.respond.writeJSON(w, http.StatusOK, record)
}

func (h *handlers) deleteProject(w http.ResponseWriter, req *http.Request) {
	if err := h.store.DeleteProject(req.Context(), chi.URLParam(req, "projectID")); err != nil {
		h.respond.writeError(w, err)
		return
	}
	h.respond.writeJSON(w, http.StatusNoContent, nil)
}

// listComments serves one newest-first comment page through the backend's
// listen contract (subscribe, take the initial page, unsubscribe).
func (h *handlers) listComments(w http.ResponseWriter, req *http.Request) {
	projectID := chi.URLParam(req, "projectID")
	cursor := req.URL.Query().Get("cursor")

	ch := make(chan models.CommentPage, 1)
	unsub := h.backend.ListenComments(projectID, func(page models.CommentPage) {
		select {
		case ch <- page:
		default:
		}
	}, cursor)
	defer unsub()

	select {
	case page := <-ch:
		h.respond.writeJSON(w, http.StatusOK, page)
	case <-req.Context().Done():
		h.respond.writeError(w, req.Context().Err())
	}
}

type createCommentRequest struct {
	Body        string `json:"body"`
	ParentID    string `json:"parentId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

func (h *handlers) createComment(w http.ResponseWriter, req *http.Request) {
	var body createCommentRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		h.respond.writeError(w, fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
		return
	}

	comment, err := h.store.SubmitComment(req.Context(), chi.URLParam(req, "projectID"), models.CreateCommentInput{
		Body:     body.Body,
		ParentID: body.ParentID,
		Author: models.Owner{
			ID:          viewerIDFrom(req.Context()),
			DisplayName: body.DisplayName,
		},
	})
	if err != nil {
		h.respond.writeError(w, err)
		return
	}
	h.respond.writeJSON(w, http.StatusCreated, comment)
}

func (h *handlers) toggleLike(w http.ResponseWriter, req *http.Request) {
	result, err := h.store.ToggleLike(req.Context(), chi.URLParam(req, "projectID"), viewerIDFrom(req.Context()))
	if err != nil {
		h.respond.writeError(w, err)
		return
	}
	h.respond.writeJSON(w, http.StatusOK, result)
}

// uploadMedia accepts a multipart form with one or more "files" parts.
func (h *handlers) uploadMedia(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseMultipartForm(int64(models.ProjectImageLimit) * models.ProjectImageMaxBytes); err != nil {
		h.respond.writeError(w, fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
		return
	}

	var files []models.UploadFile
	for _, header := range req.MultipartForm.File["files"] {
		if header.Size > models.ProjectImageMaxBytes {
			h.respond.writeError(w, fmt.Errorf("%w: %s exceeds %d bytes", common.ErrInvalidInput, header.Filename, models.ProjectImageMaxBytes))
			return
		}
		f, err := header.Open()
		if err != nil {
			h.respond.writeError(w, err)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.respond.writeError(w, err)
			return
		}
		files = append(files, models.UploadFile{
			Name:        header.Filename,
			Size:        header.Size,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	media, err := h.store.UploadProjectMedia(req.Context(), chi.URLParam(req, "projectID"), files, nil)
	if err != nil {
		h.respond.writeError(w, err)
		return
	}
	h.respond.writeJSON(w, http.StatusOK, media)
}
