package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youthforge/forge/internal/common"
	"github.com/youthforge/forge/internal/models"
)

func newProject(t *testing.T, a *Adapter, slug string) *models.ProjectRecord {
	t.Helper()
	record, err := a.CreateProject(context.Background(), models.CreateProjectInput{
		Owner:      models.Owner{ID: "u1", DisplayName: "Sam"},
		Title:      "Cool App",
		Slug:       slug,
		Summary:    "a cool app",
		Visibility: models.VisibilityPublic,
	})
	require.NoError(t, err)
	return record
}

func TestCreateProject_InitializesCounters(t *testing.T) {
	a := New()
	record := newProject(t, a, "cool-app")

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, 0, record.LikesCount)
	assert.Equal(t, 0, record.CommentsCount)
	assert.Equal(t, models.VisibilityPublic, record.Visibility)
	assert.NotEmpty(t, record.CreatedAt)
}

func TestCreateProject_SlugCollision(t *testing.T) {
	a := New()
	original := newProject(t, a, "cool-app")

	_, err := a.CreateProject(context.Background(), models.CreateProjectInput{
		Owner:      models.Owner{ID: "u2", DisplayName: "Kim"},
		Title:      "Another",
		Slug:       "cool-app",
		Summary:    "collides",
		Visibility: models.VisibilityPublic,
	})
	require.ErrorIs(t, err, common.ErrSlugTaken)

	// The existing project is untouched.
	got, err := a.FetchProjectByID(context.Background(), "cool-app")
	require.NoError(t, err)
	assert.Equal(t, original.ID, got.ID)
	assert.Equal(t, "Cool App", got.Title)
}

func TestFetchProjectByID_IDThenSlugThenNil(t *testing.T) {
	a := New()
	record := newProject(t, a, "cool-app")
	ctx := context.Background()

	byID, err := a.FetchProjectByID(ctx, record.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)

	bySlug, err := a.FetchProjectByID(ctx, "cool-app")
	require.NoError(t, err)
	require.NotNil(t, bySlug)
	assert.Equal(t, byID.ID, bySlug.ID)

	missing, err := a.FetchProjectByID(ctx, "nope")
	require.NoError(t, err, "absence is not an error")
	assert.Nil(t, missing)
}

func TestToggleLike_IsAnInvolution(t *testing.T) {
	a := New()
	record := newProject(t, a, "cool-app")
	ctx := context.Background()

	first, err := a.ToggleLike(ctx, record.ID, "user1")
	require.NoError(t, err)
	assert.True(t, first.Liked)
	assert.Equal(t, 1, first.LikesCount)

	second, err := a.ToggleLike(ctx, record.ID, "user1")
	require.NoError(t, err)
	assert.False(t, second.Liked)
	assert.Equal(t, 0, second.LikesCount)
}

func TestToggleLike_CountNeverNegative(t *testing.T) {
	a := New()
	record := newProject(t, a, "cool-app")
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		result, err := a.ToggleLike(ctx, record.ID, "user1")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.LikesCount, 0)
	}
}

func TestToggleLike_UnknownProject(t *testing.T) {
	a := New()
	_, err := a.ToggleLike(context.Background(), "ghost", "user1")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestCreateComment_PairsWithCounter(t *testing.T) {
	a := New()
	record := newProject(t, a, "cool-app")
	ctx := context.Background()

	comment, err := a.CreateComment(ctx, record.ID, models.CreateCommentInput{
		Body:   "Nice!",
		Author: models.Owner{ID: "u2", DisplayName: "Kim"},
	})
	require.NoError(t, err)

	project, err := a.FetchProjectByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, project.CommentsCount)

	page := make(chan models.CommentPage, 1)
	unsub := a.ListenComments(record.ID, func(p models.CommentPage) { page <- p }, "")
	defer unsub()

	select {
	case p := <-page:
		require.NotEmpty(t, p.Comments)
		assert.Equal(t, comment.ID, p.Comments[0].ID, "new comment appears first")
	case <-time.After(time.Second):
		t.Fatal("no initial comment page delivered")
	}
}

func TestCreateComment_RejectsBadBodyWithoutWriting(t *testing.T) {
	a := New()
	record := newProject(t, a, "cool-app")
	ctx := context.Background()

	_, err := a.CreateComment(ctx, record.ID, models.CreateCommentInput{Body: "   ", Author: models.Owner{ID: "u2"}})
	require.ErrorIs(t, err, common.ErrInvalidCommentBody)

	project, err := a.FetchProjectByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, project.CommentsCount)
}

func TestUpdateProject_SlugChangeRevalidates(t *testing.T) {
	a := New()
	first := newProject(t, a, "cool-app")
	newProject(t, a, "other-app")
	ctx := context.Background()

	taken := "other-app"
	_, err := a.UpdateProject(ctx, models.UpdateProjectInput{ProjectID: first.ID, Slug: &taken})
	require.ErrorIs(t, err, common.ErrSlugTaken)

	// A failed slug check applies nothing.
	got, err := a.FetchProjectByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "cool-app", got.Slug)

	fresh := "fresh-slug"
	updated, err := a.UpdateProject(ctx, models.UpdateProjectInput{ProjectID: first.ID, Slug: &fresh})
	require.NoError(t, err)
	assert.Equal(t, "fresh-slug", updated.Slug)

	bySlug, err := a.FetchProjectByID(ctx, "fresh-slug")
	require.NoError(t, err)
	require.NotNil(t, bySlug)
	assert.Equal(t, first.ID, bySlug.ID)

	stale, err := a.FetchProjectByID(ctx, "cool-app")
	require.NoError(t, err)
	assert.Nil(t, stale, "old slug no longer resolves")
}

func TestUpdateProject_KeepingOwnSlugIsNotACollision(t *testing.T) {
	a := New()
	record := newProject(t, a, "cool-app")

	same := "cool-app"
	title := "Renamed"
	updated, err := a.UpdateProject(context.Background(), models.UpdateProjectInput{
		ProjectID: record.ID, Slug: &same, Title: &title,
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
}

func TestDeleteProject_SoftDeletePreservesData(t *testing.T) {
	a := New()
	record := newProject(t, a, "cool-app")
	ctx := context.Background()

	require.NoError(t, a.DeleteProject(ctx, record.ID))

	got, err := a.FetchProjectByID(ctx, record.ID)
	require.NoError(t, err)
	require.NotNil(t, got, "record remains fetchable by id")
	assert.Equal(t, models.VisibilityDeleted, got.Visibility)
	assert.NotEmpty(t, got.DeletedAt)
	assert.Equal(t, "Cool App", got.Title, "other fields intact")
	require.NotEmpty(t, got.ModerationLogs)
	assert.Equal(t, models.ModerationSoftDelete, got.ModerationLogs[0].Action)

	// Deleted projects never show in the feed.
	page, err := a.FetchProjects(ctx, models.FeedQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Projects)
}

func TestFetchProjects_CursorPagination(t *testing.T) {
	a := New()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		newProject(t, a, fmt.Sprintf("app-%d", i))
	}

	seen := map[string]bool{}
	var cursor string
	for {
		page, err := a.FetchProjects(ctx, models.FeedQuery{Limit: 2, Cursor: cursor})
		require.NoError(t, err)

		if len(page.Projects) == 2 {
			assert.NotEmpty(t, page.NextCursor, "full page carries a cursor")
		} else {
			assert.Empty(t, page.NextCursor, "short page ends pagination")
		}

		for _, p := range page.Projects {
			assert.False(t, seen[p.ID], "cursor must never replay %s", p.ID)
			seen[p.ID] = true
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	assert.Len(t, seen, 5)
}

func TestFetchProjects_FiltersAndSorts(t *testing.T) {
	a := New()
	ctx := context.Background()

	first := newProject(t, a, "app-a")
	second := newProject(t, a, "app-b")
	featured := true
	_, err := a.UpdateProject(ctx, models.UpdateProjectInput{
		ProjectID:  second.ID,
		IsFeatured: &featured,
		Tags:       []string{"go"},
	})
	require.NoError(t, err)

	// likes drive the popular sort
	for i := 0; i < 3; i++ {
		_, err := a.ToggleLike(ctx, first.ID, fmt.Sprintf("u%d", i))
		require.NoError(t, err)
	}

	popular, err := a.FetchProjects(ctx, models.FeedQuery{Sort: models.SortPopular})
	require.NoError(t, err)
	require.NotEmpty(t, popular.Projects)
	assert.Equal(t, first.ID, popular.Projects[0].ID)

	bySlug, err := a.FetchProjects(ctx, models.FeedQuery{Slug: "app-b"})
	require.NoError(t, err)
	require.Len(t, bySlug.Projects, 1)
	assert.Equal(t, second.ID, bySlug.Projects[0].ID)

	tagged, err := a.FetchProjects(ctx, models.FeedQuery{Tag: "go"})
	require.NoError(t, err)
	require.Len(t, tagged.Projects, 1)
	assert.Equal(t, second.ID, tagged.Projects[0].ID)

	onlyFeatured, err := a.FetchProjects(ctx, models.FeedQuery{FeaturedOnly: true})
	require.NoError(t, err)
	require.Len(t, onlyFeatured.Projects, 1)
	assert.Equal(t, second.ID, onlyFeatured.Projects[0].ID)
}

func TestListenProject_DeliversInitialValueAndUpdates(t *testing.T) {
	a := New()
	record := newProject(t, a, "cool-app")

	updates := make(chan *models.ProjectRecord, 4)
	unsub := a.ListenProject(record.ID, func(p *models.ProjectRecord) { updates <- p })

	select {
	case p := <-updates:
		require.NotNil(t, p)
		assert.Equal(t, record.ID, p.ID)
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot delivered")
	}

	_, err := a.ToggleLike(context.Background(), record.ID, "user1")
	require.NoError(t, err)

	select {
	case p := <-updates:
		require.NotNil(t, p)
		assert.Equal(t, 1, p.LikesCount)
	case <-time.After(time.Second):
		t.Fatal("no update pushed after mutation")
	}

	// Unsubscribe is idempotent.
	unsub()
	unsub()
}

func TestListenProject_UnknownIdentifierDeliversNil(t *testing.T) {
	a := New()
	updates := make(chan *models.ProjectRecord, 1)
	unsub := a.ListenProject("ghost", func(p *models.ProjectRecord) { updates <- p })
	defer unsub()

	select {
	case p := <-updates:
		assert.Nil(t, p)
	case <-time.After(time.Second):
		t.Fatal("initial nil snapshot not delivered")
	}
}

func TestUploadProjectMedia_CapsAndReportsProgress(t *testing.T) {
	a := New()
	record := newProject(t, a, "cool-app")

	files := make([]models.UploadFile, models.ProjectImageLimit+2)
	for i := range files {
		files[i] = models.UploadFile{Name: fmt.Sprintf("shot-%d.jpg", i), Size: 1024, ContentType: "image/jpeg"}
	}

	var reported []string
	media, err := a.UploadProjectMedia(context.Background(), record.ID, files, func(name string, percent int) {
		reported = append(reported, name)
		assert.Equal(t, 100, percent)
	})
	require.NoError(t, err)
	require.Len(t, media, models.ProjectImageLimit, "files beyond the cap are dropped")
	for i, m := range media {
		assert.Equal(t, files[i].Name, m.Alt, "input order preserved")
	}
	assert.Len(t, reported, models.ProjectImageLimit)
}

func TestSeed_CountersMatchRecords(t *testing.T) {
	a := New()
	ctx := context.Background()
	require.NoError(t, a.Seed(ctx))
	require.NoError(t, a.Seed(ctx), "second seed is a no-op")

	page, err := a.FetchProjects(ctx, models.FeedQuery{})
	require.NoError(t, err)
	require.Len(t, page.Projects, 3)

	for _, p := range page.Projects {
		assert.Equal(t, 1, p.CommentsCount)
		a.mu.Lock()
		assert.Equal(t, len(a.likes[p.ID]), p.LikesCount, "denormalized count equals like records")
		a.mu.Unlock()
	}
}
