package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youthforge/forge/internal/adapter"
	"github.com/youthforge/forge/internal/adapter/memory"
	"github.com/youthforge/forge/internal/common"
	"github.com/youthforge/forge/internal/logging"
	"github.com/youthforge/forge/internal/models"
)

func newTestCache(t *testing.T) (*Cache, *memory.Adapter) {
	t.Helper()
	backend := memory.New()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return New(backend, logger), backend
}

func createVia(t *testing.T, c *Cache, title, slug string) *models.ProjectRecord {
	t.Helper()
	record, err := c.CreateProject(context.Background(), models.CreateProjectInput{
		Title:      title,
		Slug:       slug,
		Owner:      models.Owner{ID: "u1", DisplayName: "Alice"},
		Visibility: models.VisibilityPublic,
	})
	require.NoError(t, err)
	return record
}

func TestGetProject_DualKeyConsistencyAfterMutation(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	record := createVia(t, c, "Solar Tracker", "solar-tracker")

	title := "Solar Tracker v2"
	_, err := c.UpdateProject(ctx, models.UpdateProjectInput{ProjectID: record.ID, Title: &title})
	require.NoError(t, err)

	byID, err := c.GetProject(ctx, record.ID)
	require.NoError(t, err)
	bySlug, err := c.GetProject(ctx, "solar-tracker")
	require.NoError(t, err)

	assert.Equal(t, "Solar Tracker v2", byID.Title)
	assert.Equal(t, byID, bySlug, "id and slug lookups must observe the same record")
}

func TestGetProject_SlugChangeMovesIndex(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	record := createVia(t, c, "Robot Arm", "robot-arm")

	slug := "robot-arm-mk2"
	_, err := c.UpdateProject(ctx, models.UpdateProjectInput{ProjectID: record.ID, Slug: &slug})
	require.NoError(t, err)

	byNew, err := c.GetProject(ctx, "robot-arm-mk2")
	require.NoError(t, err)
	require.NotNil(t, byNew)
	assert.Equal(t, record.ID, byNew.ID)

	byOld, err := c.GetProject(ctx, "robot-arm")
	require.NoError(t, err)
	assert.Nil(t, byOld, "old slug must stop resolving")
}

func TestGetProject_LoadThroughAndMiss(t *testing.T) {
	c, backend := newTestCache(t)
	ctx := context.Background()

	// written behind the cache's back
	record, err := backend.CreateProject(ctx, models.CreateProjectInput{
		Title: "Hidden", Slug: "hidden", Owner: models.Owner{ID: "u1"}, Visibility: models.VisibilityPublic,
	})
	require.NoError(t, err)

	got, err := c.GetProject(ctx, "hidden")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, record.ID, got.ID)

	missing, err := c.GetProject(ctx, "no-such-project")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStaleFetchGuard(t *testing.T) {
	c, _ := newTestCache(t)
	record := createVia(t, c, "Race Car", "race-car")

	c.mu.Lock()
	startSeq := c.seq
	c.mu.Unlock()

	// A local write lands while a fetch for the same project is in flight.
	title := "Race Car Turbo"
	_, err := c.UpdateProject(context.Background(), models.UpdateProjectInput{ProjectID: record.ID, Title: &title})
	require.NoError(t, err)

	stale := record.Clone()
	stale.Title = "Race Car (stale)"
	c.mu.Lock()
	_, err = c.applyFetchedLocked(stale, startSeq)
	current := c.entries[record.ID].record.Title
	c.mu.Unlock()

	assert.ErrorIs(t, err, common.ErrStaleWrite)
	assert.Equal(t, "Race Car Turbo", current, "stale fetch must not clobber the newer write")
}

func TestToggleLike_OptimisticAndSettled(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	record := createVia(t, c, "Weather Station", "weather-station")

	result, err := c.ToggleLike(ctx, record.ID, "viewer-1")
	require.NoError(t, err)
	assert.True(t, result.Liked)
	assert.Equal(t, 1, result.LikesCount)

	got, err := c.GetProject(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.LikesCount)

	result, err = c.ToggleLike(ctx, record.ID, "viewer-1")
	require.NoError(t, err)
	assert.False(t, result.Liked)
	assert.Equal(t, 0, result.LikesCount)
}

func TestToggleLike_RollsBackOnRejection(t *testing.T) {
	backend := &rejectingBackend{Adapter: memory.New()}
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	c := New(backend, logger)
	ctx := context.Background()

	record := createVia(t, c, "Drone", "drone")
	backend.rejectLikes = true

	_, err := c.ToggleLike(ctx, record.ID, "viewer-1")
	require.Error(t, err)

	got, err := c.GetProject(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.LikesCount, "optimistic bump must be rolled back")
	assert.False(t, got.LikedByViewer)
}

func TestSubmitComment_OptimisticInsertThenSettle(t *testing.T) {
	backend := &rejectingBackend{Adapter: memory.New(), commentDelay: 50 * time.Millisecond}
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	c := New(backend, logger)
	ctx := context.Background()

	record := createVia(t, c, "Garden Bot", "garden-bot")
	_, err := c.Comments(ctx, record.ID)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := c.SubmitComment(ctx, record.ID, models.CreateCommentInput{
			Body: "love it", Author: models.Owner{ID: "u2", DisplayName: "Bob"},
		})
		done <- err
	}()

	// The optimistic comment must be visible before the backend settles.
	require.Eventually(t, func() bool {
		page, err := c.Comments(ctx, record.ID)
		return err == nil && len(page.Comments) == 1 && isTempComment(page.Comments[0].ID)
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, <-done)

	page, err := c.Comments(ctx, record.ID)
	require.NoError(t, err)
	require.Len(t, page.Comments, 1)
	assert.False(t, isTempComment(page.Comments[0].ID), "settled comment must carry the stored id")
	assert.Equal(t, "love it", page.Comments[0].Body)

	got, err := c.GetProject(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CommentsCount)
}

func TestSubmitComment_ExactRollbackOnRejection(t *testing.T) {
	backend := &rejectingBackend{Adapter: memory.New()}
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	c := New(backend, logger)
	ctx := context.Background()

	record := createVia(t, c, "Solar Oven", "solar-oven")
	_, err := c.SubmitComment(ctx, record.ID, models.CreateCommentInput{
		Body: "first", Author: models.Owner{ID: "u2"},
	})
	require.NoError(t, err)

	before, err := c.Comments(ctx, record.ID)
	require.NoError(t, err)
	beforeRecord, err := c.GetProject(ctx, record.ID)
	require.NoError(t, err)

	backend.rejectComments = true
	_, err = c.SubmitComment(ctx, record.ID, models.CreateCommentInput{
		Body: "second", Author: models.Owner{ID: "u2"},
	})
	require.Error(t, err)

	after, err := c.Comments(ctx, record.ID)
	require.NoError(t, err)
	afterRecord, err := c.GetProject(ctx, record.ID)
	require.NoError(t, err)

	assert.Equal(t, before, after, "thread must be restored exactly")
	assert.Equal(t, beforeRecord.CommentsCount, afterRecord.CommentsCount)
}

func TestFeed_LoadMoreAppendsWithoutReplay(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		createVia(t, c, fmt.Sprintf("Project %02d", i), fmt.Sprintf("project-%02d", i))
	}

	first, err := c.Feed(ctx, models.FeedQuery{})
	require.NoError(t, err)
	assert.Len(t, first.Projects, models.ProjectPageSize)
	require.NotEmpty(t, first.NextCursor)

	second, err := c.LoadMore(ctx, models.FeedQuery{})
	require.NoError(t, err)
	assert.Len(t, second.Projects, 15)

	seen := make(map[string]int)
	for _, p := range second.Projects {
		seen[p.ID]++
	}
	for id, n := range seen {
		assert.Equalf(t, 1, n, "project %s appeared %d times", id, n)
	}

	// exhausted feed is a no-op
	assert.Empty(t, second.NextCursor)
	third, err := c.LoadMore(ctx, models.FeedQuery{})
	require.NoError(t, err)
	assert.Len(t, third.Projects, 15)
}

func TestFeed_MutationVisibleInCachedFeed(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	record := createVia(t, c, "Wind Turbine", "wind-turbine")

	_, err := c.Feed(ctx, models.FeedQuery{})
	require.NoError(t, err)

	_, err = c.ToggleLike(ctx, record.ID, "viewer-1")
	require.NoError(t, err)

	page, err := c.Feed(ctx, models.FeedQuery{})
	require.NoError(t, err)
	require.NotEmpty(t, page.Projects)
	assert.Equal(t, 1, page.Projects[0].LikesCount, "feed must serve the canonical record")
}

func TestFeed_DeletedProjectDropsOut(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	record := createVia(t, c, "Old Project", "old-project")

	_, err := c.Feed(ctx, models.FeedQuery{})
	require.NoError(t, err)

	require.NoError(t, c.DeleteProject(ctx, record.ID))

	page, err := c.Feed(ctx, models.FeedQuery{})
	require.NoError(t, err)
	for _, p := range page.Projects {
		assert.NotEqual(t, record.ID, p.ID)
	}

	got, err := c.GetProject(ctx, record.ID)
	require.NoError(t, err)
	require.NotNil(t, got, "soft-deleted record stays readable by id")
	assert.Equal(t, models.VisibilityDeleted, got.Visibility)
}

func TestFeed_SeparateFilterTuplesPaginateIndependently(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	createVia(t, c, "Tagged", "tagged")
	tags := []string{"robotics"}
	tagged, err := c.GetProject(ctx, "tagged")
	require.NoError(t, err)
	_, err = c.UpdateProject(ctx, models.UpdateProjectInput{ProjectID: tagged.ID, Tags: tags})
	require.NoError(t, err)
	createVia(t, c, "Untagged", "untagged")

	all, err := c.Feed(ctx, models.FeedQuery{})
	require.NoError(t, err)
	filtered, err := c.Feed(ctx, models.FeedQuery{Tag: "robotics"})
	require.NoError(t, err)

	assert.Len(t, all.Projects, 2)
	require.Len(t, filtered.Projects, 1)
	assert.Equal(t, tagged.ID, filtered.Projects[0].ID)
}

func TestWatchProject_SingleUpstreamSubscription(t *testing.T) {
	backend := &rejectingBackend{Adapter: memory.New()}
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	c := New(backend, logger)
	record := createVia(t, c, "Shared Watch", "shared-watch")

	ch1 := make(chan *models.ProjectRecord, 8)
	ch2 := make(chan *models.ProjectRecord, 8)
	unsub1 := c.WatchProject(record.ID, func(r *models.ProjectRecord) { ch1 <- r })
	unsub2 := c.WatchProject(record.ID, func(r *models.ProjectRecord) { ch2 <- r })
	defer unsub1()
	defer unsub2()

	assert.Equal(t, 1, backend.listenProjectCalls, "watchers must share one backend subscription")

	// both get an initial value
	requireRecord(t, ch1, record.ID)
	requireRecord(t, ch2, record.ID)

	_, err := c.ToggleLike(context.Background(), record.ID, "viewer-1")
	require.NoError(t, err)

	got := requireRecord(t, ch2, record.ID)
	assert.Equal(t, 1, got.LikesCount)
}

func TestWatchComments_ReceivesSubmittedComment(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	record := createVia(t, c, "Watched Thread", "watched-thread")

	ch := make(chan models.CommentPage, 8)
	unsub := c.WatchComments(record.ID, func(p models.CommentPage) { ch <- p })
	defer unsub()

	// initial empty page
	page := <-ch
	assert.Empty(t, page.Comments)

	_, err := c.SubmitComment(ctx, record.ID, models.CreateCommentInput{
		Body: "watching", Author: models.Owner{ID: "u2"},
	})
	require.NoError(t, err)

	deadline := time.After(time.Second)
	for {
		select {
		case page = <-ch:
			if len(page.Comments) == 1 && !isTempComment(page.Comments[0].ID) {
				assert.Equal(t, "watching", page.Comments[0].Body)
				return
			}
		case <-deadline:
			t.Fatal("settled comment never reached the watcher")
		}
	}
}

func requireRecord(t *testing.T, ch chan *models.ProjectRecord, wantID string) *models.ProjectRecord {
	t.Helper()
	select {
	case r := <-ch:
		require.NotNil(t, r)
		require.Equal(t, wantID, r.ID)
		return r
	case <-time.After(time.Second):
		t.Fatal("no record delivered")
		return nil
	}
}

// rejectingBackend wraps the in-memory adapter with switchable failure
// injection and call counting.
type rejectingBackend struct {
	*memory.Adapter
	rejectLikes        bool
	rejectComments     bool
	commentDelay       time.Duration
	listenProjectCalls int
}

func (b *rejectingBackend) ToggleLike(ctx context.Context, projectID, userID string) (*models.ToggleLikeResult, error) {
	if b.rejectLikes {
		return nil, errors.New("backend rejected the like")
	}
	return b.Adapter.ToggleLike(ctx, projectID, userID)
}

func (b *rejectingBackend) CreateComment(ctx context.Context, projectID string, input models.CreateCommentInput) (*models.ProjectComment, error) {
	if b.commentDelay > 0 {
		time.Sleep(b.commentDelay)
	}
	if b.rejectComments {
		return nil, errors.New("backend rejected the comment")
	}
	return b.Adapter.CreateComment(ctx, projectID, input)
}

func (b *rejectingBackend) ListenProject(idOrSlug string, cb adapter.ProjectCallback) adapter.Unsubscribe {
	b.listenProjectCalls++
	return b.Adapter.ListenProject(idOrSlug, cb)
}
