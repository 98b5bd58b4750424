package slugx

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youthforge/forge/internal/models"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Cool App", "cool-app"},
		{"  AI-Powered Study Assistant!  ", "ai-powered-study-assistant"},
		{"***", ""},
		{"Go + WebSockets = <3", "go-websockets-3"},
		{strings.Repeat("a", 100), strings.Repeat("a", models.SlugMaxLen)},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Slugify(tc.in), "input %q", tc.in)
	}
}

func TestEnsureUnique_FirstCandidateFree(t *testing.T) {
	slug, err := EnsureUnique(context.Background(), "Cool App", func(ctx context.Context, s string) (bool, error) {
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "cool-app", slug)
}

func TestEnsureUnique_RetriesWithSuffix(t *testing.T) {
	calls := 0
	slug, err := EnsureUnique(context.Background(), "Cool App", func(ctx context.Context, s string) (bool, error) {
		calls++
		return calls > 1, nil
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(slug, "cool-app-"), "got %q", slug)
}

func TestEnsureUnique_GivesUpEventually(t *testing.T) {
	_, err := EnsureUnique(context.Background(), "Cool App", func(ctx context.Context, s string) (bool, error) {
		return false, nil
	})
	require.Error(t, err)
}

func TestEnsureUnique_EmptyTitleFallsBack(t *testing.T) {
	slug, err := EnsureUnique(context.Background(), "!!!", func(ctx context.Context, s string) (bool, error) {
		return true, nil
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(slug, "project-"), "got %q", slug)
}
