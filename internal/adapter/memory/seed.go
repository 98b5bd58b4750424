package memory

import (
	"context"
	"fmt"

	"github.com/youthforge/forge/internal/models"
	"github.com/youthforge/forge/internal/slugx"
)

type seedSpec struct {
	title   string
	summary string
	desc    string
	tags    []string
	owner   models.Owner
	likers  int
}

// Seed installs a small set of featured public projects, each with one
// comment and a handful of likes. No-op when projects already exist.
// Counters always match the underlying comment and like records.
func (a *Adapter) Seed(ctx context.Context) error {
	a.mu.Lock()
	populated := len(a.projects) > 0
	a.mu.Unlock()
	if populated {
		return nil
	}

	seeds := []seedSpec{
		{
			title:   "AI-Powered Study Assistant",
			summary: "Personalized study plans using ML.",
			desc:    "Builds per-student study plans from past quiz performance.",
			tags:    []string{"AI/ML", "Go", "Postgres"},
			owner:   models.Owner{ID: "d1", DisplayName: "Sarah Chen"},
			likers:  7,
		},
		{
			title:   "Real-time Collaboration Editor",
			summary: "Collaborative document editing with CRDT-like syncing.",
			desc:    "Multi-cursor text editing over websockets.",
			tags:    []string{"Collaboration", "WebSockets"},
			owner:   models.Owner{ID: "d2", DisplayName: "Marcus Johnson"},
			likers:  12,
		},
		{
			title:   "Mobile Health Tracker",
			summary: "Cross-platform lifestyle tracker.",
			desc:    "Tracks sleep, hydration, and activity streaks.",
			tags:    []string{"Mobile", "Flutter"},
			owner:   models.Owner{ID: "d3", DisplayName: "Priya Patel"},
			likers:  4,
		},
	}

	for _, s := range seeds {
		record, err := a.CreateProject(ctx, models.CreateProjectInput{
			Owner:       s.owner,
			Title:       s.title,
			Slug:        slugx.Slugify(s.title),
			Summary:     s.summary,
			Description: s.desc,
			Tags:        s.tags,
			RepoURL:     "https://github.com/youthforge/demo",
			DemoURL:     "https://demo.youthforge.dev",
			Visibility:  models.VisibilityPublic,
			IsFeatured:  true,
		})
		if err != nil {
			return err
		}

		if _, err := a.CreateComment(ctx, record.ID, models.CreateCommentInput{
			Body:   "Excited to follow this build!",
			Author: s.owner,
		}); err != nil {
			return err
		}

		for i := 0; i < s.likers; i++ {
			if _, err := a.ToggleLike(ctx, record.ID, fmt.Sprintf("seed-user-%d", i)); err != nil {
				return err
			}
		}
	}

	return nil
}
